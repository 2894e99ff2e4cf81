package validate

import (
	"encoding/json"
	"fmt"
	"io"
)

type acceptanceEntry struct {
	Criterion string `json:"criterion"`
	Status    string `json:"status"`
	Evidence  string `json:"evidence"`
}

type completePayload struct {
	TaskID            string            `json:"task_id"`
	AcceptanceCheck   []acceptanceEntry `json:"acceptance_check"`
	RequiredCriteria  []string          `json:"required_criteria"`
}

// ValidateComplete checks a pre-completion packet: every required criterion must appear
// in acceptance_check, every entry must have passed, and every entry must carry evidence
// (§6, grounded on the reference pre_complete policy script).
func ValidateComplete(r io.Reader) Result {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Deny("SCHEMA_INVALID", "payload must be a JSON object", nil)
	}
	for _, field := range []string{"task_id", "acceptance_check", "required_criteria"} {
		if _, ok := raw[field]; !ok {
			return Deny("R-PC-001", fmt.Sprintf("missing required field: %s", field), nil)
		}
	}

	var payload completePayload
	if err := json.Unmarshal(mustMarshalMap(raw), &payload); err != nil {
		return Deny("R-PC-001", "payload fields have the wrong type", nil)
	}

	if missing := findMissingCriterion(payload); missing != "" {
		return Deny("R-PC-001", fmt.Sprintf("missing acceptance criterion: %s", missing), nil)
	}
	if failed := findFailedCriterion(payload); failed != "" {
		return Deny("R-PC-002", fmt.Sprintf("acceptance failed: %s", failed), nil)
	}
	if noEvidence := findMissingEvidence(payload); noEvidence != "" {
		return Deny("R-PC-003", fmt.Sprintf("missing evidence for criterion: %s", noEvidence), nil)
	}
	return Allow("validation passed", nil)
}

func findMissingCriterion(p completePayload) string {
	seen := make(map[string]bool, len(p.AcceptanceCheck))
	for _, entry := range p.AcceptanceCheck {
		seen[entry.Criterion] = true
	}
	for _, required := range p.RequiredCriteria {
		if !seen[required] {
			return required
		}
	}
	return ""
}

func findFailedCriterion(p completePayload) string {
	for _, entry := range p.AcceptanceCheck {
		if entry.Status != "pass" {
			return entry.Criterion
		}
	}
	return ""
}

func findMissingEvidence(p completePayload) string {
	for _, entry := range p.AcceptanceCheck {
		if entry.Evidence == "" {
			return entry.Criterion
		}
	}
	return ""
}
