package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
)

type changeEntry struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type executionResult struct {
	Status                string        `json:"status"`
	Changes               []changeEntry `json:"changes"`
	AcceptanceCheck        []acceptanceEntry `json:"acceptance_check"`
	WorklogPath            string        `json:"worklog_path"`
	NotesForOrchestrator   []string      `json:"notes_for_orchestrator"`
}

type executionPacket struct {
	TaskID     string              `json:"task_id"`
	Result     executionResult     `json:"result"`
	Assignment dispatchAssignment  `json:"assignment"`
}

var secretPattern = regexp.MustCompile(
	`AKIA[0-9A-Z]{16}` + `|` +
		`sk-ant-[A-Za-z0-9-]{20,}` + `|` +
		`sk-[A-Za-z0-9]{20,}` + `|` +
		`BEGIN [A-Z ]*PRIVATE KEY`,
)

var genericSecretPattern = regexp.MustCompile(`(?i)(api[_-]?key|secret|token)\s*[:=]\s*\S+`)

// ValidatePostExecution checks a completed task's result: every changed resource must
// fall within lock_scope and outside forbidden_scope, the worklog file must exist, and
// notes_for_orchestrator must not carry anything that looks like a credential (§6,
// grounded on the reference post_execution policy script).
func ValidatePostExecution(r io.Reader) Result {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Deny("SCHEMA_INVALID", "payload must be a JSON object", nil)
	}
	for _, field := range []string{"task_id", "result", "assignment"} {
		if _, ok := raw[field]; !ok {
			return Deny("R-PO-001", fmt.Sprintf("missing required field: %s", field), nil)
		}
	}

	var payload executionPacket
	if err := json.Unmarshal(mustMarshalMap(raw), &payload); err != nil {
		return Deny("R-PO-001", "payload fields have the wrong type", nil)
	}
	if payload.Result.Changes == nil {
		return Deny("R-PO-001", "result.changes must be an array", nil)
	}
	if len(payload.Assignment.LockScope) == 0 {
		return Deny("R-PO-001", "assignment.lock_scope must be non-empty string[]", nil)
	}
	if payload.Assignment.ForbiddenScope == nil {
		return Deny("R-PO-001", "assignment.forbidden_scope must be string[]", nil)
	}
	if len(payload.Result.NotesForOrchestrator) > 5 {
		return Deny("R-PO-001", "result.notes_for_orchestrator must be string[] with max length 5", nil)
	}
	if payload.Result.Status == "done" && len(payload.Result.AcceptanceCheck) == 0 {
		return Deny("R-PC-001", "done status requires non-empty acceptance_check", nil)
	}

	if res := validateScopeEnforcement(payload.Result.Changes, payload.Assignment.LockScope, payload.Assignment.ForbiddenScope); !res.Allow {
		return res
	}

	if _, err := os.Stat(payload.Result.WorklogPath); err != nil {
		return Deny("R-PO-003", fmt.Sprintf("worklog file missing: %s", payload.Result.WorklogPath), nil)
	}

	if detectSecrets(payload.Result.NotesForOrchestrator) {
		return Deny("R-PO-004", "sensitive content detected in notes_for_orchestrator", nil)
	}

	return Allow("validation passed", nil)
}

func validateScopeEnforcement(changes []changeEntry, lockScopeRaw, forbiddenScopeRaw []string) Result {
	lockScope, idx, original, ok := normalizeScope(lockScopeRaw)
	if !ok {
		return Deny("R-PO-001", "assignment.lock_scope contains empty resource after normalization", map[string]any{"index": idx, "resource": original})
	}
	forbiddenScope, idx, original, ok := normalizeScope(forbiddenScopeRaw)
	if !ok {
		return Deny("R-PO-001", "assignment.forbidden_scope contains empty resource after normalization", map[string]any{"index": idx, "resource": original})
	}

	for idx, change := range changes {
		if change.Action == "" {
			return Deny("R-PO-001", "result.changes.action must be non-empty string", map[string]any{"index": idx})
		}
		normalizedResource := NormalizeResource(change.Resource)
		if normalizedResource == "" {
			return Deny("R-PO-001", "result.changes.resource contains empty resource after normalization", map[string]any{"index": idx, "resource": change.Resource})
		}

		inScope := false
		for _, scope := range lockScope {
			if within(normalizedResource, scope) {
				inScope = true
				break
			}
		}
		if !inScope {
			return Deny("R-PO-002", "changed file outside lock_scope", map[string]any{"index": idx, "resource": normalizedResource})
		}

		for _, forbidden := range forbiddenScope {
			if overlaps(normalizedResource, forbidden) {
				return Deny("R-PW-002", "changed file in forbidden_scope", map[string]any{
					"index": idx, "resource": normalizedResource, "forbidden_scope": forbidden,
				})
			}
		}
	}
	return Allow("", nil)
}

func detectSecrets(notes []string) bool {
	for _, note := range notes {
		if secretPattern.MatchString(note) || genericSecretPattern.MatchString(note) {
			return true
		}
	}
	return false
}
