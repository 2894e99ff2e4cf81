package validate

import (
	"encoding/json"
	"fmt"
	"io"
)

// activeLock is one entry of the active_locks table passed into a dispatch check.
type activeLock struct {
	TaskID   string `json:"task_id"`
	Resource string `json:"resource"`
	Active   bool   `json:"active"`
}

type dispatchAssignment struct {
	LockScope         []string `json:"lock_scope"`
	ForbiddenScope    []string `json:"forbidden_scope"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	WorklogPath       string   `json:"worklog_path"`
	TimeoutSeconds    float64  `json:"timeout_seconds"`
}

type dispatchPacket struct {
	TaskID      string               `json:"task_id"`
	Assignment  dispatchAssignment   `json:"assignment"`
	ActiveLocks []json.RawMessage    `json:"active_locks"`
}

// ValidateDispatch checks a pre-dispatch assignment packet: required fields present,
// lock_scope non-empty and non-self-overlapping, forbidden_scope disjoint from
// lock_scope, and no conflict against any other task's active lock (§6, grounded on
// the reference pre_dispatch policy script).
func ValidateDispatch(r io.Reader) Result {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Deny("SCHEMA_INVALID", "payload must be a JSON object", nil)
	}

	for _, field := range []string{"task_id", "assignment", "active_locks"} {
		if _, ok := raw[field]; !ok {
			return Deny("R-PD-001", fmt.Sprintf("missing required field: %s", field), nil)
		}
	}

	var payload dispatchPacket
	if err := json.Unmarshal(mustMarshalMap(raw), &payload); err != nil {
		return Deny("R-PD-001", "payload fields have the wrong type", nil)
	}

	var assignmentFields map[string]json.RawMessage
	if err := json.Unmarshal(raw["assignment"], &assignmentFields); err != nil {
		return Deny("R-PD-001", "assignment must be an object", nil)
	}
	for _, field := range []string{"lock_scope", "forbidden_scope", "acceptance_criteria", "worklog_path", "timeout_seconds"} {
		if _, ok := assignmentFields[field]; !ok {
			return Deny("R-PD-001", fmt.Sprintf("missing assignment field: %s", field), nil)
		}
	}

	if len(payload.Assignment.LockScope) == 0 {
		return Deny("R-PD-002", "lock_scope must be a non-empty array", nil)
	}
	if payload.Assignment.ForbiddenScope == nil {
		return Deny("R-PD-004", "forbidden_scope must be string[]", nil)
	}
	if len(payload.Assignment.AcceptanceCriteria) == 0 {
		return Deny("R-PD-001", "acceptance_criteria must be non-empty string[]", nil)
	}
	for _, c := range payload.Assignment.AcceptanceCriteria {
		if c == "" {
			return Deny("R-PD-001", "acceptance_criteria must be non-empty string[]", nil)
		}
	}
	if payload.Assignment.WorklogPath == "" {
		return Deny("R-PD-005", "worklog_path is required", nil)
	}
	if payload.Assignment.TimeoutSeconds < 30 {
		return Deny("R-PD-006", "timeout_seconds must be an integer >= 30", nil)
	}

	var activeLocks []activeLock
	for idx, raw := range payload.ActiveLocks {
		var lock activeLock
		if err := json.Unmarshal(raw, &lock); err != nil || lock.TaskID == "" {
			return Deny("R-PD-007", "active_locks.task_id must be non-empty string", map[string]any{"index": idx})
		}
		activeLocks = append(activeLocks, lock)
	}

	lockScope, idx, original, ok := normalizeScope(payload.Assignment.LockScope)
	if !ok {
		return Deny("R-PD-002", "lock_scope contains empty resource after normalization", map[string]any{"index": idx, "resource": original})
	}
	forbiddenScope, idx, original, ok := normalizeScope(payload.Assignment.ForbiddenScope)
	if !ok {
		return Deny("R-PD-004", "forbidden_scope contains empty resource after normalization", map[string]any{"index": idx, "resource": original})
	}

	for i := 0; i < len(lockScope); i++ {
		for j := i + 1; j < len(lockScope); j++ {
			if overlaps(lockScope[i], lockScope[j]) {
				return Deny("R-PD-003", "lock_scope contains overlapping resources", map[string]any{"a": lockScope[i], "b": lockScope[j]})
			}
		}
	}
	for _, own := range lockScope {
		for _, forbidden := range forbiddenScope {
			if overlaps(own, forbidden) {
				return Deny("R-PD-004", "forbidden_scope overlaps lock_scope", map[string]any{"lock_scope": own, "forbidden_scope": forbidden})
			}
		}
	}

	for idx, lock := range activeLocks {
		if !lock.Active || lock.TaskID == payload.TaskID {
			continue
		}
		normalizedActive := NormalizeResource(lock.Resource)
		if normalizedActive == "" {
			return Deny("R-PD-007", "active_locks.resource contains empty resource after normalization", map[string]any{"index": idx, "resource": lock.Resource})
		}
		for _, own := range lockScope {
			if overlaps(own, normalizedActive) {
				return Deny("R-PD-003", "assignment lock_scope conflicts with active lock", map[string]any{
					"task_id": payload.TaskID, "resource": own,
					"conflict_task_id": lock.TaskID, "conflict_resource": normalizedActive,
				})
			}
		}
	}

	return Allow("policy checks passed", nil)
}

func mustMarshalMap(m map[string]json.RawMessage) []byte {
	b, _ := json.Marshal(m)
	return b
}
