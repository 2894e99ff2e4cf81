package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func dispatchPayload(lockScope, forbiddenScope string, activeLocks string) string {
	if lockScope == "" {
		lockScope = `["src/a.py"]`
	}
	if forbiddenScope == "" {
		forbiddenScope = `["src/secret"]`
	}
	return `{
		"task_id": "T-12",
		"assignment": {
			"lock_scope": ` + lockScope + `,
			"forbidden_scope": ` + forbiddenScope + `,
			"acceptance_criteria": ["tests pass"],
			"worklog_path": "worklogs/T-12.jsonl",
			"timeout_seconds": 1200
		},
		"active_locks": ` + activeLocks + `
	}`
}

func TestValidateDispatchAllowsValidPayload(t *testing.T) {
	res := ValidateDispatch(strings.NewReader(dispatchPayload("", "", `[{"task_id":"T-9","resource":"docs/notes.md","active":true}]`)))
	if !res.Allow || res.Code != "OK" {
		t.Fatalf("expected allow=true code=OK, got %+v", res)
	}
}

func TestValidateDispatchBlocksPrefixLockConflict(t *testing.T) {
	res := ValidateDispatch(strings.NewReader(dispatchPayload(
		`["src/api/handler.py"]`, `[]`, `[{"task_id":"T-9","resource":"src","active":true}]`,
	)))
	if res.Allow || res.Code != "R-PD-003" {
		t.Fatalf("expected R-PD-003 denial, got %+v", res)
	}
}

func TestValidateDispatchBlocksMalformedActiveLock(t *testing.T) {
	res := ValidateDispatch(strings.NewReader(dispatchPayload("", "", `[{"task_id":"T-9","resource":"src/a.py","active":"true"}]`)))
	if res.Allow || res.Code != "R-PD-007" {
		t.Fatalf("expected R-PD-007 denial, got %+v", res)
	}
}

func TestValidateDispatchBlocksMissingField(t *testing.T) {
	res := ValidateDispatch(strings.NewReader(`{"task_id":"T-1"}`))
	if res.Allow || res.Code != "R-PD-001" {
		t.Fatalf("expected R-PD-001 denial, got %+v", res)
	}
}

func executionPayload(t *testing.T, worklogPath, resourceChanged, lockScope, forbiddenScope string) string {
	t.Helper()
	return `{
		"task_id": "T-12",
		"result": {
			"status": "done",
			"changes": [{"resource": "` + resourceChanged + `", "action": "edit"}],
			"acceptance_check": [{"criterion": "tests pass", "status": "pass", "evidence": "pytest"}],
			"worklog_path": "` + worklogPath + `",
			"notes_for_orchestrator": ["ready"]
		},
		"assignment": {"lock_scope": ` + lockScope + `, "forbidden_scope": ` + forbiddenScope + `}
	}`
}

func TestValidatePostExecutionAllowsChangeWithinScope(t *testing.T) {
	tmp := t.TempDir()
	worklog := filepath.Join(tmp, "T-12.jsonl")
	if err := os.WriteFile(worklog, nil, 0o644); err != nil {
		t.Fatalf("failed to write worklog: %v", err)
	}

	res := ValidatePostExecution(strings.NewReader(executionPayload(t, worklog, "src/a.py", `["src"]`, `["src/secret"]`)))
	if !res.Allow || res.Code != "OK" {
		t.Fatalf("expected allow=true code=OK, got %+v", res)
	}
}

func TestValidatePostExecutionBlocksOutOfScopeChange(t *testing.T) {
	tmp := t.TempDir()
	worklog := filepath.Join(tmp, "T-12.jsonl")
	if err := os.WriteFile(worklog, nil, 0o644); err != nil {
		t.Fatalf("failed to write worklog: %v", err)
	}

	res := ValidatePostExecution(strings.NewReader(executionPayload(t, worklog, "tests/test_api.py", `["src"]`, `[]`)))
	if res.Allow || res.Code != "R-PO-002" {
		t.Fatalf("expected R-PO-002 denial, got %+v", res)
	}
}

func TestValidatePostExecutionBlocksForbiddenScopeOverlap(t *testing.T) {
	tmp := t.TempDir()
	worklog := filepath.Join(tmp, "T-12.jsonl")
	if err := os.WriteFile(worklog, nil, 0o644); err != nil {
		t.Fatalf("failed to write worklog: %v", err)
	}

	res := ValidatePostExecution(strings.NewReader(executionPayload(t, worklog, "src/secret/keys.pem", `["src"]`, `["src/secret"]`)))
	if res.Allow || res.Code != "R-PW-002" {
		t.Fatalf("expected R-PW-002 denial, got %+v", res)
	}
}

func TestValidatePostExecutionBlocksMissingWorklog(t *testing.T) {
	res := ValidatePostExecution(strings.NewReader(executionPayload(t, "/nonexistent/worklog.jsonl", "src/a.py", `["src"]`, `[]`)))
	if res.Allow || res.Code != "R-PO-003" {
		t.Fatalf("expected R-PO-003 denial, got %+v", res)
	}
}

func TestValidateCompleteBlocksMissingEvidence(t *testing.T) {
	payload := `{
		"task_id": "T-12",
		"required_criteria": ["tests pass"],
		"acceptance_check": [{"criterion": "tests pass", "status": "pass", "evidence": ""}]
	}`
	res := ValidateComplete(strings.NewReader(payload))
	if res.Allow || res.Code != "R-PC-003" {
		t.Fatalf("expected R-PC-003 denial, got %+v", res)
	}
}

func TestValidateCompleteAllowsSatisfiedCriteria(t *testing.T) {
	payload := `{
		"task_id": "T-12",
		"required_criteria": ["tests pass"],
		"acceptance_check": [{"criterion": "tests pass", "status": "pass", "evidence": "pytest"}]
	}`
	res := ValidateComplete(strings.NewReader(payload))
	if !res.Allow || res.Code != "OK" {
		t.Fatalf("expected allow=true code=OK, got %+v", res)
	}
}

func TestValidateLockTableDetectsOverlap(t *testing.T) {
	payload := `[
		{"task_id": "T-1", "resource": "src/a.py", "active": true},
		{"task_id": "T-2", "resource": "src", "active": true}
	]`
	res := ValidateLockTable(strings.NewReader(payload))
	if res.Allow || res.Code != "R-LK-001" {
		t.Fatalf("expected R-LK-001 denial, got %+v", res)
	}
}

func TestValidateLockTableIgnoresSameTaskOverlap(t *testing.T) {
	payload := `[
		{"task_id": "T-1", "resource": "src/a.py", "active": true},
		{"task_id": "T-1", "resource": "src", "active": true}
	]`
	res := ValidateLockTable(strings.NewReader(payload))
	if !res.Allow {
		t.Fatalf("expected allow=true for same-task overlap, got %+v", res)
	}
}

func TestValidateWatchdogDetectsTimeout(t *testing.T) {
	payload := `{
		"now": "2026-01-01T00:30:00Z",
		"tasks": [{"task_id": "T-1", "status": "in_progress", "timeout_seconds": 60, "last_heartbeat_at": "2026-01-01T00:00:00Z"}]
	}`
	res := ValidateWatchdog(strings.NewReader(payload))
	if res.Allow || res.Code != "R-WD-001" {
		t.Fatalf("expected R-WD-001 denial, got %+v", res)
	}
}

func TestValidateWatchdogAllowsFreshHeartbeat(t *testing.T) {
	payload := `{
		"now": "2026-01-01T00:00:30Z",
		"tasks": [{"task_id": "T-1", "status": "in_progress", "timeout_seconds": 300, "last_heartbeat_at": "2026-01-01T00:00:00Z"}]
	}`
	res := ValidateWatchdog(strings.NewReader(payload))
	if !res.Allow || res.Code != "OK" {
		t.Fatalf("expected allow=true code=OK, got %+v", res)
	}
}
