package validate

import (
	"encoding/json"
	"io"
	"time"
)

type watchdogTask struct {
	TaskID          string  `json:"task_id"`
	Status          string  `json:"status"`
	TimeoutSeconds  float64 `json:"timeout_seconds"`
	LastHeartbeatAt string  `json:"last_heartbeat_at"`
}

type watchdogPayload struct {
	Now   string         `json:"now"`
	Tasks []watchdogTask `json:"tasks"`
}

// maxClockSkewSeconds bounds how far a heartbeat may appear to be in the future before
// it's treated as a clock-skew violation rather than a fresh heartbeat.
const maxClockSkewSeconds = 30

// ValidateWatchdog scans in_progress tasks for heartbeats older than their declared
// timeout (§6). It's the only validator that reports on more than one record per call,
// scanning every stale task in a single pass.
func ValidateWatchdog(r io.Reader) Result {
	var payload watchdogPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return Deny("SCHEMA_INVALID", "payload must be object", nil)
	}
	if payload.Now == "" {
		return Deny("MISSING_REQUIRED_INPUT", "missing required field: now", nil)
	}
	nowEpoch, err := parseISOTimestamp(payload.Now)
	if err != nil {
		return Deny("SCHEMA_INVALID", "now must be ISO-8601 timestamp", nil)
	}

	var timedOut []map[string]any
	for _, task := range payload.Tasks {
		if task.Status != "in_progress" {
			continue
		}
		if task.TaskID == "" {
			return Deny("SCHEMA_INVALID", "in_progress task missing task_id", nil)
		}
		if task.TimeoutSeconds < 30 {
			return Deny("SCHEMA_INVALID", "timeout_seconds must be an integer >= 30 for in_progress tasks", nil)
		}
		if task.LastHeartbeatAt == "" {
			return Deny("SCHEMA_INVALID", "last_heartbeat_at required for in_progress tasks", nil)
		}

		heartbeatEpoch, err := parseISOTimestamp(task.LastHeartbeatAt)
		if err != nil {
			return Deny("SCHEMA_INVALID", "last_heartbeat_at must be ISO-8601 timestamp", nil)
		}

		age := nowEpoch - heartbeatEpoch
		if age < -maxClockSkewSeconds {
			return Deny("R-WD-002", "last_heartbeat_at is in the future beyond allowed clock skew", nil)
		}
		if age > int64(task.TimeoutSeconds) {
			timedOut = append(timedOut, map[string]any{
				"task_id":            task.TaskID,
				"last_heartbeat_at":  task.LastHeartbeatAt,
				"timeout_seconds":    task.TimeoutSeconds,
				"age_seconds":        age,
			})
		}
	}

	if len(timedOut) > 0 {
		return Deny("R-WD-001", "task heartbeat exceeded timeout", map[string]any{"timed_out": timedOut})
	}
	return Allow("watchdog check passed", map[string]any{"timed_out_count": 0})
}

func parseISOTimestamp(value string) (int64, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
