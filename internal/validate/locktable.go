package validate

import (
	"encoding/json"
	"io"
)

type lockEntry struct {
	TaskID   string `json:"task_id"`
	Resource string `json:"resource"`
	Active   bool   `json:"active"`
}

// ValidateLockTable checks a full lock table for overlapping active locks held by
// different tasks (§6, grounded on the reference on_lock_update policy script — this is
// the post-hoc check named by R-LK-001 in §7's invariant-violation discussion).
func ValidateLockTable(r io.Reader) Result {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Deny("R-LK-001", "lock table must be an array", nil)
	}

	normalized := make([]lockEntry, 0, len(raw))
	for idx, entryRaw := range raw {
		var entry lockEntry
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entryRaw, &fields); err != nil {
			return Deny("R-LK-001", "lock entries must be objects", map[string]any{"index": idx})
		}
		if err := json.Unmarshal(entryRaw, &entry); err != nil || entry.TaskID == "" {
			return Deny("R-LK-001", "lock.task_id must be non-empty string", map[string]any{"index": idx})
		}
		if _, ok := fields["resource"]; !ok {
			return Deny("R-LK-001", "lock.resource must be string", map[string]any{"index": idx})
		}
		if _, ok := fields["active"]; !ok {
			return Deny("R-LK-001", "lock.active must be bool", map[string]any{"index": idx})
		}
		normalizedResource := NormalizeResource(entry.Resource)
		if normalizedResource == "" {
			return Deny("R-LK-001", "lock.resource contains empty resource after normalization", map[string]any{"index": idx, "resource": entry.Resource})
		}
		entry.Resource = normalizedResource
		normalized = append(normalized, entry)
	}

	var active []lockEntry
	for _, e := range normalized {
		if e.Active {
			active = append(active, e)
		}
	}
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if active[i].TaskID == active[j].TaskID {
				continue
			}
			if overlaps(active[i].Resource, active[j].Resource) {
				return Deny("R-LK-001", "overlapping active locks detected", map[string]any{
					"a": active[i].TaskID, "b": active[j].TaskID,
					"resource_a": active[i].Resource, "resource_b": active[j].Resource,
				})
			}
		}
	}

	return Allow("lock table is conflict-free", nil)
}
