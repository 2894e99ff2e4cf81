// Package validate implements the stdin/stdout JSON validator protocol described in §6:
// each validator reads one JSON document and writes one JSON envelope of shape
// {"allow": bool, "code": string, "reason": string, "details"?: object}, with the process
// exit code 0 iff allow=true. The validators themselves encode operator-side policy
// (lock-scope conflicts, acceptance-criteria gating, secret scanning, watchdog timeouts)
// that sits outside the storage/knowledge-graph core; wiring them as a package rather
// than standalone scripts only changes how they're invoked, not what they check.
package validate

import (
	"encoding/json"
	"io"
)

// Result is the validator envelope written to stdout.
type Result struct {
	Allow   bool           `json:"allow"`
	Code    string         `json:"code"`
	Reason  string         `json:"reason"`
	Details map[string]any `json:"details,omitempty"`
}

// Allow builds a passing result.
func Allow(reason string, details map[string]any) Result {
	return Result{Allow: true, Code: "OK", Reason: reason, Details: details}
}

// Deny builds a failing result with a well-known code.
func Deny(code, reason string, details map[string]any) Result {
	return Result{Allow: false, Code: code, Reason: reason, Details: details}
}

// ExitCode mirrors the reference scripts: 0 on allow=true, 1 otherwise.
func (r Result) ExitCode() int {
	if r.Allow {
		return 0
	}
	return 1
}

// Write encodes r as a single compact JSON line, matching the reference scripts'
// json.dumps(payload, separators=(",", ":")) output shape.
func Write(w io.Writer, r Result) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// knownCodes is the closed set named in §6. Codes outside this set are still written
// verbatim (a future policy script may introduce one) but IsKnownCode flags the gap so
// callers can log it rather than silently accept an unrecognized code.
var knownCodes = map[string]bool{
	"OK": true,
	"R-PD-001": true, "R-PD-002": true, "R-PD-003": true, "R-PD-004": true,
	"R-PD-005": true, "R-PD-006": true, "R-PD-007": true,
	"R-PO-001": true, "R-PO-002": true, "R-PO-003": true, "R-PO-004": true,
	"R-PC-001": true, "R-PC-002": true, "R-PC-003": true,
	"R-LK-001": true,
	"R-WD-001": true, "R-WD-002": true,
	"R-PW-002": true,
	"SCHEMA_INVALID": true, "MISSING_REQUIRED_INPUT": true, "LOCK_CONFLICT": true,
	"ACCEPTANCE_FAILED": true, "DEPENDENCY_NOT_MET": true, "CONCURRENCY_CONFLICT": true,
	"UNTRUSTED_CONTEXT_BLOCK": true, "LEDGER_INCONSISTENT": true,
	"UNKNOWN_SCHEMA_VERSION": true, "SCOPE_VIOLATION": true,
}

// IsKnownCode reports whether code is in the closed set named in §6.
func IsKnownCode(code string) bool {
	return knownCodes[code]
}
