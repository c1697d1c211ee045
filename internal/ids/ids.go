// Package ids mints the time-ordered identifiers the orchestrator uses for
// jobs, leases, and correlation. Every identifier is a UUIDv7 so that
// lexicographic order matches creation order, which the Job Store leans on
// for its tie-break ordering (not_before ASC, created_at ASC, job_id ASC).
package ids

import "github.com/google/uuid"

// New mints a fresh UUIDv7.
func New() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system entropy source is broken;
		// falling back to v4 keeps the orchestrator alive instead of panicking
		// at the cost of losing time-ordering for this one id.
		return uuid.New()
	}
	return id
}

// Parse wraps uuid.Parse for callers that don't want to import google/uuid directly.
func Parse(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// MustParse panics on malformed input; reserved for static keys known at compile time.
func MustParse(s string) uuid.UUID {
	return uuid.MustParse(s)
}
