package model

import "time"

// AttemptState is where an identifier sits in the failed-login escalation ladder.
type AttemptState string

const (
	AttemptStateClean     AttemptState = "clean"
	AttemptStateWarned    AttemptState = "warned"
	AttemptStateEscalated AttemptState = "escalated"
)

// LoginAttemptCounter is the stored record for one identifier. The identifier itself is not
// stored, only its hashed key.
type LoginAttemptCounter struct {
	FailureCount int       `json:"failure_count"`
	FirstFailure time.Time `json:"first_failure"`
	LastFailure  time.Time `json:"last_failure"`
}

// OriginFlags lists the hashed origins one identifier has marked suspicious. It lives as
// long as the marks do, so a success after the counter window can still withdraw them.
type OriginFlags struct {
	Origins   []string  `json:"origins"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoginAttemptStatus is returned to callers after every guard operation.
type LoginAttemptStatus struct {
	Identifier   string       `json:"identifier"`
	FailureCount int          `json:"failure_count"`
	State        AttemptState `json:"state"`
	Locked       bool         `json:"locked"`
	ResetAt      *time.Time   `json:"reset_at,omitempty"`
}

// SuspiciousOrigin records which identifiers caused an origin to be flagged.
type SuspiciousOrigin struct {
	FlaggedBy []string  `json:"flagged_by"`
	FlaggedAt time.Time `json:"flagged_at"`
}
