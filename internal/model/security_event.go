package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SecurityEvent is the persisted form of an alert.
type SecurityEvent struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Severity  Severity        `json:"severity" db:"severity"`
	Title     string          `json:"title" db:"title"`
	Message   string          `json:"message" db:"message"`
	Metadata  json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type SecurityEventFilter struct {
	Severity Severity
	Since    time.Time
	Limit    int
}
