package model

import "time"

// Outcome is the result of one invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Arg is one named invocation argument. Redacted arguments keep only
// the byte length of the original value.
type Arg struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Redacted bool   `json:"redacted,omitempty"`
	Bytes    int    `json:"bytes,omitempty"`
}

// AuditRecord is one immutable entry of the invocation log.
type AuditRecord struct {
	// ID is the store-assigned, strictly increasing sequence id.
	ID           int64     `json:"id" db:"id"`
	InvocationID string    `json:"invocation_id" db:"invocation_id"`
	Timestamp    time.Time `json:"ts" db:"ts"`
	Profile      *string   `json:"profile" db:"profile"`
	Command      string    `json:"command" db:"command"`
	Args         []Arg     `json:"args" db:"-"`
	Outcome      Outcome   `json:"outcome" db:"outcome"`
	ErrorKind    string    `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	DurationMS   int64     `json:"duration_ms" db:"duration_ms"`
}
