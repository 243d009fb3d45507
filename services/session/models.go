package session

import (
	"encoding/json"
	"time"
)

// SessionVariable represents a row in the session_variables table. One row
// per (session, key); the value is stored as JSON so arbitrary shapes
// round-trip.
type SessionVariable struct {
	SessionID string          `db:"session_id"`
	Key       string          `db:"key"`
	Value     json.RawMessage `db:"value"`
	Scope     string          `db:"scope"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// decode unmarshals the stored JSON value. A row that cannot be decoded is
// surfaced as its raw string rather than dropped; templates can still render
// it and operators can see what was stored.
func (v *SessionVariable) decode() any {
	var out any
	if err := json.Unmarshal(v.Value, &out); err != nil {
		return string(v.Value)
	}
	return out
}
