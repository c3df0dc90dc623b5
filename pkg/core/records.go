package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Session is an authenticated-principal record with expiry.
// The token is the bearer credential; ID is a stable identifier that
// survives rotation and is what audit entries reference.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	OriginIP  string    `json:"origin_ip"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its TTL at the given instant.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AuditEntry is an immutable security-event record. Entries are appended to
// the ledger and never mutated.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Actor     string         `json:"actor"`
	Origin    string         `json:"origin,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToTree converts a typed record into the raw mapping form stored inside the
// document. Conversion goes through the JSON codec so the on-disk shape and
// the in-tree shape never diverge.
func ToTree(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding record tree: %w", err)
	}
	return m, nil
}

// FromTree converts a raw mapping from the document back into a typed record.
func FromTree(m any, out any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding record tree: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	return nil
}
