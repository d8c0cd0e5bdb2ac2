package model

import "time"

// APIKey is the audit record for one issued key. KeyHash is the bcrypt hash
// of the secret token; the plaintext is returned to the caller exactly once at
// issue time and is never persisted or logged.
//
// Revocation is a soft transition: Active flips to false and the row remains.
type APIKey struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	KeyHash   string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used"`
	Active    bool       `json:"is_active"`
}
