package model

import "time"

// Blob is the metadata record for one content-addressed file in the store.
// This is a pure domain model with no database-specific dependencies or tags;
// it can be used across layers (HTTP, service, store) without coupling to
// persistence.
//
// Digest is the hex-encoded SHA-256 of the uncompressed content and is unique
// across all records. Filename maps 1:1 to a file under the storage root.
type Blob struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Digest    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}
