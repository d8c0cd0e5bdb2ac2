// Package ratelimit implements the per-client admission checks for the
// ingestion pipeline: a sliding window over request timestamps and a second
// sliding window over declared upload byte volume.
//
// The ledger is process-local and lives for the process lifetime. In a
// multi-process deployment it would have to move to a shared store; a single
// API node does not need that.
package ratelimit

import (
	"sync"
	"time"

	"blobvault/internal/config"
)

// Rejection carries the limiting parameters back to the client so it can
// back off intelligently. It doubles as the 429 response body.
type Rejection struct {
	Message   string `json:"error"`
	Limit     int64  `json:"limit"`
	WindowSec int    `json:"window"`
	Current   int64  `json:"current"`
	Requested int64  `json:"requested,omitempty"`
}

type volumeEntry struct {
	at    time.Time
	bytes int64
}

// Limiter tracks both sliding windows per client identity. All methods are
// safe for concurrent use; a single mutex makes each check-then-record
// atomic, so two concurrent requests for the same client can never both read
// "under limit" before either records itself. This is a hard limit, bought
// with serialized admission decisions — cheap next to a disk write.
type Limiter struct {
	cfg config.RateLimitConfig
	now func() time.Time

	mu       sync.Mutex
	requests map[string][]time.Time
	uploads  map[string][]volumeEntry
}

// New creates a Limiter with the given policy.
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		cfg:      cfg,
		now:      time.Now,
		requests: make(map[string][]time.Time),
		uploads:  make(map[string][]volumeEntry),
	}
}

// AllowRequest admits or rejects one request for the given client. Entries
// older than the window are pruned before the decision; admitted requests are
// recorded. A nil return means admitted.
func (l *Limiter) AllowRequest(client string) *Rejection {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-time.Duration(l.cfg.WindowSec) * time.Second)

	kept := l.requests[client][:0]
	for _, t := range l.requests[client] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.cfg.Requests {
		l.requests[client] = kept
		return &Rejection{
			Message:   "rate limit exceeded",
			Limit:     int64(l.cfg.Requests),
			WindowSec: l.cfg.WindowSec,
			Current:   int64(len(kept)),
		}
	}

	l.requests[client] = append(kept, now)
	return nil
}

// AllowUpload admits or rejects an upload of the given declared size. The
// size comes from the request's Content-Length, not from bytes actually read;
// a client that lies about it is caught later by the store's hard cap.
func (l *Limiter) AllowUpload(client string, size int64) *Rejection {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-time.Duration(l.cfg.UploadWindowSec) * time.Second)

	kept := l.uploads[client][:0]
	var total int64
	for _, e := range l.uploads[client] {
		if e.at.After(cutoff) {
			kept = append(kept, e)
			total += e.bytes
		}
	}

	if total+size > l.cfg.UploadBytes {
		l.uploads[client] = kept
		return &Rejection{
			Message:   "upload size limit exceeded",
			Limit:     l.cfg.UploadBytes,
			WindowSec: l.cfg.UploadWindowSec,
			Current:   total,
			Requested: size,
		}
	}

	l.uploads[client] = append(kept, volumeEntry{at: now, bytes: size})
	return nil
}
