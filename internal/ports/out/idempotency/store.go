package idempotency

import (
	"context"
	"time"
)

// Key is the caller-provided idempotency key (Idempotency-Key header).
type Key string

// Fingerprint identifies the route a key was used on.
// Route is represented as HTTP method + path template (e.g. "POST /receipts/process").
type Fingerprint struct {
	Key    Key
	Method string
	Route  string
}

// Record is the stored response we can replay for a duplicate request.
// RequestHash identifies the request body that produced it.
type Record struct {
	RequestHash string
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists idempotency records for replaying safe responses on retries.
//
// A fingerprint holds at most one record and it is never replaced.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)

	// PutIfAbsent stores rec unless fp already has a record. It returns the
	// record held under fp afterwards and whether it is rec.
	PutIfAbsent(ctx context.Context, fp Fingerprint, rec Record) (Record, bool, error)
}
