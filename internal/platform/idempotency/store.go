// Package idempotency makes order submission safe to retry. A client posting
// an order sends an Idempotency-Key header; the first request under a key
// claims it, runs the handler and records the response, and every retry with
// the same key and payload is answered from that record instead of creating a
// second order.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// DefaultTTL is how long a recorded submission stays replayable.
const DefaultTTL = 24 * time.Hour

// Outcome is the recorded HTTP response of a completed submission.
type Outcome struct {
	StatusCode int
	Header     map[string][]string
	Body       []byte
	StoredAt   time.Time
}

// Claim is the result of claiming a key before the handler runs.
type Claim struct {
	// Fresh reports that this request now owns the key and must run the
	// handler.
	Fresh bool
	// Replay holds the stored outcome of the first submission when the key
	// already completed.
	Replay *Outcome
}

var (
	// ErrSubmissionInFlight means another request under the same key has
	// claimed it but not yet recorded an outcome.
	ErrSubmissionInFlight = errors.New("idempotency: submission still in flight")
	// ErrKeyReused means the key was presented with a different request
	// hash, so replaying would answer the wrong request.
	ErrKeyReused = errors.New("idempotency: key reused with a different payload")
)

// Store persists key claims and submission outcomes.
type Store interface {
	ClaimKey(ctx context.Context, key, requestHash string, now time.Time, ttl time.Duration) (Claim, error)
	StoreOutcome(ctx context.Context, key, requestHash string, outcome Outcome, now time.Time, ttl time.Duration) error
	ReleaseKey(ctx context.Context, key string) error
}

// docID derives a storage identifier from the scoped key. Client keys are
// free-form and may contain characters Firestore rejects in document ids.
func docID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// storableHeader copies the response headers worth replaying. Volatile and
// hop-by-hop entries are recomputed per response and must not be replayed.
func storableHeader(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	stored := make(map[string][]string, len(header))
	for name, values := range header {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Length", "Date", "Connection", "Keep-Alive", "Transfer-Encoding", "Trailer", "Upgrade":
			continue
		}
		stored[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if len(stored) == 0 {
		return nil
	}
	return stored
}
