package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cafeluna/api/internal/platform/auth"
	"github.com/cafeluna/api/internal/platform/httpx"
)

const (
	// KeyHeader carries the client-chosen idempotency key.
	KeyHeader = "Idempotency-Key"
	// ReplayHeader marks responses served from a stored outcome.
	ReplayHeader = "X-Idempotent-Replay"

	maxKeyLength = 128
)

type guardConfig struct {
	ttl    time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// Option customises the guard.
type Option func(*guardConfig)

// WithTTL overrides how long recorded submissions stay replayable.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *guardConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(cfg *guardConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithLogger injects the logger used for storage failures.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *guardConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Guard wraps the order-creation handler so a retried submission under the
// same Idempotency-Key replays the first response instead of running the
// handler again. Keys are scoped to the authenticated customer.
func Guard(store Store, opts ...Option) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	cfg := guardConfig{ttl: DefaultTTL, clock: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := strings.TrimSpace(r.Header.Get(KeyHeader))
			if key == "" {
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "Idempotency-Key header is required", http.StatusBadRequest))
				return
			}
			if len(key) > maxKeyLength {
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_invalid", "Idempotency-Key is too long", http.StatusBadRequest))
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
				return
			}

			owner := requester(ctx)
			scoped := owner + "/" + key
			hash := submissionHash(r, owner, body)
			now := cfg.clock().UTC()

			claim, err := store.ClaimKey(ctx, scoped, hash, now, cfg.ttl)
			switch {
			case errors.Is(err, ErrKeyReused):
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "Idempotency-Key was already used for a different request", http.StatusConflict))
				return
			case errors.Is(err, ErrSubmissionInFlight):
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "a request with this Idempotency-Key is still being processed", http.StatusConflict))
				return
			case err != nil:
				cfg.logger.Error("idempotency claim failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to verify the idempotency key", http.StatusServiceUnavailable))
				return
			}

			if claim.Replay != nil {
				writeReplay(w, claim.Replay)
				return
			}

			tee := newTeeWriter(w)
			next.ServeHTTP(tee, r)

			outcome := Outcome{
				StatusCode: tee.statusCode(),
				Header:     storableHeader(w.Header()),
				Body:       tee.bodyCopy(),
				StoredAt:   now,
			}
			// The order already exists by now, so a storage failure must not
			// turn the success into an error. Release the claim so a retry is
			// not stuck behind an in-flight marker.
			if err := store.StoreOutcome(ctx, scoped, hash, outcome, cfg.clock().UTC(), cfg.ttl); err != nil {
				cfg.logger.Warn("idempotency outcome not stored", zap.String("key", key), zap.Error(err))
				if err := store.ReleaseKey(ctx, scoped); err != nil {
					cfg.logger.Warn("idempotency claim not released", zap.String("key", key), zap.Error(err))
				}
			}
		})
	}
}

// bufferBody reads the request body and rewinds it for the handler.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func requester(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity.UID != "" {
		return identity.UID
	}
	return "anonymous"
}

// submissionHash fingerprints what a retry must match: the same customer
// posting the same payload to the same endpoint.
func submissionHash(r *http.Request, owner string, body []byte) string {
	digest := sha256.New()
	for _, part := range []string{r.Method, r.URL.Path, owner} {
		digest.Write([]byte(part))
		digest.Write([]byte{0})
	}
	digest.Write(body)
	return hex.EncodeToString(digest.Sum(nil))
}

func writeReplay(w http.ResponseWriter, outcome *Outcome) {
	header := w.Header()
	for name, values := range outcome.Header {
		header[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	header.Set(ReplayHeader, "true")

	statusCode := outcome.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	w.WriteHeader(statusCode)
	if len(outcome.Body) > 0 {
		_, _ = w.Write(outcome.Body)
	}
}

// teeWriter streams the response to the client while keeping a copy for the
// outcome record.
type teeWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func newTeeWriter(w http.ResponseWriter) *teeWriter {
	return &teeWriter{ResponseWriter: w}
}

func (t *teeWriter) WriteHeader(status int) {
	if t.status == 0 {
		t.status = status
	}
	t.ResponseWriter.WriteHeader(status)
}

func (t *teeWriter) Write(data []byte) (int, error) {
	if t.status == 0 {
		t.status = http.StatusOK
	}
	t.buf.Write(data)
	return t.ResponseWriter.Write(data)
}

func (t *teeWriter) statusCode() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}

func (t *teeWriter) bodyCopy() []byte {
	if t.buf.Len() == 0 {
		return nil
	}
	return append([]byte(nil), t.buf.Bytes()...)
}
