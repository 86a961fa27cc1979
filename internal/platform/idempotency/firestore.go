package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection = "order_submissions"
	claimTxAttempts   = 5
)

// FirestoreStore keeps submission claims and outcomes in a Firestore
// collection. Expired claims are reclaimed on read; a TTL policy on the
// expires_at field prunes what no retry ever revisits.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// FirestoreOption customises the FirestoreStore.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection holding submission records.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// NewFirestoreStore constructs a Firestore-backed submission store.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{client: client, collection: defaultCollection}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

type submissionDoc struct {
	Key         string              `firestore:"key"`
	RequestHash string              `firestore:"request_hash"`
	Completed   bool                `firestore:"completed"`
	StatusCode  int                 `firestore:"status_code"`
	Header      map[string][]string `firestore:"header"`
	Body        []byte              `firestore:"body"`
	ClaimedAt   time.Time           `firestore:"claimed_at"`
	StoredAt    time.Time           `firestore:"stored_at"`
	ExpiresAt   time.Time           `firestore:"expires_at"`
}

// ClaimKey implements Store. The read-or-claim runs in a transaction so two
// racing retries cannot both claim the key.
func (s *FirestoreStore) ClaimKey(ctx context.Context, key, requestHash string, now time.Time, ttl time.Duration) (Claim, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(docID(key))

	var claim Claim
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		if err == nil {
			var doc submissionDoc
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if now.Before(doc.ExpiresAt) {
				if doc.RequestHash != requestHash {
					return ErrKeyReused
				}
				if !doc.Completed {
					return ErrSubmissionInFlight
				}
				claim = Claim{Replay: &Outcome{
					StatusCode: doc.StatusCode,
					Header:     doc.Header,
					Body:       doc.Body,
					StoredAt:   doc.StoredAt,
				}}
				return nil
			}
			// Expired records are free to reclaim.
		}

		claim = Claim{Fresh: true}
		return tx.Set(ref, submissionDoc{
			Key:         key,
			RequestHash: requestHash,
			ClaimedAt:   now,
			ExpiresAt:   now.Add(ttl),
		})
	}, firestore.MaxAttempts(claimTxAttempts))
	if err != nil {
		return Claim{}, err
	}
	return claim, nil
}

// StoreOutcome implements Store.
func (s *FirestoreStore) StoreOutcome(ctx context.Context, key, requestHash string, outcome Outcome, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(docID(key))

	body := outcome.Body
	if len(body) > 0 {
		body = append([]byte(nil), body...)
	}

	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		doc := submissionDoc{Key: key, RequestHash: requestHash, ClaimedAt: now}
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.RequestHash != requestHash {
				return ErrKeyReused
			}
		}

		doc.Completed = true
		doc.StatusCode = outcome.StatusCode
		doc.Header = outcome.Header
		doc.Body = body
		doc.StoredAt = now
		doc.ExpiresAt = now.Add(ttl)
		return tx.Set(ref, doc)
	}, firestore.MaxAttempts(claimTxAttempts))
}

// ReleaseKey implements Store.
func (s *FirestoreStore) ReleaseKey(ctx context.Context, key string) error {
	_, err := s.client.Collection(s.collection).Doc(docID(key)).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

var _ Store = (*FirestoreStore)(nil)
