package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/cafeluna/api/internal/domain"
	pfirestore "github.com/cafeluna/api/internal/platform/firestore"
	"github.com/cafeluna/api/internal/repositories"
)

const usersCollection = "users"

// UserRepository persists accounts and loyalty balances.
type UserRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, usersCollection, nil, nil)
	return &UserRepository{base: base, provider: provider}, nil
}

// Insert stores a new account. The ID must be unique.
func (r *UserRepository) Insert(ctx context.Context, profile domain.UserProfile) error {
	if r == nil || r.base == nil {
		return errors.New("user repository not initialised")
	}
	userID := strings.TrimSpace(profile.ID)
	if userID == "" {
		return errors.New("user repository: user id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeUserDocument(profile)); err != nil {
		return pfirestore.WrapError("users.insert", err)
	}
	return nil
}

// FindByID fetches a single account.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.UserProfile{}, errors.New("user repository: user id is required")
	}
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return decodeUserDocument(doc.ID, doc.Data), nil
}

// FindByEmail looks an account up by its normalised email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.UserProfile{}, errors.New("user repository: email is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("email", "==", email).Limit(1)
	})
	if err != nil {
		return domain.UserProfile{}, err
	}
	if len(docs) == 0 {
		return domain.UserProfile{}, pfirestore.NewNotFoundError("users.find_by_email", email)
	}
	return decodeUserDocument(docs[0].ID, docs[0].Data), nil
}

// UpdateProfile replaces the stored account state.
func (r *UserRepository) UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	userID := strings.TrimSpace(profile.ID)
	if userID == "" {
		return domain.UserProfile{}, errors.New("user repository: user id is required")
	}

	doc := encodeUserDocument(profile)
	if _, err := r.base.Set(ctx, userID, doc); err != nil {
		return domain.UserProfile{}, err
	}
	return decodeUserDocument(userID, doc), nil
}

// AddLoyaltyPoints atomically increments the balance and returns it.
func (r *UserRepository) AddLoyaltyPoints(ctx context.Context, userID string, delta int64, now time.Time) (int64, error) {
	if r == nil || r.base == nil || r.provider == nil {
		return 0, errors.New("user repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("user repository: user id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, userID)
	if err != nil {
		return 0, err
	}

	var balance int64
	credit := func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc userDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return err
		}
		doc.LoyaltyPoints += delta
		doc.UpdatedAt = now.UTC()
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		balance = doc.LoyaltyPoints
		return nil
	}

	// Join a surrounding unit of work when one is active.
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		if err := credit(ctx, tx); err != nil {
			return 0, pfirestore.WrapError("users.add_loyalty_points", err)
		}
		return balance, nil
	}

	if err := r.provider.RunTransaction(ctx, credit); err != nil {
		return 0, pfirestore.WrapError("users.add_loyalty_points", err)
	}
	return balance, nil
}

type userDocument struct {
	Email         string    `firestore:"email"`
	DisplayName   string    `firestore:"displayName,omitempty"`
	Role          string    `firestore:"role"`
	PasswordHash  string    `firestore:"passwordHash"`
	LoyaltyPoints int64     `firestore:"loyaltyPoints"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func encodeUserDocument(profile domain.UserProfile) userDocument {
	return userDocument{
		Email:         strings.ToLower(strings.TrimSpace(profile.Email)),
		DisplayName:   strings.TrimSpace(profile.DisplayName),
		Role:          string(profile.Role),
		PasswordHash:  profile.PasswordHash,
		LoyaltyPoints: profile.LoyaltyPoints,
		CreatedAt:     profile.CreatedAt.UTC(),
		UpdatedAt:     profile.UpdatedAt.UTC(),
	}
}

func decodeUserDocument(id string, doc userDocument) domain.UserProfile {
	return domain.UserProfile{
		ID:            strings.TrimSpace(id),
		Email:         doc.Email,
		DisplayName:   doc.DisplayName,
		Role:          domain.Role(doc.Role),
		PasswordHash:  doc.PasswordHash,
		LoyaltyPoints: doc.LoyaltyPoints,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

var _ repositories.UserRepository = (*UserRepository)(nil)
