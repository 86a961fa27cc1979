package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/cafeluna/api/internal/domain"
	pfirestore "github.com/cafeluna/api/internal/platform/firestore"
	"github.com/cafeluna/api/internal/repositories"
)

const (
	beveragesCollection    = "beverages"
	defaultCatalogPageSize = 100
)

// BeverageRepository persists the beverage menu.
type BeverageRepository struct {
	base *pfirestore.BaseRepository[beverageDocument]
}

// NewBeverageRepository constructs a Firestore-backed beverage repository.
func NewBeverageRepository(provider *pfirestore.Provider) (*BeverageRepository, error) {
	if provider == nil {
		return nil, errors.New("beverage repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[beverageDocument](provider, beveragesCollection, nil, nil)
	return &BeverageRepository{base: base}, nil
}

// Upsert persists the beverage and returns the stored state.
func (r *BeverageRepository) Upsert(ctx context.Context, beverage domain.Beverage) (domain.Beverage, error) {
	if r == nil || r.base == nil {
		return domain.Beverage{}, errors.New("beverage repository not initialised")
	}
	beverageID := strings.TrimSpace(beverage.ID)
	if beverageID == "" {
		return domain.Beverage{}, errors.New("beverage repository: beverage id is required")
	}

	doc := encodeBeverageDocument(beverage)
	if _, err := r.base.Set(ctx, beverageID, doc); err != nil {
		return domain.Beverage{}, err
	}
	return decodeBeverageDocument(beverageID, doc), nil
}

// FindByID fetches a single beverage.
func (r *BeverageRepository) FindByID(ctx context.Context, beverageID string) (domain.Beverage, error) {
	if r == nil || r.base == nil {
		return domain.Beverage{}, errors.New("beverage repository not initialised")
	}
	beverageID = strings.TrimSpace(beverageID)
	if beverageID == "" {
		return domain.Beverage{}, errors.New("beverage repository: beverage id is required")
	}
	doc, err := r.base.Get(ctx, beverageID)
	if err != nil {
		return domain.Beverage{}, err
	}
	return decodeBeverageDocument(doc.ID, doc.Data), nil
}

// List returns beverages ordered by name.
func (r *BeverageRepository) List(ctx context.Context, filter repositories.BeverageFilter) (domain.CursorPage[domain.Beverage], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Beverage]{}, errors.New("beverage repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = defaultCatalogPageSize
	}
	fetchLimit := limit + 1

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		name, id, err := decodeNameToken(token)
		if err != nil {
			return domain.CursorPage[domain.Beverage]{}, fmt.Errorf("beverage repository: invalid page token: %w", err)
		}
		startAfter = []any{name, id}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Kind != nil {
			q = q.Where("kind", "==", string(*filter.Kind))
		}
		if filter.OnlyAvailable {
			q = q.Where("available", "==", true)
		}
		q = q.OrderBy("name", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.Beverage]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeNameToken(last.Data.Name, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Beverage, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeBeverageDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Beverage]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// Delete removes the beverage from the menu.
func (r *BeverageRepository) Delete(ctx context.Context, beverageID string) error {
	if r == nil || r.base == nil {
		return errors.New("beverage repository not initialised")
	}
	beverageID = strings.TrimSpace(beverageID)
	if beverageID == "" {
		return errors.New("beverage repository: beverage id is required")
	}
	return r.base.Delete(ctx, beverageID)
}

type beverageDocument struct {
	Name        string    `firestore:"name"`
	Kind        string    `firestore:"kind"`
	Description string    `firestore:"description,omitempty"`
	BasePrice   int64     `firestore:"basePrice"`
	Available   bool      `firestore:"available"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func encodeBeverageDocument(beverage domain.Beverage) beverageDocument {
	return beverageDocument{
		Name:        strings.TrimSpace(beverage.Name),
		Kind:        string(beverage.Kind),
		Description: strings.TrimSpace(beverage.Description),
		BasePrice:   beverage.BasePrice,
		Available:   beverage.Available,
		CreatedAt:   beverage.CreatedAt.UTC(),
		UpdatedAt:   beverage.UpdatedAt.UTC(),
	}
}

func decodeBeverageDocument(id string, doc beverageDocument) domain.Beverage {
	return domain.Beverage{
		ID:          strings.TrimSpace(id),
		Name:        doc.Name,
		Kind:        domain.BeverageKind(doc.Kind),
		Description: doc.Description,
		BasePrice:   doc.BasePrice,
		Available:   doc.Available,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func encodeNameToken(name, docID string) string {
	payload := fmt.Sprintf("%s|%s", name, docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeNameToken(token string) (string, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return "", "", errors.New("invalid token structure")
	}
	return parts[0], parts[1], nil
}

var _ repositories.BeverageRepository = (*BeverageRepository)(nil)
