package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/cafeluna/api/internal/domain"
	pfirestore "github.com/cafeluna/api/internal/platform/firestore"
	"github.com/cafeluna/api/internal/repositories"
)

const addOnsCollection = "addOns"

// AddOnRepository persists beverage customizations.
type AddOnRepository struct {
	base *pfirestore.BaseRepository[addOnDocument]
}

// NewAddOnRepository constructs a Firestore-backed add-on repository.
func NewAddOnRepository(provider *pfirestore.Provider) (*AddOnRepository, error) {
	if provider == nil {
		return nil, errors.New("add-on repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[addOnDocument](provider, addOnsCollection, nil, nil)
	return &AddOnRepository{base: base}, nil
}

// Upsert persists the add-on and returns the stored state.
func (r *AddOnRepository) Upsert(ctx context.Context, addOn domain.AddOn) (domain.AddOn, error) {
	if r == nil || r.base == nil {
		return domain.AddOn{}, errors.New("add-on repository not initialised")
	}
	addOnID := strings.TrimSpace(addOn.ID)
	if addOnID == "" {
		return domain.AddOn{}, errors.New("add-on repository: add-on id is required")
	}

	doc := encodeAddOnDocument(addOn)
	if _, err := r.base.Set(ctx, addOnID, doc); err != nil {
		return domain.AddOn{}, err
	}
	return decodeAddOnDocument(addOnID, doc), nil
}

// FindByID fetches a single add-on.
func (r *AddOnRepository) FindByID(ctx context.Context, addOnID string) (domain.AddOn, error) {
	if r == nil || r.base == nil {
		return domain.AddOn{}, errors.New("add-on repository not initialised")
	}
	addOnID = strings.TrimSpace(addOnID)
	if addOnID == "" {
		return domain.AddOn{}, errors.New("add-on repository: add-on id is required")
	}
	doc, err := r.base.Get(ctx, addOnID)
	if err != nil {
		return domain.AddOn{}, err
	}
	return decodeAddOnDocument(doc.ID, doc.Data), nil
}

// List returns add-ons ordered by name.
func (r *AddOnRepository) List(ctx context.Context, filter repositories.AddOnFilter) (domain.CursorPage[domain.AddOn], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.AddOn]{}, errors.New("add-on repository not initialised")
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
			return domain.CursorPage[domain.AddOn]{}, fmt.Errorf("add-on repository: invalid page token: %w", err)
		}
		startAfter = []any{name, id}
	}

	var category string
	if filter.Category != nil {
		category = strings.TrimSpace(*filter.Category)
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if category != "" {
			q = q.Where("category", "==", category)
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
		return domain.CursorPage[domain.AddOn]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeNameToken(last.Data.Name, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.AddOn, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeAddOnDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.AddOn]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// Delete removes the add-on.
func (r *AddOnRepository) Delete(ctx context.Context, addOnID string) error {
	if r == nil || r.base == nil {
		return errors.New("add-on repository not initialised")
	}
	addOnID = strings.TrimSpace(addOnID)
	if addOnID == "" {
		return errors.New("add-on repository: add-on id is required")
	}
	return r.base.Delete(ctx, addOnID)
}

type addOnDocument struct {
	Name      string    `firestore:"name"`
	Category  string    `firestore:"category,omitempty"`
	Surcharge int64     `firestore:"surcharge"`
	Available bool      `firestore:"available"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func encodeAddOnDocument(addOn domain.AddOn) addOnDocument {
	return addOnDocument{
		Name:      strings.TrimSpace(addOn.Name),
		Category:  strings.TrimSpace(addOn.Category),
		Surcharge: addOn.Surcharge,
		Available: addOn.Available,
		CreatedAt: addOn.CreatedAt.UTC(),
		UpdatedAt: addOn.UpdatedAt.UTC(),
	}
}

func decodeAddOnDocument(id string, doc addOnDocument) domain.AddOn {
	return domain.AddOn{
		ID:        strings.TrimSpace(id),
		Name:      doc.Name,
		Category:  doc.Category,
		Surcharge: doc.Surcharge,
		Available: doc.Available,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

var _ repositories.AddOnRepository = (*AddOnRepository)(nil)
