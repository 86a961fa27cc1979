package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/cafeluna/api/internal/domain"
	pfirestore "github.com/cafeluna/api/internal/platform/firestore"
	"github.com/cafeluna/api/internal/repositories"
)

const cartsCollection = "carts"

// CartRepository persists the per-customer open cart. The user ID doubles as
// the document ID so each customer has exactly one cart.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil)
	return &CartRepository{base: base}, nil
}

// GetCart loads the cart for the given user.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCartDocument(uid, doc.Data), nil
}

// UpsertCart persists the full cart state.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc := encodeCartDocument(cart)
	if _, err := r.base.Set(ctx, uid, doc); err != nil {
		return domain.Cart{}, err
	}
	return decodeCartDocument(uid, doc), nil
}

// ReplaceItems swaps the cart's line items wholesale.
func (r *CartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	cart, err := r.GetCart(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			cart = domain.Cart{ID: uid, UserID: uid, CreatedAt: time.Now().UTC()}
		} else {
			return domain.Cart{}, err
		}
	}

	cart.Items = items
	cart.UpdatedAt = time.Now().UTC()
	return r.UpsertCart(ctx, cart)
}

// Clear empties the cart. It participates in a surrounding transaction so
// order creation removes the cart atomically with the order write.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}
	return r.base.Delete(ctx, uid)
}

type cartDocument struct {
	CartID    string             `firestore:"cartId,omitempty"`
	Items     []cartItemDocument `firestore:"items"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ItemID       string    `firestore:"itemId"`
	BeverageID   string    `firestore:"beverageId"`
	BeverageName string    `firestore:"beverageName"`
	AddOnIDs     []string  `firestore:"addOnIds,omitempty"`
	AddOnNames   []string  `firestore:"addOnNames,omitempty"`
	Quantity     int       `firestore:"quantity"`
	UnitPrice    int64     `firestore:"unitPrice"`
	Note         string    `firestore:"note,omitempty"`
	AddedAt      time.Time `firestore:"addedAt"`
}

func encodeCartDocument(cart domain.Cart) cartDocument {
	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemDocument{
			ItemID:       strings.TrimSpace(item.ID),
			BeverageID:   strings.TrimSpace(item.BeverageID),
			BeverageName: strings.TrimSpace(item.BeverageName),
			AddOnIDs:     append([]string(nil), item.AddOnIDs...),
			AddOnNames:   append([]string(nil), item.AddOnNames...),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Note:         strings.TrimSpace(item.Note),
			AddedAt:      item.AddedAt.UTC(),
		})
	}

	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := cart.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	return cartDocument{
		CartID:    strings.TrimSpace(cart.ID),
		Items:     items,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func decodeCartDocument(userID string, doc cartDocument) domain.Cart {
	items := make([]domain.CartItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.CartItem{
			ID:           item.ItemID,
			BeverageID:   item.BeverageID,
			BeverageName: item.BeverageName,
			AddOnIDs:     append([]string(nil), item.AddOnIDs...),
			AddOnNames:   append([]string(nil), item.AddOnNames...),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Note:         item.Note,
			AddedAt:      item.AddedAt,
		})
	}

	cartID := doc.CartID
	if cartID == "" {
		cartID = userID
	}

	return domain.Cart{
		ID:        cartID,
		UserID:    userID,
		Items:     items,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

var _ repositories.CartRepository = (*CartRepository)(nil)
