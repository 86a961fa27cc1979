package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/repositories"
)

const (
	cartIDPrefix     = "crt_"
	cartItemIDPrefix = "itm_"
)

var (
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartItemNotFound indicates the referenced cart line does not exist.
	ErrCartItemNotFound = errors.New("cart: item not found")
	// ErrBeverageUnavailable indicates the beverage cannot currently be ordered.
	ErrBeverageUnavailable = errors.New("cart: beverage unavailable")
	// ErrAddOnUnavailable indicates a requested add-on cannot currently be ordered.
	ErrAddOnUnavailable = errors.New("cart: add-on unavailable")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Beverages   repositories.BeverageRepository
	AddOns      repositories.AddOnRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type cartService struct {
	carts     repositories.CartRepository
	beverages repositories.BeverageRepository
	addOns    repositories.AddOnRepository
	clock     func() time.Time
	newID     func() string
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Beverages == nil {
		return nil, errors.New("cart service: beverage repository is required")
	}
	if deps.AddOns == nil {
		return nil, errors.New("cart service: add-on repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &cartService{
		carts:     deps.Carts,
		beverages: deps.Beverages,
		addOns:    deps.AddOns,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *cartService) GetOrCreateCart(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !isNotFound(err) {
		return Cart{}, mapCartRepositoryError(err)
	}

	now := s.clock()
	created, err := s.carts.UpsertCart(ctx, domain.Cart{
		ID:        cartIDPrefix + s.newID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Cart{}, mapCartRepositoryError(err)
	}
	return created, nil
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	beverageID := strings.TrimSpace(cmd.BeverageID)
	if beverageID == "" {
		return Cart{}, fmt.Errorf("%w: beverage id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	beverage, err := s.beverages.FindByID(ctx, beverageID)
	if err != nil {
		if isNotFound(err) {
			return Cart{}, fmt.Errorf("%w: unknown beverage %s", ErrBeverageUnavailable, beverageID)
		}
		return Cart{}, mapCartRepositoryError(err)
	}
	if !beverage.Available {
		return Cart{}, fmt.Errorf("%w: %s", ErrBeverageUnavailable, beverage.Name)
	}

	unitPrice := beverage.BasePrice
	addOnIDs := make([]string, 0, len(cmd.AddOnIDs))
	addOnNames := make([]string, 0, len(cmd.AddOnIDs))
	for _, raw := range cmd.AddOnIDs {
		addOnID := strings.TrimSpace(raw)
		if addOnID == "" {
			continue
		}
		addOn, err := s.addOns.FindByID(ctx, addOnID)
		if err != nil {
			if isNotFound(err) {
				return Cart{}, fmt.Errorf("%w: unknown add-on %s", ErrAddOnUnavailable, addOnID)
			}
			return Cart{}, mapCartRepositoryError(err)
		}
		if !addOn.Available {
			return Cart{}, fmt.Errorf("%w: %s", ErrAddOnUnavailable, addOn.Name)
		}
		unitPrice += addOn.Surcharge
		addOnIDs = append(addOnIDs, addOn.ID)
		addOnNames = append(addOnNames, addOn.Name)
	}

	cart, err := s.GetOrCreateCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	now := s.clock()
	note := strings.TrimSpace(cmd.Note)

	// An identical configuration merges into the existing line instead of
	// opening a duplicate one.
	items := slices.Clone(cart.Items)
	merged := false
	for i, existing := range items {
		if existing.BeverageID == beverageID && slices.Equal(existing.AddOnIDs, addOnIDs) && existing.Note == note {
			items[i].Quantity += cmd.Quantity
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, domain.CartItem{
			ID:           cartItemIDPrefix + s.newID(),
			BeverageID:   beverage.ID,
			BeverageName: beverage.Name,
			AddOnIDs:     addOnIDs,
			AddOnNames:   addOnNames,
			Quantity:     cmd.Quantity,
			UnitPrice:    unitPrice,
			Note:         note,
			AddedAt:      now,
		})
	}

	updated, err := s.carts.ReplaceItems(ctx, userID, items)
	if err != nil {
		return Cart{}, mapCartRepositoryError(err)
	}
	return updated, nil
}

func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return Cart{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity < 0 {
		return Cart{}, fmt.Errorf("%w: quantity must not be negative", ErrCartInvalidInput)
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return Cart{}, mapCartRepositoryError(err)
	}

	idx := slices.IndexFunc(cart.Items, func(item domain.CartItem) bool {
		return item.ID == itemID
	})
	if idx < 0 {
		return Cart{}, fmt.Errorf("%w: %s", ErrCartItemNotFound, itemID)
	}

	items := slices.Clone(cart.Items)
	if cmd.Quantity == 0 {
		// Zero removes the line.
		items = slices.Delete(items, idx, idx+1)
	} else {
		items[idx].Quantity = cmd.Quantity
	}

	updated, err := s.carts.ReplaceItems(ctx, userID, items)
	if err != nil {
		return Cart{}, mapCartRepositoryError(err)
	}
	return updated, nil
}

func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	return s.UpdateItemQuantity(ctx, UpdateCartItemCommand{
		UserID:   cmd.UserID,
		ItemID:   cmd.ItemID,
		Quantity: 0,
	})
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Clear(ctx, userID); err != nil {
		return mapCartRepositoryError(err)
	}
	return nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func mapCartRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCartItemNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("cart: repository unavailable: %w", err)
		}
	}

	return err
}
