package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/repositories"
)

type stubBeverageRepo struct {
	findFn   func(context.Context, string) (domain.Beverage, error)
	listFn   func(context.Context, repositories.BeverageFilter) (domain.CursorPage[domain.Beverage], error)
	upsertFn func(context.Context, domain.Beverage) (domain.Beverage, error)
	deleteFn func(context.Context, string) error
}

func (s *stubBeverageRepo) Upsert(ctx context.Context, b domain.Beverage) (domain.Beverage, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, b)
	}
	return b, nil
}

func (s *stubBeverageRepo) FindByID(ctx context.Context, id string) (domain.Beverage, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return domain.Beverage{}, notFoundErr{}
}

func (s *stubBeverageRepo) List(ctx context.Context, filter repositories.BeverageFilter) (domain.CursorPage[domain.Beverage], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Beverage]{}, nil
}

func (s *stubBeverageRepo) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

type stubAddOnRepo struct {
	findFn   func(context.Context, string) (domain.AddOn, error)
	listFn   func(context.Context, repositories.AddOnFilter) (domain.CursorPage[domain.AddOn], error)
	upsertFn func(context.Context, domain.AddOn) (domain.AddOn, error)
	deleteFn func(context.Context, string) error
}

func (s *stubAddOnRepo) Upsert(ctx context.Context, a domain.AddOn) (domain.AddOn, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, a)
	}
	return a, nil
}

func (s *stubAddOnRepo) FindByID(ctx context.Context, id string) (domain.AddOn, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return domain.AddOn{}, notFoundErr{}
}

func (s *stubAddOnRepo) List(ctx context.Context, filter repositories.AddOnFilter) (domain.CursorPage[domain.AddOn], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.AddOn]{}, nil
}

func (s *stubAddOnRepo) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

func espressoRepo() *stubBeverageRepo {
	return &stubBeverageRepo{
		findFn: func(_ context.Context, id string) (domain.Beverage, error) {
			if id != "bev_espresso" {
				return domain.Beverage{}, notFoundErr{}
			}
			return domain.Beverage{ID: id, Name: "Espresso", BasePrice: 600, Available: true}, nil
		},
	}
}

func oatMilkRepo() *stubAddOnRepo {
	return &stubAddOnRepo{
		findFn: func(_ context.Context, id string) (domain.AddOn, error) {
			if id != "add_oat" {
				return domain.AddOn{}, notFoundErr{}
			}
			return domain.AddOn{ID: id, Name: "Leite de aveia", Surcharge: 150, Available: true}, nil
		},
	}
}

func newTestCartService(t *testing.T, deps CartServiceDeps) CartService {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = func() time.Time {
			return time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
		}
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "000TEST" }
	}
	svc, err := NewCartService(deps)
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	return svc
}

func TestCartServiceAddItemPricesLine(t *testing.T) {
	var replaced []domain.CartItem
	carts := &stubCartRepo{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{ID: "crt_1", UserID: userID}, nil
		},
		replaceFn: func(_ context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
			replaced = items
			return domain.Cart{ID: "crt_1", UserID: userID, Items: items}, nil
		},
	}

	svc := newTestCartService(t, CartServiceDeps{
		Carts:     carts,
		Beverages: espressoRepo(),
		AddOns:    oatMilkRepo(),
	})

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:     "usr_1",
		BeverageID: "bev_espresso",
		AddOnIDs:   []string{"add_oat"},
		Quantity:   2,
		Note:       "bem quente",
	})
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(cart.Items))
	}
	item := replaced[0]
	if item.UnitPrice != 750 {
		t.Errorf("unit price = %d, want base plus surcharge 750", item.UnitPrice)
	}
	if item.BeverageName != "Espresso" {
		t.Errorf("beverage name not snapshotted: %q", item.BeverageName)
	}
	if len(item.AddOnNames) != 1 || item.AddOnNames[0] != "Leite de aveia" {
		t.Errorf("add-on names not snapshotted: %v", item.AddOnNames)
	}
	if item.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", item.Quantity)
	}
}

func TestCartServiceAddItemMergesIdenticalLines(t *testing.T) {
	existing := domain.CartItem{
		ID:           "itm_1",
		BeverageID:   "bev_espresso",
		BeverageName: "Espresso",
		AddOnIDs:     []string{"add_oat"},
		AddOnNames:   []string{"Leite de aveia"},
		Quantity:     1,
		UnitPrice:    750,
		Note:         "bem quente",
	}

	var replaced []domain.CartItem
	carts := &stubCartRepo{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{ID: "crt_1", UserID: userID, Items: []domain.CartItem{existing}}, nil
		},
		replaceFn: func(_ context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
			replaced = items
			return domain.Cart{ID: "crt_1", UserID: userID, Items: items}, nil
		},
	}

	svc := newTestCartService(t, CartServiceDeps{
		Carts:     carts,
		Beverages: espressoRepo(),
		AddOns:    oatMilkRepo(),
	})

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:     "usr_1",
		BeverageID: "bev_espresso",
		AddOnIDs:   []string{"add_oat"},
		Quantity:   2,
		Note:       "bem quente",
	})
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if len(replaced) != 1 {
		t.Fatalf("identical line should merge, got %d lines", len(replaced))
	}
	if replaced[0].Quantity != 3 {
		t.Errorf("merged quantity = %d, want 3", replaced[0].Quantity)
	}
	if replaced[0].ID != "itm_1" {
		t.Errorf("merged line must keep its id, got %s", replaced[0].ID)
	}
}

func TestCartServiceAddItemDifferentNoteOpensNewLine(t *testing.T) {
	existing := domain.CartItem{
		ID:         "itm_1",
		BeverageID: "bev_espresso",
		Quantity:   1,
		UnitPrice:  600,
		Note:       "bem quente",
	}

	var replaced []domain.CartItem
	carts := &stubCartRepo{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{ID: "crt_1", UserID: userID, Items: []domain.CartItem{existing}}, nil
		},
		replaceFn: func(_ context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
			replaced = items
			return domain.Cart{ID: "crt_1", UserID: userID, Items: items}, nil
		},
	}

	svc := newTestCartService(t, CartServiceDeps{
		Carts:     carts,
		Beverages: espressoRepo(),
		AddOns:    oatMilkRepo(),
	})

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:     "usr_1",
		BeverageID: "bev_espresso",
		Quantity:   1,
	})
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if len(replaced) != 2 {
		t.Fatalf("different note must open a new line, got %d lines", len(replaced))
	}
}

func TestCartServiceAddItemRejectsUnavailableBeverage(t *testing.T) {
	beverages := &stubBeverageRepo{
		findFn: func(_ context.Context, id string) (domain.Beverage, error) {
			return domain.Beverage{ID: id, Name: "Cold Brew", BasePrice: 900, Available: false}, nil
		},
	}

	svc := newTestCartService(t, CartServiceDeps{
		Carts:     &stubCartRepo{},
		Beverages: beverages,
		AddOns:    oatMilkRepo(),
	})

	_, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:     "usr_1",
		BeverageID: "bev_coldbrew",
		Quantity:   1,
	})
	if !errors.Is(err, ErrBeverageUnavailable) {
		t.Fatalf("error = %v, want ErrBeverageUnavailable", err)
	}
}

func TestCartServiceGetOrCreateCartCreatesOnMiss(t *testing.T) {
	var upserted domain.Cart
	carts := &stubCartRepo{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{}, notFoundErr{}
		},
		upsertFn: func(_ context.Context, cart domain.Cart) (domain.Cart, error) {
			upserted = cart
			return cart, nil
		},
	}

	svc := newTestCartService(t, CartServiceDeps{
		Carts:     carts,
		Beverages: espressoRepo(),
		AddOns:    oatMilkRepo(),
	})

	cart, err := svc.GetOrCreateCart(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("GetOrCreateCart returned error: %v", err)
	}
	if cart.UserID != "usr_1" {
		t.Errorf("unexpected user id: %s", cart.UserID)
	}
	if upserted.ID == "" {
		t.Error("new cart must be assigned an id")
	}
}

func TestCartServiceUpdateItemQuantityZeroRemovesLine(t *testing.T) {
	existing := []domain.CartItem{
		{ID: "itm_1", BeverageID: "bev_espresso", Quantity: 2, UnitPrice: 600},
		{ID: "itm_2", BeverageID: "bev_latte", Quantity: 1, UnitPrice: 1250},
	}

	var replaced []domain.CartItem
	carts := &stubCartRepo{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{ID: "crt_1", UserID: userID, Items: existing}, nil
		},
		replaceFn: func(_ context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
			replaced = items
			return domain.Cart{ID: "crt_1", UserID: userID, Items: items}, nil
		},
	}

	svc := newTestCartService(t, CartServiceDeps{
		Carts:     carts,
		Beverages: espressoRepo(),
		AddOns:    oatMilkRepo(),
	})

	_, err := svc.UpdateItemQuantity(context.Background(), UpdateCartItemCommand{
		UserID:   "usr_1",
		ItemID:   "itm_1",
		Quantity: 0,
	})
	if err != nil {
		t.Fatalf("UpdateItemQuantity returned error: %v", err)
	}
	if len(replaced) != 1 || replaced[0].ID != "itm_2" {
		t.Errorf("unexpected remaining lines: %+v", replaced)
	}
}

func TestCartServiceUpdateItemQuantityUnknownItem(t *testing.T) {
	carts := &stubCartRepo{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{ID: "crt_1", UserID: userID}, nil
		},
	}

	svc := newTestCartService(t, CartServiceDeps{
		Carts:     carts,
		Beverages: espressoRepo(),
		AddOns:    oatMilkRepo(),
	})

	_, err := svc.UpdateItemQuantity(context.Background(), UpdateCartItemCommand{
		UserID:   "usr_1",
		ItemID:   "itm_missing",
		Quantity: 1,
	})
	if !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("error = %v, want ErrCartItemNotFound", err)
	}
}
