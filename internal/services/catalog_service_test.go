package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/cafeluna/api/internal/domain"
)

func newTestCatalogService(t *testing.T, deps CatalogServiceDeps) CatalogService {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = func() time.Time {
			return time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC)
		}
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "000TEST" }
	}
	svc, err := NewCatalogService(deps)
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func TestCatalogServiceUpsertBeverageCreates(t *testing.T) {
	var saved domain.Beverage
	beverages := &stubBeverageRepo{
		upsertFn: func(_ context.Context, b domain.Beverage) (domain.Beverage, error) {
			saved = b
			return b, nil
		},
	}

	svc := newTestCatalogService(t, CatalogServiceDeps{
		Beverages: beverages,
		AddOns:    &stubAddOnRepo{},
	})

	beverage, err := svc.UpsertBeverage(context.Background(), UpsertBeverageCommand{
		Name:      "Cappuccino",
		Kind:      "cafe",
		BasePrice: 1100,
		Available: true,
	})
	if err != nil {
		t.Fatalf("UpsertBeverage returned error: %v", err)
	}
	if beverage.ID != "bev_000TEST" {
		t.Errorf("unexpected id: %s", beverage.ID)
	}
	if saved.Kind != domain.BeverageKindCoffee {
		t.Errorf("unexpected kind: %s", saved.Kind)
	}
	if saved.CreatedAt.IsZero() {
		t.Error("created timestamp must be set")
	}
}

func TestCatalogServiceUpsertBeverageUpdatesKeepsCreatedAt(t *testing.T) {
	createdAt := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	id := "bev_existing"
	var saved domain.Beverage
	beverages := &stubBeverageRepo{
		findFn: func(_ context.Context, beverageID string) (domain.Beverage, error) {
			return domain.Beverage{ID: beverageID, Name: "Cappuccino", Kind: domain.BeverageKindCoffee, CreatedAt: createdAt}, nil
		},
		upsertFn: func(_ context.Context, b domain.Beverage) (domain.Beverage, error) {
			saved = b
			return b, nil
		},
	}

	svc := newTestCatalogService(t, CatalogServiceDeps{
		Beverages: beverages,
		AddOns:    &stubAddOnRepo{},
	})

	_, err := svc.UpsertBeverage(context.Background(), UpsertBeverageCommand{
		BeverageID: &id,
		Name:       "Cappuccino Duplo",
		Kind:       "cafe",
		BasePrice:  1300,
		Available:  true,
	})
	if err != nil {
		t.Fatalf("UpsertBeverage returned error: %v", err)
	}
	if saved.ID != id {
		t.Errorf("unexpected id: %s", saved.ID)
	}
	if !saved.CreatedAt.Equal(createdAt) {
		t.Errorf("created timestamp must be preserved, got %s", saved.CreatedAt)
	}
}

func TestCatalogServiceUpsertBeverageRejectsUnknownKind(t *testing.T) {
	svc := newTestCatalogService(t, CatalogServiceDeps{
		Beverages: &stubBeverageRepo{},
		AddOns:    &stubAddOnRepo{},
	})

	_, err := svc.UpsertBeverage(context.Background(), UpsertBeverageCommand{
		Name:      "Refrigerante",
		Kind:      "refrigerante",
		BasePrice: 700,
	})
	if !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("error = %v, want ErrCatalogInvalidInput", err)
	}
}

func TestCatalogServiceGetBeverageNotFound(t *testing.T) {
	svc := newTestCatalogService(t, CatalogServiceDeps{
		Beverages: &stubBeverageRepo{},
		AddOns:    &stubAddOnRepo{},
	})

	_, err := svc.GetBeverage(context.Background(), "bev_missing")
	if !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("error = %v, want ErrCatalogNotFound", err)
	}
}

func TestCatalogServiceUpsertAddOn(t *testing.T) {
	var saved domain.AddOn
	addOns := &stubAddOnRepo{
		upsertFn: func(_ context.Context, a domain.AddOn) (domain.AddOn, error) {
			saved = a
			return a, nil
		},
	}

	svc := newTestCatalogService(t, CatalogServiceDeps{
		Beverages: &stubBeverageRepo{},
		AddOns:    addOns,
	})

	addOn, err := svc.UpsertAddOn(context.Background(), UpsertAddOnCommand{
		Name:      "Shot extra",
		Category:  "cafe",
		Surcharge: 200,
		Available: true,
	})
	if err != nil {
		t.Fatalf("UpsertAddOn returned error: %v", err)
	}
	if addOn.ID != "add_000TEST" {
		t.Errorf("unexpected id: %s", addOn.ID)
	}
	if saved.Surcharge != 200 {
		t.Errorf("unexpected surcharge: %d", saved.Surcharge)
	}
}
