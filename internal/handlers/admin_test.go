package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/services"
)

type stubStatsService struct {
	reportFn func(ctx context.Context) (services.StatsReport, error)
}

func (s *stubStatsService) Report(ctx context.Context) (services.StatsReport, error) {
	return s.reportFn(ctx)
}

func newAdminRouter(catalog *stubCatalogService, stats *stubStatsService) chi.Router {
	return NewRouter(WithAdminRoutes(NewAdminHandlers(newTestAuthenticator(), catalog, stats).Routes))
}

func TestAdminStatsStaffOnly(t *testing.T) {
	stats := &stubStatsService{
		reportFn: func(ctx context.Context) (services.StatsReport, error) {
			return services.StatsReport{
				OrdersToday: 7,
				OrdersByStatus: map[domain.OrderStatus]int{
					domain.OrderStatusPending: 2,
					domain.OrderStatusReady:   1,
				},
				GrossRevenue: 15300,
				GeneratedAt:  time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	router := newAdminRouter(&stubCatalogService{}, stats)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/admin/stats", "customer-token", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for customer, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/admin/stats", "staff-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for staff, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OrdersToday    int            `json:"orders_today"`
		OrdersByStatus map[string]int `json:"orders_by_status"`
		GrossRevenue   int64          `json:"gross_revenue"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OrdersToday != 7 || resp.GrossRevenue != 15300 {
		t.Fatalf("unexpected report %+v", resp)
	}
	if resp.OrdersByStatus["pending"] != 2 {
		t.Fatalf("expected 2 pending orders, got %d", resp.OrdersByStatus["pending"])
	}
}

func TestAdminCreateBeverage(t *testing.T) {
	var captured services.UpsertBeverageCommand
	catalog := &stubCatalogService{
		upsertBeverageFn: func(ctx context.Context, cmd services.UpsertBeverageCommand) (services.Beverage, error) {
			captured = cmd
			return testBeverage(), nil
		},
	}
	router := newAdminRouter(catalog, &stubStatsService{})

	body := `{"name":"Espresso","kind":"cafe","base_price":600,"available":true}`
	rec := doRequest(t, router, http.MethodPost, "/api/v1/admin/beverages", "staff-token", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.BeverageID != nil {
		t.Fatalf("expected create without id, got %v", *captured.BeverageID)
	}
	if captured.Name != "Espresso" || captured.BasePrice != 600 {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.ActorID != "usr_staff" {
		t.Fatalf("expected actor from token, got %q", captured.ActorID)
	}
}

func TestAdminUpdateBeverageUsesPathID(t *testing.T) {
	var captured services.UpsertBeverageCommand
	catalog := &stubCatalogService{
		upsertBeverageFn: func(ctx context.Context, cmd services.UpsertBeverageCommand) (services.Beverage, error) {
			captured = cmd
			return testBeverage(), nil
		},
	}
	router := newAdminRouter(catalog, &stubStatsService{})

	body := `{"name":"Espresso Duplo","kind":"cafe","base_price":900,"available":true}`
	rec := doRequest(t, router, http.MethodPut, "/api/v1/admin/beverages/bev_espresso", "staff-token", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.BeverageID == nil || *captured.BeverageID != "bev_espresso" {
		t.Fatalf("expected path id, got %v", captured.BeverageID)
	}
}

func TestAdminDeleteAddOn(t *testing.T) {
	var deleted string
	catalog := &stubCatalogService{
		deleteAddOnFn: func(ctx context.Context, addOnID string) error {
			deleted = addOnID
			return nil
		},
	}
	router := newAdminRouter(catalog, &stubStatsService{})

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/admin/add-ons/add_oat", "staff-token", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if deleted != "add_oat" {
		t.Fatalf("expected add_oat deleted, got %q", deleted)
	}
}

func TestAdminListBeveragesIncludesUnavailable(t *testing.T) {
	var captured services.BeverageListFilter
	catalog := &stubCatalogService{
		listBeveragesFn: func(ctx context.Context, filter services.BeverageListFilter) (domain.CursorPage[services.Beverage], error) {
			captured = filter
			return domain.CursorPage[services.Beverage]{}, nil
		},
	}
	router := newAdminRouter(catalog, &stubStatsService{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/admin/beverages", "staff-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if captured.OnlyAvailable {
		t.Fatal("staff listing must include unavailable items")
	}
}
