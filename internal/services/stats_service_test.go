package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/repositories"
)

func TestStatsServiceReport(t *testing.T) {
	now := time.Date(2025, 5, 1, 16, 0, 0, 0, time.UTC)
	firstPage := []domain.Order{
		{ID: "ord_1", Status: domain.OrderStatusDelivered, Totals: domain.OrderTotals{Total: 2327}},
		{ID: "ord_2", Status: domain.OrderStatusCancelled, Totals: domain.OrderTotals{Total: 1500}},
	}
	secondPage := []domain.Order{
		{ID: "ord_3", Status: domain.OrderStatusInPreparation, Totals: domain.OrderTotals{Total: 900}},
	}

	calls := 0
	orders := &stubOrderRepo{
		listFn: func(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			calls++
			if filter.DateRange.From == nil || !filter.DateRange.From.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
				t.Fatalf("unexpected range start: %v", filter.DateRange.From)
			}
			if calls == 1 {
				return domain.CursorPage[domain.Order]{Items: firstPage, NextPageToken: "page2"}, nil
			}
			if filter.Pagination.PageToken != "page2" {
				t.Fatalf("unexpected page token: %s", filter.Pagination.PageToken)
			}
			return domain.CursorPage[domain.Order]{Items: secondPage}, nil
		},
	}

	svc, err := NewStatsService(StatsServiceDeps{
		Orders: orders,
		Clock:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new stats service: %v", err)
	}

	report, err := svc.Report(context.Background())
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}

	if report.OrdersToday != 3 {
		t.Errorf("orders today = %d, want 3", report.OrdersToday)
	}
	if report.OrdersByStatus[domain.OrderStatusCancelled] != 1 {
		t.Errorf("unexpected cancelled count: %d", report.OrdersByStatus[domain.OrderStatusCancelled])
	}
	if report.GrossRevenue != 3227 {
		t.Errorf("gross revenue = %d, want cancelled orders excluded (3227)", report.GrossRevenue)
	}
	if calls != 2 {
		t.Errorf("expected 2 repository pages, got %d", calls)
	}
}
