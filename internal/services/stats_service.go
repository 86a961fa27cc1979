package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/repositories"
)

// statsPageSize bounds each repository read while the report pages through the day.
const statsPageSize = 200

// StatsServiceDeps bundles collaborators required to construct the stats service.
type StatsServiceDeps struct {
	Orders repositories.OrderRepository
	Clock  func() time.Time
}

type statsService struct {
	orders repositories.OrderRepository
	clock  func() time.Time
}

// NewStatsService wires dependencies into a concrete StatsService implementation.
func NewStatsService(deps StatsServiceDeps) (StatsService, error) {
	if deps.Orders == nil {
		return nil, errors.New("stats service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &statsService{
		orders: deps.Orders,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Report aggregates today's orders. Revenue excludes cancelled orders.
func (s *statsService) Report(ctx context.Context) (StatsReport, error) {
	now := s.clock()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	report := StatsReport{
		OrdersByStatus: make(map[domain.OrderStatus]int),
		GeneratedAt:    now,
	}

	pageToken := ""
	for {
		page, err := s.orders.List(ctx, OrderListFilter{
			DateRange: domain.RangeQuery[time.Time]{From: &startOfDay, To: &now},
			SortOrder: domain.SortAsc,
			Pagination: Pagination{
				PageSize:  statsPageSize,
				PageToken: pageToken,
			},
		})
		if err != nil {
			return StatsReport{}, err
		}

		for _, order := range page.Items {
			report.OrdersToday++
			report.OrdersByStatus[order.Status]++
			if order.Status != domain.OrderStatusCancelled {
				report.GrossRevenue += order.Totals.Total
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return report, nil
}
