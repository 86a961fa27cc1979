package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/repositories"
)

const (
	beverageIDPrefix = "bev_"
	addOnIDPrefix    = "add_"
)

var (
	// ErrCatalogInvalidInput signals the caller provided invalid data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the menu entry could not be located.
	ErrCatalogNotFound = errors.New("catalog: not found")
)

var beverageKinds = map[domain.BeverageKind]bool{
	domain.BeverageKindCoffee: true,
	domain.BeverageKindTea:    true,
	domain.BeverageKindJuice:  true,
}

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Beverages   repositories.BeverageRepository
	AddOns      repositories.AddOnRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	beverages repositories.BeverageRepository
	addOns    repositories.AddOnRepository
	clock     func() time.Time
	newID     func() string
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Beverages == nil {
		return nil, errors.New("catalog service: beverage repository is required")
	}
	if deps.AddOns == nil {
		return nil, errors.New("catalog service: add-on repository is required")
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

	return &catalogService{
		beverages: deps.Beverages,
		addOns:    deps.AddOns,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *catalogService) ListBeverages(ctx context.Context, filter BeverageListFilter) (domain.CursorPage[Beverage], error) {
	page, err := s.beverages.List(ctx, repositories.BeverageFilter{
		Kind:          filter.Kind,
		OnlyAvailable: filter.OnlyAvailable,
		Pagination:    filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Beverage]{}, mapCatalogRepositoryError(err)
	}
	return page, nil
}

func (s *catalogService) GetBeverage(ctx context.Context, beverageID string) (Beverage, error) {
	beverageID = strings.TrimSpace(beverageID)
	if beverageID == "" {
		return Beverage{}, fmt.Errorf("%w: beverage id is required", ErrCatalogInvalidInput)
	}
	beverage, err := s.beverages.FindByID(ctx, beverageID)
	if err != nil {
		return Beverage{}, mapCatalogRepositoryError(err)
	}
	return beverage, nil
}

func (s *catalogService) UpsertBeverage(ctx context.Context, cmd UpsertBeverageCommand) (Beverage, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Beverage{}, fmt.Errorf("%w: beverage name is required", ErrCatalogInvalidInput)
	}
	kind := domain.BeverageKind(strings.TrimSpace(cmd.Kind))
	if !beverageKinds[kind] {
		return Beverage{}, fmt.Errorf("%w: unknown beverage kind %q", ErrCatalogInvalidInput, cmd.Kind)
	}
	if cmd.BasePrice < 0 {
		return Beverage{}, fmt.Errorf("%w: base price must not be negative", ErrCatalogInvalidInput)
	}

	now := s.clock()
	beverage := domain.Beverage{
		Name:        name,
		Kind:        kind,
		Description: strings.TrimSpace(cmd.Description),
		BasePrice:   cmd.BasePrice,
		Available:   cmd.Available,
		UpdatedAt:   now,
	}

	if cmd.BeverageID != nil && strings.TrimSpace(*cmd.BeverageID) != "" {
		existing, err := s.beverages.FindByID(ctx, strings.TrimSpace(*cmd.BeverageID))
		if err != nil {
			return Beverage{}, mapCatalogRepositoryError(err)
		}
		beverage.ID = existing.ID
		beverage.CreatedAt = existing.CreatedAt
	} else {
		beverage.ID = beverageIDPrefix + s.newID()
		beverage.CreatedAt = now
	}

	saved, err := s.beverages.Upsert(ctx, beverage)
	if err != nil {
		return Beverage{}, mapCatalogRepositoryError(err)
	}
	return saved, nil
}

func (s *catalogService) DeleteBeverage(ctx context.Context, beverageID string) error {
	beverageID = strings.TrimSpace(beverageID)
	if beverageID == "" {
		return fmt.Errorf("%w: beverage id is required", ErrCatalogInvalidInput)
	}
	if err := s.beverages.Delete(ctx, beverageID); err != nil {
		return mapCatalogRepositoryError(err)
	}
	return nil
}

func (s *catalogService) ListAddOns(ctx context.Context, filter AddOnListFilter) (domain.CursorPage[AddOn], error) {
	page, err := s.addOns.List(ctx, repositories.AddOnFilter{
		Category:      filter.Category,
		OnlyAvailable: filter.OnlyAvailable,
		Pagination:    filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[AddOn]{}, mapCatalogRepositoryError(err)
	}
	return page, nil
}

func (s *catalogService) UpsertAddOn(ctx context.Context, cmd UpsertAddOnCommand) (AddOn, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return AddOn{}, fmt.Errorf("%w: add-on name is required", ErrCatalogInvalidInput)
	}
	if cmd.Surcharge < 0 {
		return AddOn{}, fmt.Errorf("%w: surcharge must not be negative", ErrCatalogInvalidInput)
	}

	now := s.clock()
	addOn := domain.AddOn{
		Name:      name,
		Category:  strings.TrimSpace(cmd.Category),
		Surcharge: cmd.Surcharge,
		Available: cmd.Available,
		UpdatedAt: now,
	}

	if cmd.AddOnID != nil && strings.TrimSpace(*cmd.AddOnID) != "" {
		existing, err := s.addOns.FindByID(ctx, strings.TrimSpace(*cmd.AddOnID))
		if err != nil {
			return AddOn{}, mapCatalogRepositoryError(err)
		}
		addOn.ID = existing.ID
		addOn.CreatedAt = existing.CreatedAt
	} else {
		addOn.ID = addOnIDPrefix + s.newID()
		addOn.CreatedAt = now
	}

	saved, err := s.addOns.Upsert(ctx, addOn)
	if err != nil {
		return AddOn{}, mapCatalogRepositoryError(err)
	}
	return saved, nil
}

func (s *catalogService) DeleteAddOn(ctx context.Context, addOnID string) error {
	addOnID = strings.TrimSpace(addOnID)
	if addOnID == "" {
		return fmt.Errorf("%w: add-on id is required", ErrCatalogInvalidInput)
	}
	if err := s.addOns.Delete(ctx, addOnID); err != nil {
		return mapCatalogRepositoryError(err)
	}
	return nil
}

func mapCatalogRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("catalog: repository unavailable: %w", err)
		}
	}

	return err
}
