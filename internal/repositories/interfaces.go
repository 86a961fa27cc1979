package repositories

import (
	"context"
	"time"

	domain "github.com/cafeluna/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Carts() CartRepository
	Beverages() BeverageRepository
	AddOns() AddOnRepository
	Users() UserRepository
	Notifications() NotificationRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order headers plus their status history.
//
// Reads performed inside RunInTx observe the transaction snapshot, so a
// FindByID followed by Update in the same unit of work serialises concurrent
// transitions on one order.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// AppendHistory writes one status-change record under the order document.
	AppendHistory(ctx context.Context, change domain.StatusChange) error
	ListHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error)
}

// CartRepository owns the per-customer open cart.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error)
	// Clear empties the cart; it participates in a surrounding transaction.
	Clear(ctx context.Context, userID string) error
}

// BeverageRepository stores menu beverages.
type BeverageRepository interface {
	Upsert(ctx context.Context, beverage domain.Beverage) (domain.Beverage, error)
	FindByID(ctx context.Context, beverageID string) (domain.Beverage, error)
	List(ctx context.Context, filter BeverageFilter) (domain.CursorPage[domain.Beverage], error)
	Delete(ctx context.Context, beverageID string) error
}

// AddOnRepository stores beverage customizations.
type AddOnRepository interface {
	Upsert(ctx context.Context, addOn domain.AddOn) (domain.AddOn, error)
	FindByID(ctx context.Context, addOnID string) (domain.AddOn, error)
	List(ctx context.Context, filter AddOnFilter) (domain.CursorPage[domain.AddOn], error)
	Delete(ctx context.Context, addOnID string) error
}

// UserRepository stores accounts and loyalty balances.
type UserRepository interface {
	Insert(ctx context.Context, profile domain.UserProfile) error
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	FindByEmail(ctx context.Context, email string) (domain.UserProfile, error)
	UpdateProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	// AddLoyaltyPoints atomically increments the balance and returns it.
	AddLoyaltyPoints(ctx context.Context, userID string, delta int64, now time.Time) (int64, error)
}

// NotificationRepository stores customer-facing status notifications.
type NotificationRepository interface {
	Append(ctx context.Context, notification domain.Notification) error
	ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Notification], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	UserID     string
	Status     []string
	DateRange  domain.RangeQuery[time.Time]
	SortOrder  domain.SortOrder
	Pagination domain.Pagination
}

type BeverageFilter struct {
	Kind          *domain.BeverageKind
	OnlyAvailable bool
	Pagination    domain.Pagination
}

type AddOnFilter struct {
	Category      *string
	OnlyAvailable bool
	Pagination    domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
