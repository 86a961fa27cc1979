package services

import (
	"context"
	"time"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination    = domain.Pagination
	SortOrder     = domain.SortOrder
	Beverage      = domain.Beverage
	AddOn         = domain.AddOn
	Cart          = domain.Cart
	CartItem      = domain.CartItem
	Order         = domain.Order
	OrderTotals   = domain.OrderTotals
	OrderLineItem = domain.OrderLineItem
	OrderStatus   = domain.OrderStatus
	PaymentMethod = domain.PaymentMethod
	StatusChange  = domain.StatusChange
	StatusEvent   = domain.StatusEvent
	UserProfile   = domain.UserProfile
	Notification  = domain.Notification
	StatsReport   = domain.StatsReport
)

// OrderService encapsulates the order lifecycle: creation from the customer's
// cart, status transitions, cancellation, and read surfaces.
type OrderService interface {
	CreateFromCart(ctx context.Context, cmd CreateOrderFromCartCommand) (Order, error)
	AdvanceStatus(ctx context.Context, cmd AdvanceStatusCommand) (Order, error)
	SetStatus(ctx context.Context, cmd SetStatusCommand) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (CancelResult, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	KitchenQueue(ctx context.Context, pager Pagination) (domain.CursorPage[Order], error)
}

// CartService manages the customer's single open cart.
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// CatalogService manages the beverage menu and add-on catalogue.
type CatalogService interface {
	ListBeverages(ctx context.Context, filter BeverageListFilter) (domain.CursorPage[Beverage], error)
	GetBeverage(ctx context.Context, beverageID string) (Beverage, error)
	UpsertBeverage(ctx context.Context, cmd UpsertBeverageCommand) (Beverage, error)
	DeleteBeverage(ctx context.Context, beverageID string) error
	ListAddOns(ctx context.Context, filter AddOnListFilter) (domain.CursorPage[AddOn], error)
	UpsertAddOn(ctx context.Context, cmd UpsertAddOnCommand) (AddOn, error)
	DeleteAddOn(ctx context.Context, addOnID string) error
}

// UserService manages accounts, sessions, and loyalty balances.
type UserService interface {
	Register(ctx context.Context, cmd RegisterUserCommand) (UserProfile, error)
	Login(ctx context.Context, cmd LoginCommand) (Session, error)
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error)
	CreditLoyalty(ctx context.Context, cmd CreditLoyaltyCommand) (int64, error)
	ListNotifications(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Notification], error)
}

// StatsService aggregates order counters for the staff dashboard.
type StatsService interface {
	Report(ctx context.Context) (StatsReport, error)
}

// SystemService exposes operational utility surfaces.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}

// StatusDispatcher fans committed status events out to listeners. Dispatch
// must never return an error to the caller.
type StatusDispatcher interface {
	Dispatch(ctx context.Context, event StatusEvent)
}

// Command and DTO definitions ------------------------------------------------

type OrderListFilter = repositories.OrderListFilter

type CreateOrderFromCartCommand struct {
	UserID        string
	PaymentMethod string
	Metadata      map[string]string
}

type AdvanceStatusCommand struct {
	OrderID string
	ActorID string
	Note    string
}

type SetStatusCommand struct {
	OrderID      string
	TargetStatus string
	ActorID      string
	Note         string
}

type CancelOrderCommand struct {
	OrderID string
	ActorID string
	Reason  string
}

// CancelResult reports whether the cancellation took effect. A refused
// cancellation is a normal outcome, not an error: Cancelled is false and
// Reason explains why.
type CancelResult struct {
	Order     Order
	Cancelled bool
	Reason    string
}

type AddCartItemCommand struct {
	UserID     string
	BeverageID string
	AddOnIDs   []string
	Quantity   int
	Note       string
}

type UpdateCartItemCommand struct {
	UserID   string
	ItemID   string
	Quantity int
}

type RemoveCartItemCommand struct {
	UserID string
	ItemID string
}

type BeverageListFilter struct {
	Kind          *domain.BeverageKind
	OnlyAvailable bool
	Pagination    Pagination
}

type AddOnListFilter struct {
	Category      *string
	OnlyAvailable bool
	Pagination    Pagination
}

type UpsertBeverageCommand struct {
	BeverageID  *string
	Name        string
	Kind        string
	Description string
	BasePrice   int64
	Available   bool
	ActorID     string
}

type UpsertAddOnCommand struct {
	AddOnID   *string
	Name      string
	Category  string
	Surcharge int64
	Available bool
	ActorID   string
}

type RegisterUserCommand struct {
	Email       string
	Password    string
	DisplayName string
}

type LoginCommand struct {
	Email    string
	Password string
}

// Session is the authenticated result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      UserProfile
}

type UpdateProfileCommand struct {
	UserID      string
	DisplayName *string
}

type CreditLoyaltyCommand struct {
	UserID  string
	OrderID string
	// Amount is the order total in centavos the credit derives from.
	Amount int64
}
