package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Role distinguishes customer accounts from shop staff.
type Role string

const (
	// RoleCustomer identifies a regular customer account.
	RoleCustomer Role = "customer"
	// RoleStaff identifies kitchen/counter staff with elevated access.
	RoleStaff Role = "staff"
)

// BeverageKind groups menu beverages into the shop's three families.
type BeverageKind string

const (
	// BeverageKindCoffee covers espresso-based and filter coffees.
	BeverageKindCoffee BeverageKind = "cafe"
	// BeverageKindTea covers hot and iced teas.
	BeverageKindTea BeverageKind = "cha"
	// BeverageKindJuice covers fresh juices.
	BeverageKindJuice BeverageKind = "suco"
)

// Beverage is a menu entry customers order from.
type Beverage struct {
	ID          string
	Name        string
	Kind        BeverageKind
	Description string
	// BasePrice is the price in centavos before add-ons.
	BasePrice int64
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddOn is an optional customization applied to a beverage (extra shot,
// alternative milk, syrup, and so on).
type AddOn struct {
	ID       string
	Name     string
	Category string
	// Surcharge is added to the beverage base price, in centavos.
	Surcharge int64
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is a single beverage line in a customer's open cart.
type CartItem struct {
	ID         string
	BeverageID string
	// BeverageName is snapshotted so cart rendering survives menu edits.
	BeverageName string
	AddOnIDs     []string
	AddOnNames   []string
	Quantity     int
	// UnitPrice is the beverage base price plus add-on surcharges at the
	// time the line was added, in centavos.
	UnitPrice int64
	Note      string
	AddedAt   time.Time
}

// Cart is the per-customer open cart orders are created from.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentMethod enumerates the payment options accepted at order creation.
type PaymentMethod string

const (
	// PaymentMethodPix is instant bank transfer; earns the standing pix discount.
	PaymentMethodPix PaymentMethod = "pix"
	// PaymentMethodLoyalty redeems loyalty standing; earns the largest discount.
	PaymentMethodLoyalty PaymentMethod = "loyalty"
	// PaymentMethodCash is payment at the counter, full price.
	PaymentMethodCash PaymentMethod = "cash"
	// PaymentMethodCard is credit/debit card, full price.
	PaymentMethodCard PaymentMethod = "card"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was placed and awaits acknowledgement.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusReceived indicates the shop acknowledged the order.
	OrderStatusReceived OrderStatus = "received"
	// OrderStatusInPreparation indicates the kitchen started preparing the order.
	OrderStatusInPreparation OrderStatus = "in_preparation"
	// OrderStatusReady indicates the order is ready for pickup or delivery.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusDelivered indicates the order was handed to the customer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before preparation. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderTotals holds rolled-up monetary fields in centavos.
type OrderTotals struct {
	Subtotal int64
	Discount int64
	Total    int64
}

// OrderLineItem mirrors a cart line at the moment the order was placed.
type OrderLineItem struct {
	BeverageID   string
	BeverageName string
	AddOnNames   []string
	Quantity     int
	UnitPrice    int64
	Total        int64
	Note         string
}

// StatusChange records one step of an order's lifecycle. Previous is nil for
// the record written at creation.
type StatusChange struct {
	ID         string
	OrderID    string
	Previous   *OrderStatus
	New        OrderStatus
	Note       string
	RecordedAt time.Time
}

// Order captures order headers returned to handlers/services.
type Order struct {
	ID            string
	OrderNumber   string
	UserID        string
	Status        OrderStatus
	PaymentMethod PaymentMethod
	Currency      string
	Totals        OrderTotals
	Items         []OrderLineItem
	// Note consolidates the per-line customer notes into one kitchen string.
	Note        string
	History     []StatusChange
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// StatusEvent is the payload handed to status listeners after a transition
// commits. Previous is nil for the creation event.
type StatusEvent struct {
	OrderID     string
	OrderNumber string
	UserID      string
	Previous    *OrderStatus
	New         OrderStatus
	OccurredAt  time.Time
	Metadata    map[string]string
}

// UserProfile is an account known to the shop.
type UserProfile struct {
	ID            string
	Email         string
	DisplayName   string
	Role          Role
	PasswordHash  string
	LoyaltyPoints int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Notification is a customer-facing record of an order status change.
type Notification struct {
	ID          string
	UserID      string
	OrderID     string
	OrderNumber string
	Message     string
	Status      OrderStatus
	CreatedAt   time.Time
}

// StatsReport aggregates the counters shown on the staff dashboard.
type StatsReport struct {
	OrdersToday    int
	OrdersByStatus map[OrderStatus]int
	// GrossRevenue sums order totals excluding cancelled orders, in centavos.
	GrossRevenue int64
	GeneratedAt  time.Time
}

const (
	// HealthStatusOK indicates the dependency responded in time.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates the dependency responded with an error.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the dependency timed out or was cancelled.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Environment string
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
