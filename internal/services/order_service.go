package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/repositories"
)

const (
	orderIDPrefix        = "ord_"
	statusChangeIDPrefix = "sch_"

	orderNumberCounter = "orders"

	// creationHistoryNote is the note stored on the history record written
	// when an order is created.
	creationHistoryNote = "Pedido criado"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates concurrent writes collided on the same order.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrEmptyCart indicates order creation was attempted from a cart with no items.
	ErrEmptyCart = errors.New("order: cart is empty")
)

// kitchenStatuses are the statuses the kitchen queue surfaces, oldest first.
var kitchenStatuses = []string{
	string(domain.OrderStatusPending),
	string(domain.OrderStatusReceived),
	string(domain.OrderStatusInPreparation),
}

// LoyaltyCrediter credits loyalty points once an order is delivered.
type LoyaltyCrediter interface {
	CreditLoyalty(ctx context.Context, cmd CreditLoyaltyCommand) (int64, error)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Counters    repositories.CounterRepository
	UnitOfWork  repositories.UnitOfWork
	Dispatcher  StatusDispatcher
	Loyalty     LoyaltyCrediter
	Currency    string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	carts      repositories.CartRepository
	counters   repositories.CounterRepository
	unitOfWork repositories.UnitOfWork
	dispatcher StatusDispatcher
	loyalty    LoyaltyCrediter
	currency   string
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	currency := strings.TrimSpace(deps.Currency)
	if currency == "" {
		currency = "BRL"
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

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		carts:      deps.Carts,
		counters:   deps.Counters,
		unitOfWork: unit,
		dispatcher: deps.Dispatcher,
		loyalty:    deps.Loyalty,
		currency:   currency,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) CreateFromCart(ctx context.Context, cmd CreateOrderFromCartCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	// The payment method is validated before any totals are computed.
	method, err := domain.ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return Order{}, err
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if len(cart.Items) == 0 {
		return Order{}, ErrEmptyCart
	}

	now := s.now()

	totals, err := domain.PriceOrder(domain.CartSubtotal(cart.Items), method)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:            s.nextOrderID(),
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		PaymentMethod: method,
		Currency:      s.currency,
		Totals:        totals,
		Items:         buildOrderLineItems(cart.Items),
		Note:          consolidateNotes(cart.Items),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}
	order.OrderNumber = number

	created := domain.StatusChange{
		ID:         s.nextStatusChangeID(),
		OrderID:    order.ID,
		Previous:   nil,
		New:        domain.OrderStatusPending,
		Note:       creationHistoryNote,
		RecordedAt: now,
	}
	order.History = []StatusChange{created}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.orders.AppendHistory(txCtx, created); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.carts.Clear(txCtx, userID); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.dispatch(ctx, StatusEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Previous:    nil,
		New:         domain.OrderStatusPending,
		OccurredAt:  now,
		Metadata:    maps.Clone(cmd.Metadata),
	})

	return order, nil
}

func (s *orderService) AdvanceStatus(ctx context.Context, cmd AdvanceStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	return s.transition(ctx, orderID, cmd.ActorID, cmd.Note, func(order Order) (domain.OrderStatus, error) {
		return order.Status.Next()
	})
}

func (s *orderService) SetStatus(ctx context.Context, cmd SetStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target, err := domain.ParseOrderStatus(cmd.TargetStatus)
	if err != nil {
		return Order{}, err
	}

	return s.transition(ctx, orderID, cmd.ActorID, cmd.Note, func(order Order) (domain.OrderStatus, error) {
		return order.Status.Transition(target)
	})
}

// transition runs the read-modify-write cycle for a status change inside one
// unit of work, so concurrent updates to the same order serialise.
func (s *orderService) transition(ctx context.Context, orderID, actorID, note string, pick func(Order) (domain.OrderStatus, error)) (Order, error) {
	var (
		updated Order
		event   StatusEvent
	)

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		target, err := pick(order)
		if err != nil {
			return err
		}

		now := s.now()
		previous := order.Status
		order.Status = target
		order.UpdatedAt = now
		if target == domain.OrderStatusDelivered {
			order.DeliveredAt = &now
		}

		change := domain.StatusChange{
			ID:         s.nextStatusChangeID(),
			OrderID:    order.ID,
			Previous:   &previous,
			New:        target,
			Note:       strings.TrimSpace(note),
			RecordedAt: now,
		}
		order.History = append(order.History, change)

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.orders.AppendHistory(txCtx, change); err != nil {
			return s.mapRepositoryError(err)
		}

		updated = order
		event = StatusEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Previous:    &previous,
			New:         target,
			OccurredAt:  now,
		}
		if actor := strings.TrimSpace(actorID); actor != "" {
			event.Metadata = map[string]string{"actor": actor}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.dispatch(ctx, event)

	if updated.Status == domain.OrderStatusDelivered {
		s.creditLoyalty(ctx, updated)
	}

	return updated, nil
}

func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (CancelResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return CancelResult{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var (
		result CancelResult
		event  StatusEvent
	)

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		if !order.Status.Cancellable() {
			// A refused cancellation is reported, not raised.
			result = CancelResult{
				Order:     order,
				Cancelled: false,
				Reason:    order.Status.CancelRefusalReason(),
			}
			return nil
		}

		now := s.now()
		previous := order.Status
		order.Status = domain.OrderStatusCancelled
		order.UpdatedAt = now
		order.CancelledAt = &now

		change := domain.StatusChange{
			ID:         s.nextStatusChangeID(),
			OrderID:    order.ID,
			Previous:   &previous,
			New:        domain.OrderStatusCancelled,
			Note:       strings.TrimSpace(cmd.Reason),
			RecordedAt: now,
		}
		order.History = append(order.History, change)

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.orders.AppendHistory(txCtx, change); err != nil {
			return s.mapRepositoryError(err)
		}

		result = CancelResult{Order: order, Cancelled: true}
		event = StatusEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Previous:    &previous,
			New:         domain.OrderStatusCancelled,
			OccurredAt:  now,
		}
		if actor := strings.TrimSpace(cmd.ActorID); actor != "" {
			event.Metadata = map[string]string{"actor": actor}
		}
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}

	if result.Cancelled {
		s.dispatch(ctx, event)
	}

	return result, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	history, err := s.orders.ListHistory(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	order.History = history

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) KitchenQueue(ctx context.Context, pager Pagination) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, OrderListFilter{
		Status:     kitchenStatuses,
		SortOrder:  domain.SortAsc,
		Pagination: pager,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// consolidateNotes flattens the per-line customer notes into the single
// kitchen string stored on the order. Lines without a note are skipped.
func consolidateNotes(items []CartItem) string {
	parts := make([]string, 0, len(items))
	for i, item := range items {
		note := strings.TrimSpace(item.Note)
		if note == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("Item %d (%s): %s", i+1, item.BeverageName, note))
	}
	return strings.Join(parts, ", ")
}

func buildOrderLineItems(items []CartItem) []OrderLineItem {
	lines := make([]OrderLineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, OrderLineItem{
			BeverageID:   item.BeverageID,
			BeverageName: item.BeverageName,
			AddOnNames:   append([]string(nil), item.AddOnNames...),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Total:        domain.LineTotal(item),
			Note:         strings.TrimSpace(item.Note),
		})
	}
	return lines
}

func (s *orderService) creditLoyalty(ctx context.Context, order Order) {
	if s.loyalty == nil || order.UserID == "" {
		return
	}
	if _, err := s.loyalty.CreditLoyalty(ctx, CreditLoyaltyCommand{
		UserID:  order.UserID,
		OrderID: order.ID,
		Amount:  order.Totals.Total,
	}); err != nil {
		s.logger(ctx, "order.loyalty.credit.failed", map[string]any{
			"order": order.ID,
			"user":  order.UserID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CF-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) dispatch(ctx context.Context, event StatusEvent) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(ctx, event)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) nextStatusChangeID() string {
	return statusChangeIDPrefix + s.newID()
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
