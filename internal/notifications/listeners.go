package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cafeluna/api/internal/domain"
	"github.com/cafeluna/api/internal/repositories"
)

// customerMessages maps each status to the text shown to the customer.
var customerMessages = map[domain.OrderStatus]string{
	domain.OrderStatusPending:       "Pedido %s recebido, aguardando confirmação.",
	domain.OrderStatusReceived:      "Pedido %s confirmado pela loja.",
	domain.OrderStatusInPreparation: "Pedido %s em preparo.",
	domain.OrderStatusReady:         "Pedido %s pronto para retirada!",
	domain.OrderStatusDelivered:     "Pedido %s entregue. Bom café!",
	domain.OrderStatusCancelled:     "Pedido %s cancelado.",
}

// KitchenListener surfaces transitions on the kitchen log stream. The kitchen
// display tails these structured entries.
type KitchenListener struct {
	logger *zap.Logger
}

// NewKitchenListener constructs the kitchen-facing listener.
func NewKitchenListener(logger *zap.Logger) *KitchenListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KitchenListener{logger: logger.Named("kitchen")}
}

// Name identifies the listener in notifier logs.
func (l *KitchenListener) Name() string { return "kitchen" }

// Notify records the transition for the kitchen display.
func (l *KitchenListener) Notify(_ context.Context, event domain.StatusEvent) error {
	previous := ""
	if event.Previous != nil {
		previous = string(*event.Previous)
	}
	l.logger.Info("order status changed",
		zap.String("order_id", event.OrderID),
		zap.String("order_number", event.OrderNumber),
		zap.String("previous", previous),
		zap.String("status", string(event.New)),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// CustomerListener persists a notification record for the order's owner.
type CustomerListener struct {
	repo  repositories.NotificationRepository
	newID func() string
	now   func() time.Time
}

// NewCustomerListener constructs the customer-facing listener.
func NewCustomerListener(repo repositories.NotificationRepository, newID func() string, clock func() time.Time) (*CustomerListener, error) {
	if repo == nil {
		return nil, errors.New("customer listener: notification repository is required")
	}
	if newID == nil {
		return nil, errors.New("customer listener: id generator is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &CustomerListener{repo: repo, newID: newID, now: clock}, nil
}

// Name identifies the listener in notifier logs.
func (l *CustomerListener) Name() string { return "customer" }

// Notify appends a notification for the owning customer. Events without an
// owner (e.g. walk-in counter orders) are skipped.
func (l *CustomerListener) Notify(ctx context.Context, event domain.StatusEvent) error {
	if event.UserID == "" {
		return nil
	}
	template, ok := customerMessages[event.New]
	if !ok {
		return fmt.Errorf("customer listener: no message for status %q", event.New)
	}

	label := event.OrderNumber
	if label == "" {
		label = event.OrderID
	}
	return l.repo.Append(ctx, domain.Notification{
		ID:          l.newID(),
		UserID:      event.UserID,
		OrderID:     event.OrderID,
		OrderNumber: event.OrderNumber,
		Message:     fmt.Sprintf(template, label),
		Status:      event.New,
		CreatedAt:   l.now().UTC(),
	})
}

// EventPublisherListener forwards committed transitions to Pub/Sub for
// out-of-process consumers. Publishing is best effort.
type EventPublisherListener struct {
	publisher *OrderEventPublisher
}

// NewEventPublisherListener constructs the Pub/Sub forwarding listener.
func NewEventPublisherListener(publisher *OrderEventPublisher) (*EventPublisherListener, error) {
	if publisher == nil {
		return nil, errors.New("event publisher listener: publisher is required")
	}
	return &EventPublisherListener{publisher: publisher}, nil
}

// Name identifies the listener in notifier logs.
func (l *EventPublisherListener) Name() string { return "pubsub" }

// Notify publishes the event on the configured topic.
func (l *EventPublisherListener) Notify(ctx context.Context, event domain.StatusEvent) error {
	_, err := l.publisher.Publish(ctx, event)
	return err
}
