package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/cafeluna/api/internal/domain"
)

// OrderEventPublisher publishes order status events to a Pub/Sub topic.
type OrderEventPublisher struct {
	topic *pubsub.Topic
}

// NewOrderEventPublisher constructs a publisher bound to the given topic.
func NewOrderEventPublisher(topic *pubsub.Topic) (*OrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("order event publisher: topic is required")
	}
	return &OrderEventPublisher{topic: topic}, nil
}

// Publish emits the event and returns the server-assigned message ID.
func (p *OrderEventPublisher) Publish(ctx context.Context, event domain.StatusEvent) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("order event publisher: marshal event: %w", err)
	}

	attrs := map[string]string{"status": string(event.New)}
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "orderNumber", event.OrderNumber)
	setAttr(attrs, "userId", event.UserID)
	if event.Previous != nil {
		setAttr(attrs, "previous", string(*event.Previous))
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: attrs,
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("order event publisher: publish: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key, value string) {
	if value == "" {
		return
	}
	attrs[key] = value
}
