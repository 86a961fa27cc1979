package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cafeluna/api/internal/domain"
)

// Listener reacts to a committed order status change. Listener failures are
// logged by the notifier and never propagate to the caller.
type Listener interface {
	Name() string
	Notify(ctx context.Context, event domain.StatusEvent) error
}

// ListenerFunc adapts an ordinary function to the Listener interface.
type ListenerFunc struct {
	ListenerName string
	Fn           func(ctx context.Context, event domain.StatusEvent) error
}

// Name returns the listener identifier used in logs.
func (l ListenerFunc) Name() string { return l.ListenerName }

// Notify invokes the wrapped function.
func (l ListenerFunc) Notify(ctx context.Context, event domain.StatusEvent) error {
	if l.Fn == nil {
		return nil
	}
	return l.Fn(ctx, event)
}

// Notifier fans a status event out to registered listeners, synchronously and
// in registration order.
type Notifier struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *zap.Logger
}

// NewNotifier constructs an empty notifier.
func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger}
}

// Register appends a listener. Nil listeners are ignored.
func (n *Notifier) Register(listener Listener) {
	if listener == nil {
		return
	}
	n.mu.Lock()
	n.listeners = append(n.listeners, listener)
	n.mu.Unlock()
}

// Dispatch notifies every listener of the event. A listener error or panic is
// logged and does not stop the remaining listeners.
func (n *Notifier) Dispatch(ctx context.Context, event domain.StatusEvent) {
	n.mu.RLock()
	listeners := make([]Listener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.RUnlock()

	for _, listener := range listeners {
		if err := n.notifyOne(ctx, listener, event); err != nil {
			n.logger.Warn("order status listener failed",
				zap.String("listener", listener.Name()),
				zap.String("order_id", event.OrderID),
				zap.String("status", string(event.New)),
				zap.Error(err),
			)
		}
	}
}

func (n *Notifier) notifyOne(ctx context.Context, listener Listener, event domain.StatusEvent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Join(err, fmt.Errorf("listener panic: %v", rec))
		}
	}()
	return listener.Notify(ctx, event)
}
