package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cafeluna/api/internal/domain"
)

func testEvent() domain.StatusEvent {
	prev := domain.OrderStatusPending
	return domain.StatusEvent{
		OrderID:     "ord_01",
		OrderNumber: "CF-2025-000042",
		UserID:      "usr_01",
		Previous:    &prev,
		New:         domain.OrderStatusReceived,
		OccurredAt:  time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestNotifierDispatchesInRegistrationOrder(t *testing.T) {
	notifier := NewNotifier(zap.NewNop())

	var calls []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		notifier.Register(ListenerFunc{
			ListenerName: name,
			Fn: func(context.Context, domain.StatusEvent) error {
				calls = append(calls, name)
				return nil
			},
		})
	}

	notifier.Dispatch(context.Background(), testEvent())

	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(calls))
	}
	for i, want := range []string{"first", "second", "third"} {
		if calls[i] != want {
			t.Errorf("call %d = %s, want %s", i, calls[i], want)
		}
	}
}

func TestNotifierFailureDoesNotStopFanOut(t *testing.T) {
	notifier := NewNotifier(zap.NewNop())

	notifier.Register(ListenerFunc{
		ListenerName: "failing",
		Fn: func(context.Context, domain.StatusEvent) error {
			return errors.New("boom")
		},
	})
	var reached bool
	notifier.Register(ListenerFunc{
		ListenerName: "after",
		Fn: func(context.Context, domain.StatusEvent) error {
			reached = true
			return nil
		},
	})

	notifier.Dispatch(context.Background(), testEvent())

	if !reached {
		t.Fatal("listener after the failing one was not invoked")
	}
}

func TestNotifierRecoversListenerPanic(t *testing.T) {
	notifier := NewNotifier(zap.NewNop())

	notifier.Register(ListenerFunc{
		ListenerName: "panicking",
		Fn: func(context.Context, domain.StatusEvent) error {
			panic("listener exploded")
		},
	})
	var reached bool
	notifier.Register(ListenerFunc{
		ListenerName: "after",
		Fn: func(context.Context, domain.StatusEvent) error {
			reached = true
			return nil
		},
	})

	notifier.Dispatch(context.Background(), testEvent())

	if !reached {
		t.Fatal("listener after the panicking one was not invoked")
	}
}

func TestNotifierIgnoresNilListener(t *testing.T) {
	notifier := NewNotifier(nil)
	notifier.Register(nil)
	notifier.Dispatch(context.Background(), testEvent())
}
