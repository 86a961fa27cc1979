package domain

import (
	"errors"
	"fmt"
)

// ErrTerminalStatus is returned when an advance is requested on an order
// already in a terminal state.
var ErrTerminalStatus = errors.New("order status: terminal state")

// ErrInvalidStatus is returned when a status string is not part of the lifecycle.
var ErrInvalidStatus = errors.New("order status: unknown status")

// ErrIllegalTransition is returned when a requested jump is not in the
// transition table.
var ErrIllegalTransition = errors.New("order status: illegal transition")

// statusTransitions is the single source of truth for legal lifecycle moves.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:       {OrderStatusReceived, OrderStatusCancelled},
	OrderStatusReceived:      {OrderStatusInPreparation, OrderStatusCancelled},
	OrderStatusInPreparation: {OrderStatusReady},
	OrderStatusReady:         {OrderStatusDelivered},
	OrderStatusDelivered:     {},
	OrderStatusCancelled:     {},
}

// nextStatus is the happy-path progression used by AdvanceStatus.
var nextStatus = map[OrderStatus]OrderStatus{
	OrderStatusPending:       OrderStatusReceived,
	OrderStatusReceived:      OrderStatusInPreparation,
	OrderStatusInPreparation: OrderStatusReady,
	OrderStatusReady:         OrderStatusDelivered,
}

// cancelRefusalReasons maps non-cancellable states to the reason reported to
// the customer.
var cancelRefusalReasons = map[OrderStatus]string{
	OrderStatusInPreparation: "order is already being prepared",
	OrderStatusReady:         "order is already ready for delivery",
	OrderStatusDelivered:     "order was already delivered",
	OrderStatusCancelled:     "order is already cancelled",
}

// ParseOrderStatus validates a raw status string.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(raw)
	if _, ok := statusTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// IsTerminal reports whether no further transitions exist from the status.
func (s OrderStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0 && s.Valid()
}

// Valid reports whether the status is part of the lifecycle.
func (s OrderStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Next returns the linear successor of the status. Terminal states fail with
// ErrTerminalStatus.
func (s OrderStatus) Next() (OrderStatus, error) {
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
	next, ok := nextStatus[s]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTerminalStatus, s)
	}
	return next, nil
}

// CanTransition reports whether moving from s to target is legal.
func (s OrderStatus) CanTransition(target OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Transition validates a jump from s to target and returns the target.
func (s OrderStatus) Transition(target OrderStatus) (OrderStatus, error) {
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
	if !target.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, string(target))
	}
	if !s.CanTransition(target) {
		return "", fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, target)
	}
	return target, nil
}

// Cancellable reports whether a cancel request in this state succeeds.
// Orders stop being cancellable once preparation starts.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusReceived
}

// CancelRefusalReason returns the customer-facing reason a cancel request is
// refused. Empty for cancellable states.
func (s OrderStatus) CancelRefusalReason() string {
	if s.Cancellable() {
		return ""
	}
	return cancelRefusalReasons[s]
}
