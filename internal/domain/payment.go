package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidPaymentMethod is returned for payment method strings outside the
// accepted set. Pricing never runs for an invalid method.
var ErrInvalidPaymentMethod = errors.New("payment: invalid payment method")

// discountRates holds the standing discount per payment method in basis
// points. Methods absent from the table are rejected, not defaulted.
var discountRates = map[PaymentMethod]int64{
	PaymentMethodPix:     500,
	PaymentMethodLoyalty: 1000,
	PaymentMethodCash:    0,
	PaymentMethodCard:    0,
}

// ParsePaymentMethod validates a raw payment method string.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	method := PaymentMethod(raw)
	if _, ok := discountRates[method]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, raw)
	}
	return method, nil
}

// Valid reports whether the method is accepted at order creation.
func (m PaymentMethod) Valid() bool {
	_, ok := discountRates[m]
	return ok
}

// DiscountRateBps returns the method's discount in basis points.
func (m PaymentMethod) DiscountRateBps() (int64, error) {
	rate, ok := discountRates[m]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, string(m))
	}
	return rate, nil
}

// DiscountFor computes the discount on a subtotal in centavos, rounding half
// up. The result is never negative and never exceeds the subtotal.
func (m PaymentMethod) DiscountFor(subtotal int64) (int64, error) {
	rate, err := m.DiscountRateBps()
	if err != nil {
		return 0, err
	}
	if subtotal <= 0 {
		return 0, nil
	}
	discount := (subtotal*rate + 5000) / 10000
	if discount > subtotal {
		discount = subtotal
	}
	return discount, nil
}
