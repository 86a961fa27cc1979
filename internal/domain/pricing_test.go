package domain

import (
	"errors"
	"testing"
)

func TestCartSubtotalSumsLines(t *testing.T) {
	items := []CartItem{
		{BeverageName: "Latte", Quantity: 2, UnitPrice: 1200},
		{BeverageName: "Cold Brew", Quantity: 1, UnitPrice: 1500},
		{BeverageName: "Chai", Quantity: 0, UnitPrice: 900},
	}

	if got := CartSubtotal(items); got != 3900 {
		t.Fatalf("CartSubtotal = %d, want 3900", got)
	}
	if got := CartSubtotal(nil); got != 0 {
		t.Fatalf("CartSubtotal(nil) = %d, want 0", got)
	}
}

func TestPriceOrderAppliesDiscountOnce(t *testing.T) {
	totals, err := PriceOrder(20000, PaymentMethodLoyalty)
	if err != nil {
		t.Fatalf("PriceOrder returned error: %v", err)
	}
	if totals.Subtotal != 20000 || totals.Discount != 2000 || totals.Total != 18000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if totals.Subtotal-totals.Discount != totals.Total {
		t.Fatalf("totals do not reconcile: %+v", totals)
	}
}

func TestPriceOrderRejectsInvalidMethod(t *testing.T) {
	if _, err := PriceOrder(20000, PaymentMethod("check")); !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("PriceOrder error = %v, want ErrInvalidPaymentMethod", err)
	}
}
