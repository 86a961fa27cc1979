package domain

// LineTotal returns the extended price of a cart line in centavos.
func LineTotal(item CartItem) int64 {
	qty := int64(item.Quantity)
	if qty < 0 {
		qty = 0
	}
	return item.UnitPrice * qty
}

// CartSubtotal sums the extended prices of every cart line.
func CartSubtotal(items []CartItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += LineTotal(item)
	}
	return subtotal
}

// PriceOrder produces the order totals for a cart subtotal under the given
// payment method. The method is validated before any arithmetic runs.
func PriceOrder(subtotal int64, method PaymentMethod) (OrderTotals, error) {
	discount, err := method.DiscountFor(subtotal)
	if err != nil {
		return OrderTotals{}, err
	}
	return OrderTotals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal - discount,
	}, nil
}
