package cart

import "github.com/shopspring/decimal"

// Subtotal returns price × quantity for a line. An unresolved product
// prices at zero.
func Subtotal(item Item) decimal.Decimal {
	if item.Product == nil {
		return decimal.Zero
	}
	return item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// Total sums the subtotals of items without intermediate rounding.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(Subtotal(item))
	}
	return total
}

// FormatAmount rounds an amount to currency precision for display.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
