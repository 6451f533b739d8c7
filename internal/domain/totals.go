package domain

import "github.com/shopspring/decimal"

// ComputeLineTotal returns qty × unitPrice
func ComputeLineTotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// ComputeSaleTotal sums the line totals of items
func ComputeSaleTotal(items []*SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal)
	}
	return total
}

// RecomputeTotal refreshes every line total and the sale total. It reports
// whether the stored total changed, so callers only persist real differences.
func (s *Sale) RecomputeTotal() bool {
	for _, item := range s.Items {
		item.LineTotal = ComputeLineTotal(item.Qty, item.UnitPrice)
	}
	total := ComputeSaleTotal(s.Items)
	if total.Equal(s.TotalAmount) {
		return false
	}
	s.TotalAmount = total
	return true
}
