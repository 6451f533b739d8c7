package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CartLine is a display snapshot of a product taken when it was added.
// Its price is never used at checkout.
type CartLine struct {
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Unit  string          `json:"unit"`
	Price decimal.Decimal `json:"price"`
	Qty   int             `json:"qty"`
}

// LineTotal returns the display total of the line
func (l CartLine) LineTotal() decimal.Decimal {
	return ComputeLineTotal(l.Qty, l.Price)
}

// Cart maps a SKU to its line. Cart operations never modify their input;
// they return a new Cart.
type Cart map[string]CartLine

// Clone returns an independent copy of the cart
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for sku, line := range c {
		out[sku] = line
	}
	return out
}

// IsEmpty reports whether the cart has no lines
func (c Cart) IsEmpty() bool {
	return len(c) == 0
}

// Lines returns the lines ordered by SKU
func (c Cart) Lines() []CartLine {
	lines := make([]CartLine, 0, len(c))
	for _, line := range c {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].SKU < lines[j].SKU })
	return lines
}

// SKUs returns the cart SKUs in ascending order
func (c Cart) SKUs() []string {
	skus := make([]string, 0, len(c))
	for sku := range c {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus
}

// TotalItems sums the quantities of all lines
func (c Cart) TotalItems() int {
	n := 0
	for _, line := range c {
		n += line.Qty
	}
	return n
}

// GrandTotal sums the display line totals
func (c Cart) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c {
		total = total.Add(line.LineTotal())
	}
	return total
}
