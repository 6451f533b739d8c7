package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus is the lifecycle state of a sale
type SaleStatus string

const (
	SaleStatusNew       SaleStatus = "NEW"
	SaleStatusPaid      SaleStatus = "PAID"
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

// Valid reports whether s is a known status
func (s SaleStatus) Valid() bool {
	switch s {
	case SaleStatusNew, SaleStatusPaid, SaleStatusCancelled:
		return true
	}
	return false
}

// Sale is a durable order record
type Sale struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	SaleNo      string          `json:"sale_no" db:"sale_no"`
	CustomerID  uuid.UUID       `json:"customer_id" db:"customer_id"`
	Customer    *Customer       `json:"customer,omitempty"`
	Status      SaleStatus      `json:"status" db:"status"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	PaidAt      *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	Items       []*SaleItem     `json:"items,omitempty"`
}

// SaleItem is one line of a sale. Name, unit and price are copied from the
// catalog at sale time.
type SaleItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	SaleID      uuid.UUID       `json:"sale_id" db:"sale_id"`
	SKU         string          `json:"sku" db:"sku"`
	ProductName string          `json:"product_name" db:"product_name"`
	Unit        string          `json:"unit" db:"unit"`
	Qty         int             `json:"qty" db:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total" db:"line_total"`
}

// NewSaleItem snapshots a product into a sale line and computes its total
func NewSaleItem(saleID uuid.UUID, p *Product, qty int) *SaleItem {
	return &SaleItem{
		ID:          uuid.New(),
		SaleID:      saleID,
		SKU:         p.SKU,
		ProductName: p.Name,
		Unit:        p.Unit,
		Qty:         qty,
		UnitPrice:   p.Price,
		LineTotal:   ComputeLineTotal(qty, p.Price),
	}
}

// NewSaleNumber returns a human readable sale number like 20251019-3FA9C1
func NewSaleNumber(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return now.Format("20060102") + "-" + strings.ToUpper(suffix)
}
