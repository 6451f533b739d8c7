package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultUnit is used when a product carries no unit label
const DefaultUnit = "pcs"

// Column limits of the products table
const (
	MaxSKULength  = 64
	MaxNameLength = 200
	MaxUnitLength = 30
	MaxStockQty   = math.MaxInt32
	PriceScale    = 2
)

// MaxPrice is the first value NUMERIC(12,2) cannot hold
var MaxPrice = decimal.New(1, 10)

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	SKU         string          `json:"sku" db:"sku"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Unit        string          `json:"unit" db:"unit"`
	Price       decimal.Decimal `json:"price" db:"price"`
	StockQty    int             `json:"stock_qty" db:"stock_qty"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// NormalizeSKU trims and upper-cases a SKU so lookups are case-insensitive
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}
