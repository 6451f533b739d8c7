package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"storefront/internal/domain"
	"storefront/internal/inventory"
	"storefront/internal/metrics"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	pushStatus = "ACTIVE"
	sampleSize = 3
)

// SkippedRow is an inventory row that was ignored on purpose
type SkippedRow struct {
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

// RowError is an inventory row that could not be mapped
type RowError struct {
	SKU   string `json:"sku"`
	Error string `json:"error"`
}

// PullResult reports what a pull did to the catalog
type PullResult struct {
	Received int               `json:"received"`
	Created  []string          `json:"created"`
	Updated  []string          `json:"updated"`
	Skipped  []SkippedRow      `json:"skipped"`
	Errors   []RowError        `json:"errors"`
	Sample   []json.RawMessage `json:"sample"`
}

// PushResult reports a push to the inventory service
type PushResult struct {
	Count             int             `json:"count"`
	InventoryResponse json.RawMessage `json:"inventory_response,omitempty"`
}

// SyncService keeps the catalog aligned with the inventory service
type SyncService interface {
	// Pull upserts every valid inventory row in one transaction. Bad rows
	// are reported, never fatal; only transport or storage failures are.
	Pull(ctx context.Context) (*PullResult, error)
	// Push sends the whole catalog to the inventory service without
	// changing local state
	Push(ctx context.Context) (*PushResult, error)
}

type syncService struct {
	gateway inventory.Gateway
	store   repository.TxRunner
	catalog repository.ProductRepository
	metrics *metrics.Registry
	logger  *zap.Logger
}

// NewSyncService creates a new instance of SyncService
func NewSyncService(
	gateway inventory.Gateway,
	store repository.TxRunner,
	catalog repository.ProductRepository,
	m *metrics.Registry,
	logger *zap.Logger,
) SyncService {
	return &syncService{
		gateway: gateway,
		store:   store,
		catalog: catalog,
		metrics: m,
		logger:  logger,
	}
}

func (s *syncService) Pull(ctx context.Context) (*PullResult, error) {
	rows, err := s.gateway.FetchProducts(ctx)
	if err != nil {
		s.logger.Error("Inventory pull failed", zap.Error(err))
		return nil, err
	}

	result := &PullResult{
		Received: len(rows),
		Created:  []string{},
		Updated:  []string{},
		Skipped:  []SkippedRow{},
		Errors:   []RowError{},
		Sample:   rows[:min(sampleSize, len(rows))],
	}

	products := make([]*domain.Product, 0, len(rows))
	for _, raw := range rows {
		product, skip, err := mapInventoryRow(raw)
		switch {
		case err != nil:
			result.Errors = append(result.Errors, RowError{SKU: rawSKU(raw), Error: err.Error()})
		case skip != nil:
			result.Skipped = append(result.Skipped, *skip)
		default:
			products = append(products, product)
		}
	}

	err = s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		created, updated := []string{}, []string{}
		for _, product := range products {
			isNew, err := repos.Products.Upsert(ctx, product)
			if err != nil {
				return fmt.Errorf("sku %s: %w", product.SKU, err)
			}
			if isNew {
				created = append(created, product.SKU)
			} else {
				updated = append(updated, product.SKU)
			}
		}
		result.Created, result.Updated = created, updated
		return nil
	})
	if err != nil {
		s.logger.Error("Inventory pull rolled back", zap.Error(err))
		return nil, &domain.PersistenceError{Op: "inventory pull", Err: err}
	}

	s.metrics.SyncRows.WithLabelValues(metrics.OutcomeCreated).Add(float64(len(result.Created)))
	s.metrics.SyncRows.WithLabelValues(metrics.OutcomeUpdated).Add(float64(len(result.Updated)))
	s.metrics.SyncRows.WithLabelValues(metrics.OutcomeSkipped).Add(float64(len(result.Skipped)))
	s.metrics.SyncRows.WithLabelValues(metrics.OutcomeErrored).Add(float64(len(result.Errors)))

	s.logger.Info("Synced inventory into catalog",
		zap.Int("received", result.Received),
		zap.Int("created", len(result.Created)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("errors", len(result.Errors)),
	)

	return result, nil
}

func (s *syncService) Push(ctx context.Context) (*PushResult, error) {
	products, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list products", Err: err}
	}

	rows := make([]inventory.PushRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, pushRow(p))
	}

	reply, err := s.gateway.PushProducts(ctx, rows)
	if err != nil {
		s.logger.Error("Inventory push failed", zap.Int("count", len(rows)), zap.Error(err))
		return nil, err
	}

	s.metrics.SyncRows.WithLabelValues(metrics.OutcomePushed).Add(float64(len(rows)))
	s.logger.Info("Pushed catalog to inventory", zap.Int("count", len(rows)))

	return &PushResult{Count: len(rows), InventoryResponse: reply}, nil
}

func pushRow(p *domain.Product) inventory.PushRow {
	unit := p.Unit
	if unit == "" {
		unit = domain.DefaultUnit
	}
	return inventory.PushRow{
		SKU:         domain.NormalizeSKU(p.SKU),
		Name:        p.Name,
		Description: p.Description,
		Unit:        unit,
		ListPrice:   p.Price.StringFixed(2),
		Status:      pushStatus,
		CurrentQty:  p.StockQty,
	}
}

// mapInventoryRow converts one raw inventory row into a product. It returns
// a skip for rows without a sku or name and an error for rows that cannot be
// interpreted at all.
func mapInventoryRow(raw json.RawMessage) (*domain.Product, *SkippedRow, error) {
	var fields map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, nil, errors.New("row is not a JSON object")
	}

	sku := domain.NormalizeSKU(scalarString(fields["sku"]))
	if sku == "" {
		return nil, &SkippedRow{Reason: "missing sku"}, nil
	}

	name := strings.TrimSpace(scalarString(fields["name"]))
	if name == "" {
		return nil, &SkippedRow{SKU: sku, Reason: "empty name"}, nil
	}

	qty, err := parseQuantity(fields["currentQty"])
	if err != nil {
		return nil, nil, err
	}

	unit := strings.TrimSpace(scalarString(fields["unit"]))
	if unit == "" {
		unit = domain.DefaultUnit
	}

	price := parsePrice(fields["listPrice"]).Round(domain.PriceScale)
	if price.Abs().GreaterThanOrEqual(domain.MaxPrice) {
		return nil, nil, fmt.Errorf("listPrice %s out of range", price.String())
	}

	if err := checkLength("sku", sku, domain.MaxSKULength); err != nil {
		return nil, nil, err
	}
	if err := checkLength("name", name, domain.MaxNameLength); err != nil {
		return nil, nil, err
	}
	if err := checkLength("unit", unit, domain.MaxUnitLength); err != nil {
		return nil, nil, err
	}

	status := strings.TrimSpace(scalarString(fields["status"]))

	return &domain.Product{
		SKU:         sku,
		Name:        name,
		Description: strings.TrimSpace(scalarString(fields["description"])),
		Unit:        unit,
		Price:       price,
		StockQty:    qty,
		IsActive:    status == "" || strings.EqualFold(status, "ACTIVE"),
	}, nil, nil
}

// checkLength counts characters, matching VARCHAR(n)
func checkLength(field, value string, limit int) error {
	if n := utf8.RuneCountInString(value); n > limit {
		return fmt.Errorf("%s is %d characters, limit is %d", field, n, limit)
	}
	return nil
}

// parsePrice accepts numbers and numeric strings and falls back to zero
func parsePrice(v interface{}) decimal.Decimal {
	s := strings.TrimSpace(scalarString(v))
	if s == "" {
		return decimal.Zero
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return price
}

func parseQuantity(v interface{}) (int, error) {
	s := strings.TrimSpace(scalarString(v))
	if s == "" {
		return 0, nil
	}
	qty, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid currentQty %q", s)
	}
	if qty < 0 {
		return 0, fmt.Errorf("currentQty must not be negative, got %d", qty)
	}
	if qty > domain.MaxStockQty {
		return 0, fmt.Errorf("currentQty %d out of range", qty)
	}
	return qty, nil
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// rawSKU best-effort extracts the sku of a row for error reporting
func rawSKU(raw json.RawMessage) string {
	var row struct {
		SKU interface{} `json:"sku"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return ""
	}
	switch t := row.SKU.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
