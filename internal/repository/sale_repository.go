package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxSaleNumberAttempts bounds regeneration when a sale number collides
const maxSaleNumberAttempts = 5

var (
	ErrSaleNotFound            = errors.New("sale not found")
	ErrInvalidStatusTransition = errors.New("sale status transition not allowed")
	ErrSaleNumberExhausted     = errors.New("could not allocate a unique sale number")
)

// SaleRepository defines the interface for the sale ledger
type SaleRepository interface {
	// Create inserts the sale header and assigns its sale number
	Create(ctx context.Context, sale *domain.Sale) error
	CreateItem(ctx context.Context, item *domain.SaleItem) error
	UpdateTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error
	// FindByID returns the sale with its customer and items
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	ListItems(ctx context.Context, saleID uuid.UUID) ([]*domain.SaleItem, error)
	List(ctx context.Context, status *domain.SaleStatus) ([]*domain.Sale, error)
	// UpdateStatus moves a sale from one status to another
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.SaleStatus, paidAt *time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type saleRepository struct {
	db DBTX
}

// NewSaleRepository creates a new instance of SaleRepository
func NewSaleRepository(db DBTX) SaleRepository {
	return &saleRepository{db: db}
}

// Create uses ON CONFLICT so a sale number collision does not abort the
// surrounding transaction
func (r *saleRepository) Create(ctx context.Context, sale *domain.Sale) error {
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusNew
	}

	query := `
		INSERT INTO sales (id, sale_no, customer_id, status, total_amount, created_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sale_no) DO NOTHING
	`

	for attempt := 0; attempt < maxSaleNumberAttempts; attempt++ {
		if sale.SaleNo == "" || attempt > 0 {
			sale.SaleNo = domain.NewSaleNumber(sale.CreatedAt)
		}

		result, err := r.db.ExecContext(
			ctx,
			query,
			sale.ID,
			sale.SaleNo,
			sale.CustomerID,
			sale.Status,
			sale.TotalAmount,
			sale.CreatedAt,
			sale.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 1 {
			return nil
		}
	}

	return ErrSaleNumberExhausted
}

func (r *saleRepository) CreateItem(ctx context.Context, item *domain.SaleItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	query := `
		INSERT INTO sale_items (id, sale_id, sku, product_name, unit, qty, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.SaleID,
		item.SKU,
		item.ProductName,
		item.Unit,
		item.Qty,
		item.UnitPrice,
		item.LineTotal,
	)
	if err != nil {
		return fmt.Errorf("failed to create sale item: %w", err)
	}

	return nil
}

func (r *saleRepository) UpdateTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	result, err := r.db.ExecContext(ctx, `UPDATE sales SET total_amount = $2 WHERE id = $1`, id, total)
	if err != nil {
		return fmt.Errorf("failed to update sale total: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSaleNotFound
	}

	return nil
}

const saleWithCustomerQuery = `
	SELECT s.id, s.sale_no, s.customer_id, s.status, s.total_amount, s.created_at, s.paid_at,
	       c.id, c.name, c.email, c.phone
	FROM sales s
	JOIN customers c ON c.id = s.customer_id
`

func scanSale(row rowScanner) (*domain.Sale, error) {
	sale := &domain.Sale{Customer: &domain.Customer{}}
	var paidAt sql.NullTime
	err := row.Scan(
		&sale.ID,
		&sale.SaleNo,
		&sale.CustomerID,
		&sale.Status,
		&sale.TotalAmount,
		&sale.CreatedAt,
		&paidAt,
		&sale.Customer.ID,
		&sale.Customer.Name,
		&sale.Customer.Email,
		&sale.Customer.Phone,
	)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		sale.PaidAt = &t
	}
	return sale, nil
}

func (r *saleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	sale, err := scanSale(r.db.QueryRowContext(ctx, saleWithCustomerQuery+` WHERE s.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to find sale by ID: %w", err)
	}

	sale.Items, err = r.ListItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}

	return sale, nil
}

func (r *saleRepository) ListItems(ctx context.Context, saleID uuid.UUID) ([]*domain.SaleItem, error) {
	query := `
		SELECT id, sale_id, sku, product_name, unit, qty, unit_price, line_total
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY sku ASC
	`

	rows, err := r.db.QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sale items: %w", err)
	}
	defer rows.Close()

	items := []*domain.SaleItem{}
	for rows.Next() {
		item := &domain.SaleItem{}
		err := rows.Scan(
			&item.ID,
			&item.SaleID,
			&item.SKU,
			&item.ProductName,
			&item.Unit,
			&item.Qty,
			&item.UnitPrice,
			&item.LineTotal,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sale items: %w", err)
	}

	return items, nil
}

// List returns sales newest first, optionally filtered by status
func (r *saleRepository) List(ctx context.Context, status *domain.SaleStatus) ([]*domain.Sale, error) {
	query := saleWithCustomerQuery
	args := []interface{}{}
	if status != nil {
		query += ` WHERE s.status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY s.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	sales := []*domain.Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}

	return sales, nil
}

func (r *saleRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.SaleStatus, paidAt *time.Time) error {
	query := `
		UPDATE sales
		SET status = $3, paid_at = COALESCE($4, paid_at)
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, to, paidAt)
	if err != nil {
		return fmt.Errorf("failed to update sale status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check sale: %w", err)
		}
		if !exists {
			return ErrSaleNotFound
		}
		return ErrInvalidStatusTransition
	}

	return nil
}

// Delete removes a sale; its items go with it
func (r *saleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSaleNotFound
	}

	return nil
}
