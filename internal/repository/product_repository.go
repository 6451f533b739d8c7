package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("product with this sku already exists")
	ErrInsufficientStock    = errors.New("insufficient stock")
)

// ProductRepository defines the interface for catalog data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
	ListActive(ctx context.Context) ([]*domain.Product, error)
	ListAll(ctx context.Context) ([]*domain.Product, error)
	// LockActiveBySKU reads an active product and holds an exclusive row
	// lock on it until the surrounding transaction ends
	LockActiveBySKU(ctx context.Context, sku string) (*domain.Product, error)
	DecrementStock(ctx context.Context, sku string, qty int) error
	// Upsert replaces every field of the product keyed by sku and reports
	// whether a new row was inserted
	Upsert(ctx context.Context, product *domain.Product) (created bool, err error)
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, sku, name, description, unit, price, stock_qty, is_active, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.Unit,
		&product.Price,
		&product.StockQty,
		&product.IsActive,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Create inserts a new product
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.SKU = domain.NormalizeSKU(product.SKU)

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.ID,
		product.SKU,
		product.Name,
		product.Description,
		product.Unit,
		product.Price,
		product.StockQty,
		product.IsActive,
	).Scan(&product.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrProductAlreadyExists
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update replaces the mutable fields of an existing product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, unit = $4, price = $5,
		    stock_qty = $6, is_active = $7, updated_at = NOW()
		WHERE sku = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		domain.NormalizeSKU(product.SKU),
		product.Name,
		product.Description,
		product.Unit,
		product.Price,
		product.StockQty,
		product.IsActive,
	).Scan(&product.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	return nil
}

// FindBySKU retrieves a product regardless of its active flag
func (r *productRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, domain.NormalizeSKU(sku)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by sku: %w", err)
	}

	return product, nil
}

// ListActive returns the storefront catalog ordered by name
func (r *productRepository) ListActive(ctx context.Context) ([]*domain.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY name ASC`)
}

// ListAll returns every product ordered by sku
func (r *productRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products ORDER BY sku ASC`)
}

func (r *productRepository) list(ctx context.Context, query string) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// LockActiveBySKU must run inside a transaction
func (r *productRepository) LockActiveBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE sku = $1 AND is_active
		FOR UPDATE
	`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, domain.NormalizeSKU(sku)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if isContention(err) {
			return nil, &domain.ContentionError{Err: err}
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	return product, nil
}

// DecrementStock never lets stock go negative
func (r *productRepository) DecrementStock(ctx context.Context, sku string, qty int) error {
	query := `
		UPDATE products
		SET stock_qty = stock_qty - $2
		WHERE sku = $1 AND stock_qty >= $2
	`

	result, err := r.db.ExecContext(ctx, query, domain.NormalizeSKU(sku), qty)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrInsufficientStock
	}

	return nil
}

// Upsert inserts or fully replaces a product keyed by sku
func (r *productRepository) Upsert(ctx context.Context, product *domain.Product) (bool, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.SKU = domain.NormalizeSKU(product.SKU)

	// xmax is zero only for freshly inserted row versions
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (sku) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    unit = EXCLUDED.unit,
		    price = EXCLUDED.price,
		    stock_qty = EXCLUDED.stock_qty,
		    is_active = EXCLUDED.is_active,
		    updated_at = NOW()
		RETURNING id, updated_at, (xmax = 0) AS inserted
	`

	var created bool
	err := r.db.QueryRowContext(
		ctx,
		query,
		product.ID,
		product.SKU,
		product.Name,
		product.Description,
		product.Unit,
		product.Price,
		product.StockQty,
		product.IsActive,
	).Scan(&product.ID, &product.UpdatedAt, &created)

	if err != nil {
		return false, fmt.Errorf("failed to upsert product: %w", err)
	}

	return created, nil
}
