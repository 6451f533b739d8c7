package service

import (
	"context"
	"errors"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// CatalogService is the storefront's read view of the catalog
type CatalogService interface {
	ListActive(ctx context.Context) ([]*domain.Product, error)
	// GetBySKU hides inactive products behind a NotFoundError
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)
}

type catalogService struct {
	products repository.ProductRepository
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(products repository.ProductRepository) CatalogService {
	return &catalogService{products: products}
}

func (s *catalogService) ListActive(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.products.ListActive(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list products", Err: err}
	}
	return products, nil
}

func (s *catalogService) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	sku = domain.NormalizeSKU(sku)

	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, &domain.NotFoundError{SKU: sku}
		}
		return nil, &domain.PersistenceError{Op: "find product", Err: err}
	}
	if !product.IsActive {
		return nil, &domain.NotFoundError{SKU: sku}
	}
	return product, nil
}
