package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartNotice tells the shopper what a cart mutation adjusted
type CartNotice struct {
	Capped   bool     `json:"capped"`
	Warnings []string `json:"warnings,omitempty"`
}

func (n *CartNotice) warn(format string, args ...interface{}) {
	n.Warnings = append(n.Warnings, fmt.Sprintf(format, args...))
}

// CartView is the display form of a cart. Prices are the ones cached when
// each line was added.
type CartView struct {
	Items      []CartViewLine  `json:"items"`
	TotalItems int             `json:"total_items"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

type CartViewLine struct {
	domain.CartLine
	LineTotal decimal.Decimal `json:"line_total"`
}

// CartService applies mutations to a cart value. The input cart is never
// modified; every operation returns a new one. Stock is read without locks.
type CartService interface {
	AddItem(ctx context.Context, cart domain.Cart, sku string, qty int) (domain.Cart, CartNotice, error)
	SetQuantity(ctx context.Context, cart domain.Cart, sku string, qty int) (domain.Cart, CartNotice, error)
	RemoveItem(cart domain.Cart, sku string) (domain.Cart, error)
	View(cart domain.Cart) CartView
}

type cartService struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

// NewCartService creates a new instance of CartService
func NewCartService(products repository.ProductRepository, logger *zap.Logger) CartService {
	return &cartService{products: products, logger: logger}
}

// AddItem adds qty to the existing line, capped at available stock
func (s *cartService) AddItem(ctx context.Context, cart domain.Cart, sku string, qty int) (domain.Cart, CartNotice, error) {
	var notice CartNotice
	sku = domain.NormalizeSKU(sku)
	if qty < 1 {
		qty = 1
	}

	product, err := s.activeProduct(ctx, sku)
	if err != nil {
		return cart, notice, err
	}
	if product.StockQty <= 0 {
		return cart, notice, &domain.OutOfStockError{SKU: sku, Name: product.Name}
	}

	desired := cart[sku].Qty + qty
	if desired > product.StockQty {
		desired = product.StockQty
		notice.Capped = true
		notice.warn("Only %d of %s available; quantity capped.", product.StockQty, product.Name)
	}

	next := cart.Clone()
	next[sku] = lineFor(product, desired)

	s.logger.Debug("Cart item added",
		zap.String("sku", sku),
		zap.Int("requested", qty),
		zap.Int("qty", desired),
		zap.Bool("capped", notice.Capped),
	)

	return next, notice, nil
}

// SetQuantity replaces the line quantity. qty <= 0 removes the line, and a
// line whose product is gone or out of stock is dropped with a warning.
func (s *cartService) SetQuantity(ctx context.Context, cart domain.Cart, sku string, qty int) (domain.Cart, CartNotice, error) {
	var notice CartNotice
	sku = domain.NormalizeSKU(sku)

	line, ok := cart[sku]
	if !ok {
		return cart, notice, domain.ErrNotInCart
	}

	next := cart.Clone()
	if qty <= 0 {
		delete(next, sku)
		return next, notice, nil
	}

	product, err := s.activeProduct(ctx, sku)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			delete(next, sku)
			notice.warn("%s is no longer available and was removed.", line.Name)
			return next, notice, nil
		}
		return cart, notice, err
	}

	if product.StockQty <= 0 {
		delete(next, sku)
		notice.warn("%s is out of stock and was removed.", product.Name)
		return next, notice, nil
	}

	if qty > product.StockQty {
		qty = product.StockQty
		notice.Capped = true
		notice.warn("Only %d of %s available; quantity capped.", product.StockQty, product.Name)
	}

	next[sku] = lineFor(product, qty)
	return next, notice, nil
}

// RemoveItem deletes a line; an absent SKU leaves the cart as it was and
// returns ErrNotInCart
func (s *cartService) RemoveItem(cart domain.Cart, sku string) (domain.Cart, error) {
	sku = domain.NormalizeSKU(sku)
	if _, ok := cart[sku]; !ok {
		return cart, domain.ErrNotInCart
	}

	next := cart.Clone()
	delete(next, sku)
	return next, nil
}

func (s *cartService) View(cart domain.Cart) CartView {
	view := CartView{
		Items:      make([]CartViewLine, 0, len(cart)),
		TotalItems: cart.TotalItems(),
		GrandTotal: cart.GrandTotal(),
	}
	for _, line := range cart.Lines() {
		view.Items = append(view.Items, CartViewLine{CartLine: line, LineTotal: line.LineTotal()})
	}
	return view
}

func (s *cartService) activeProduct(ctx context.Context, sku string) (*domain.Product, error) {
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

func lineFor(p *domain.Product, qty int) domain.CartLine {
	unit := p.Unit
	if unit == "" {
		unit = domain.DefaultUnit
	}
	return domain.CartLine{SKU: p.SKU, Name: p.Name, Unit: unit, Price: p.Price, Qty: qty}
}
