package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// OrderService turns a cart into a sale
type OrderService interface {
	// PlaceOrder validates the cart against locked catalog rows and commits
	// the customer, sale, items and stock decrements atomically. On success it
	// returns the sale and an emptied cart; on failure the cart comes back
	// unchanged and nothing was written.
	PlaceOrder(ctx context.Context, info domain.CustomerInfo, cart domain.Cart) (*domain.Sale, domain.Cart, error)
}

type orderService struct {
	store    repository.TxRunner
	validate *validator.Validate
	metrics  *metrics.Registry
	logger   *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(store repository.TxRunner, m *metrics.Registry, logger *zap.Logger) OrderService {
	return &orderService{
		store:    store,
		validate: newValidator(),
		metrics:  m,
		logger:   logger,
	}
}

func (s *orderService) PlaceOrder(ctx context.Context, info domain.CustomerInfo, cart domain.Cart) (*domain.Sale, domain.Cart, error) {
	info = info.Normalize()

	if problems := s.checkInput(info, cart); len(problems) > 0 {
		s.metrics.OrdersRejected.WithLabelValues(metrics.ReasonValidation).Inc()
		return nil, cart, &domain.ValidationError{Problems: problems}
	}

	started := time.Now()
	var sale *domain.Sale

	err := s.store.RunInTx(ctx, func(repos repository.Repositories) error {
		customer, err := resolveCustomer(ctx, repos.Customers, info)
		if err != nil {
			return err
		}

		locked, err := lockCartProducts(ctx, repos.Products, cart)
		if err != nil {
			return err
		}

		sale, err = createSale(ctx, repos, customer, cart, locked)
		return err
	})
	if err != nil {
		return nil, cart, s.reject(err, info.Email)
	}

	s.metrics.PlacementSeconds.Observe(time.Since(started).Seconds())
	s.metrics.OrdersPlaced.Inc()

	s.logger.Info("Order placed",
		zap.String("sale_no", sale.SaleNo),
		zap.String("sale_id", sale.ID.String()),
		zap.String("customer_id", sale.CustomerID.String()),
		zap.Int("lines", len(sale.Items)),
		zap.String("total", sale.TotalAmount.StringFixed(2)),
	)

	return sale, domain.Cart{}, nil
}

func (s *orderService) checkInput(info domain.CustomerInfo, cart domain.Cart) []string {
	var problems []string
	if err := s.validate.Struct(info); err != nil {
		problems = append(problems, describeValidation(err)...)
	}
	if cart.IsEmpty() {
		problems = append(problems, "cart is empty")
	}
	for _, sku := range cart.SKUs() {
		if cart[sku].Qty < 1 {
			problems = append(problems, fmt.Sprintf("quantity for %s must be at least 1", sku))
		}
	}
	return problems
}

// reject records why a placement was rolled back and maps storage failures
// onto the error taxonomy
func (s *orderService) reject(err error, email string) error {
	var (
		stockErr   *domain.StockError
		contention *domain.ContentionError
	)

	switch {
	case errors.As(err, &stockErr):
		s.metrics.OrdersRejected.WithLabelValues(metrics.ReasonStock).Inc()
		s.logger.Info("Order rejected", zap.String("email", email), zap.Strings("problems", stockErr.Problems))
		return stockErr
	case errors.As(err, &contention):
		s.metrics.OrdersRejected.WithLabelValues(metrics.ReasonContention).Inc()
		s.metrics.LockContention.Inc()
		s.logger.Warn("Order hit lock contention", zap.String("email", email), zap.Error(err))
		return contention
	default:
		s.metrics.OrdersRejected.WithLabelValues(metrics.ReasonPersistence).Inc()
		s.logger.Error("Order placement failed", zap.String("email", email), zap.Error(err))
		return &domain.PersistenceError{Op: "place order", Err: err}
	}
}

// resolveCustomer finds the customer by email or creates it, then writes
// back only the contact fields that changed
func resolveCustomer(ctx context.Context, customers repository.CustomerRepository, info domain.CustomerInfo) (*domain.Customer, error) {
	customer, err := customers.FindByEmail(ctx, info.Email, true)
	if err == nil {
		if changed := customer.ChangedFields(info); len(changed) > 0 {
			if err := customers.UpdateContact(ctx, customer, changed); err != nil {
				return nil, err
			}
		}
		return customer, nil
	}
	if !errors.Is(err, repository.ErrCustomerNotFound) {
		return nil, err
	}

	customer = &domain.Customer{Name: info.Name, Email: info.Email, Phone: info.Phone}
	created, err := customers.CreateIfAbsent(ctx, customer)
	if err != nil {
		return nil, err
	}
	if created {
		return customer, nil
	}

	// a concurrent checkout inserted the same email first
	return resolveCustomer(ctx, customers, info)
}

// lockCartProducts locks every cart SKU in ascending order and collects every
// problem before giving up
func lockCartProducts(ctx context.Context, products repository.ProductRepository, cart domain.Cart) (map[string]*domain.Product, error) {
	locked := make(map[string]*domain.Product, len(cart))
	var problems []string

	for _, sku := range cart.SKUs() {
		line := cart[sku]

		product, err := products.LockActiveBySKU(ctx, sku)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				problems = append(problems, fmt.Sprintf("Product %s is unavailable.", sku))
				continue
			}
			return nil, err
		}

		if line.Qty > product.StockQty {
			problems = append(problems, fmt.Sprintf("Not enough stock for %s (requested %d, available %d).",
				product.Name, line.Qty, product.StockQty))
			continue
		}

		locked[sku] = product
	}

	if len(problems) > 0 {
		return nil, &domain.StockError{Problems: problems}
	}
	return locked, nil
}

// createSale writes the sale header, snapshots each line at the locked
// catalog price, decrements stock and persists the recomputed total
func createSale(
	ctx context.Context,
	repos repository.Repositories,
	customer *domain.Customer,
	cart domain.Cart,
	locked map[string]*domain.Product,
) (*domain.Sale, error) {
	sale := &domain.Sale{
		CustomerID:  customer.ID,
		Customer:    customer,
		Status:      domain.SaleStatusNew,
		TotalAmount: domain.ComputeSaleTotal(nil),
	}
	if err := repos.Sales.Create(ctx, sale); err != nil {
		return nil, err
	}

	for _, sku := range cart.SKUs() {
		product := locked[sku]
		qty := cart[sku].Qty

		item := domain.NewSaleItem(sale.ID, product, qty)
		if err := repos.Sales.CreateItem(ctx, item); err != nil {
			return nil, err
		}

		if err := repos.Products.DecrementStock(ctx, sku, qty); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, &domain.StockError{Problems: []string{
					fmt.Sprintf("Not enough stock for %s.", product.Name),
				}}
			}
			return nil, err
		}
		product.StockQty -= qty

		sale.Items = append(sale.Items, item)
	}

	if sale.RecomputeTotal() {
		if err := repos.Sales.UpdateTotal(ctx, sale.ID, sale.TotalAmount); err != nil {
			return nil, err
		}
	}

	return sale, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describeValidation(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fe.Field()+" is required")
		case "email":
			problems = append(problems, fe.Field()+" must be a valid email address")
		case "max":
			problems = append(problems, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			problems = append(problems, fe.Field()+" is invalid")
		}
	}
	return problems
}
