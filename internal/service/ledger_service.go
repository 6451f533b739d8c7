package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService is the admin surface over sales and customers
type LedgerService interface {
	// ListSales filters by status; an empty status lists everything
	ListSales(ctx context.Context, status string) ([]*domain.Sale, error)
	GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	ListCustomers(ctx context.Context) ([]*domain.Customer, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
	DeleteSale(ctx context.Context, id uuid.UUID) error
}

type ledgerService struct {
	sales     repository.SaleRepository
	customers repository.CustomerRepository
	logger    *zap.Logger
}

// NewLedgerService creates a new instance of LedgerService
func NewLedgerService(sales repository.SaleRepository, customers repository.CustomerRepository, logger *zap.Logger) LedgerService {
	return &ledgerService{sales: sales, customers: customers, logger: logger}
}

func (s *ledgerService) ListSales(ctx context.Context, status string) ([]*domain.Sale, error) {
	var filter *domain.SaleStatus
	if status = strings.TrimSpace(status); status != "" {
		st := domain.SaleStatus(strings.ToUpper(status))
		if !st.Valid() {
			return nil, &domain.ValidationError{Problems: []string{"unknown sale status " + status}}
		}
		filter = &st
	}

	sales, err := s.sales.List(ctx, filter)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list sales", Err: err}
	}
	return sales, nil
}

func (s *ledgerService) GetSale(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	sale, err := s.sales.FindByID(ctx, id)
	if err != nil {
		return nil, ledgerError("find sale", err)
	}
	return sale, nil
}

func (s *ledgerService) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	customers, err := s.customers.List(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list customers", Err: err}
	}
	return customers, nil
}

// MarkPaid moves a NEW sale to PAID and stamps paid_at
func (s *ledgerService) MarkPaid(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	paidAt := time.Now().UTC()
	return s.transition(ctx, id, domain.SaleStatusPaid, &paidAt)
}

// Cancel moves a NEW sale to CANCELLED. Stock is not restored.
func (s *ledgerService) Cancel(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	return s.transition(ctx, id, domain.SaleStatusCancelled, nil)
}

func (s *ledgerService) transition(ctx context.Context, id uuid.UUID, to domain.SaleStatus, paidAt *time.Time) (*domain.Sale, error) {
	if err := s.sales.UpdateStatus(ctx, id, domain.SaleStatusNew, to, paidAt); err != nil {
		return nil, ledgerError("update sale status", err)
	}

	s.logger.Info("Sale status changed", zap.String("sale_id", id.String()), zap.String("status", string(to)))
	return s.GetSale(ctx, id)
}

func (s *ledgerService) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	if err := s.customers.Delete(ctx, id); err != nil {
		return ledgerError("delete customer", err)
	}
	s.logger.Info("Customer deleted", zap.String("customer_id", id.String()))
	return nil
}

func (s *ledgerService) DeleteSale(ctx context.Context, id uuid.UUID) error {
	if err := s.sales.Delete(ctx, id); err != nil {
		return ledgerError("delete sale", err)
	}
	s.logger.Info("Sale deleted", zap.String("sale_id", id.String()))
	return nil
}

// ledgerError passes repository sentinels through for the transport layer
// and wraps anything else as a persistence failure
func ledgerError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrSaleNotFound),
		errors.Is(err, repository.ErrCustomerNotFound),
		errors.Is(err, repository.ErrCustomerHasSales),
		errors.Is(err, repository.ErrInvalidStatusTransition):
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
