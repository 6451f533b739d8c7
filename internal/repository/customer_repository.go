package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerHasSales = errors.New("customer has sales and cannot be deleted")
)

// CustomerRepository defines the interface for customer data access
type CustomerRepository interface {
	// CreateIfAbsent inserts the customer unless its email is taken and
	// reports whether a row was inserted
	CreateIfAbsent(ctx context.Context, customer *domain.Customer) (bool, error)
	FindByEmail(ctx context.Context, email string, forUpdate bool) (*domain.Customer, error)
	UpdateContact(ctx context.Context, customer *domain.Customer, fields []string) error
	List(ctx context.Context) ([]*domain.Customer, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type customerRepository struct {
	db DBTX
}

// NewCustomerRepository creates a new instance of CustomerRepository
func NewCustomerRepository(db DBTX) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) CreateIfAbsent(ctx context.Context, customer *domain.Customer) (bool, error) {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}

	query := `
		INSERT INTO customers (id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, customer.ID, customer.Name, customer.Email, customer.Phone)
	if err != nil {
		return false, fmt.Errorf("failed to create customer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func (r *customerRepository) FindByEmail(ctx context.Context, email string, forUpdate bool) (*domain.Customer, error) {
	query := `SELECT id, name, email, phone FROM customers WHERE email = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	customer := &domain.Customer{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to find customer by email: %w", err)
	}

	return customer, nil
}

// UpdateContact writes only the named columns
func (r *customerRepository) UpdateContact(ctx context.Context, customer *domain.Customer, fields []string) error {
	if len(fields) == 0 {
		return nil
	}

	sets := make([]string, 0, len(fields))
	args := []interface{}{customer.ID}
	for _, field := range fields {
		switch field {
		case "name":
			args = append(args, customer.Name)
		case "phone":
			args = append(args, customer.Phone)
		default:
			return fmt.Errorf("unknown customer field %q", field)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", field, len(args)))
	}

	query := fmt.Sprintf(`UPDATE customers SET %s WHERE id = $1`, strings.Join(sets, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCustomerNotFound
	}

	return nil
}

func (r *customerRepository) List(ctx context.Context) ([]*domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email, phone FROM customers ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []*domain.Customer{}
	for rows.Next() {
		customer := &domain.Customer{}
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Email, &customer.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, customer)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}

	return customers, nil
}

// Delete refuses to remove a customer that still owns sales
func (r *customerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCustomerHasSales
		}
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCustomerNotFound
	}

	return nil
}
