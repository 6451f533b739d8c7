package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Customer is created on the first order placed with a given email
type Customer struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Name  string    `json:"name" db:"name"`
	Email string    `json:"email" db:"email"`
	Phone string    `json:"phone" db:"phone"`
}

// CustomerInfo is the guest checkout form
type CustomerInfo struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone" validate:"max=30"`
}

// Normalize trims every field and lower-cases the email
func (c CustomerInfo) Normalize() CustomerInfo {
	return CustomerInfo{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// ChangedFields applies info to the customer and returns the names of the
// columns that changed. An empty phone never clears a stored one.
func (c *Customer) ChangedFields(info CustomerInfo) []string {
	var changed []string
	if info.Name != "" && c.Name != info.Name {
		c.Name = info.Name
		changed = append(changed, "name")
	}
	if info.Phone != "" && c.Phone != info.Phone {
		c.Phone = info.Phone
		changed = append(changed, "phone")
	}
	return changed
}
