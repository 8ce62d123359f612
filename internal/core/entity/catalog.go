package entity

import (
	"context"
	"regexp"
	"strings"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/id"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{1,32}$`)

// Catalog is the base type for reference data: production lines and styles.
type Catalog struct {
	BaseEntity

	// Code is the business key used by the ledger and reports.
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`

	// IsActive marks items that may receive new production entries.
	IsActive bool `db:"is_active" json:"isActive"`
}

// NewCatalog creates an active Catalog with generated ID.
func NewCatalog(code, name string) Catalog {
	return Catalog{
		BaseEntity: NewBaseEntity(),
		Code:       NormalizeCode(code),
		Name:       strings.TrimSpace(name),
		IsActive:   true,
	}
}

// NormalizeCode trims and upper-cases a business code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks the business code format.
func ValidateCode(field, code string) error {
	if code == "" {
		return apperror.NewValidation(field+" is required").
			WithDetail("field", field)
	}
	if !codePattern.MatchString(code) {
		return apperror.NewValidation(field+" must match [A-Z0-9_-]{1,32}").
			WithDetail("field", field).
			WithDetail("value", code)
	}
	return nil
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if err := ValidateCode("code", c.Code); err != nil {
		return err
	}
	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}

// GetID returns the primary key.
func (c *Catalog) GetID() id.ID { return c.ID }

// GetCode returns the business code.
func (c *Catalog) GetCode() string { return c.Code }

// SetActive toggles IsActive.
func (c *Catalog) SetActive(active bool) { c.IsActive = active }

// GetName returns the display name.
func (c *Catalog) GetName() string { return c.Name }

// Active reports IsActive.
func (c *Catalog) Active() bool { return c.IsActive }
