package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Category field limits in characters.
const (
	MaxCategoryNameLength        = 50
	MaxCategoryDescriptionLength = 200
)

// ExpenseCategory groups expenses and policies within an organization.
type ExpenseCategory struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DependentCounts holds the number of records referencing a category.
type DependentCounts struct {
	Expenses int `json:"expenses"`
	Policies int `json:"policies"`
}

// CategoryWithCounts is a category annotated with its dependent counts.
type CategoryWithCounts struct {
	ExpenseCategory
	Count DependentCounts `json:"_count"`
}

// ValidateCategory validates category input fields.
func ValidateCategory(name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrCategoryNameRequired
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return ErrCategoryNameTooLong
	}
	if utf8.RuneCountInString(description) > MaxCategoryDescriptionLength {
		return ErrCategoryDescTooLong
	}
	return nil
}

// SameCategoryName compares category names the way uniqueness is enforced.
func SameCategoryName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
