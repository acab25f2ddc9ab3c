package store

import (
	"errors"
	"fmt"
)

// Common store errors.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicate is returned when a write would break a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate resource")

	// ErrReferenced is returned when a delete is blocked by rows referencing the target.
	ErrReferenced = errors.New("resource is still referenced")

	// ErrReferencedByPolicies narrows ErrReferenced to a category still used by
	// approval policies.
	ErrReferencedByPolicies = fmt.Errorf("%w by policies", ErrReferenced)

	// ErrConflict is returned when a conditional write finds the row already
	// moved on, for example an invitation that is no longer pending.
	ErrConflict = errors.New("resource state changed")
)
