package models

import "errors"

// ErrorKind classifies a domain failure. The API layer maps kinds to status codes.
type ErrorKind string

const (
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindUnauthenticated    ErrorKind = "UNAUTHENTICATED"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindConflict           ErrorKind = "CONFLICT"
	KindInvariantViolation ErrorKind = "INVARIANT_VIOLATION"
	KindInvalidState       ErrorKind = "INVALID_STATE"
	KindExpired            ErrorKind = "EXPIRED"
	KindEmailMismatch      ErrorKind = "EMAIL_MISMATCH"
)

// Reason narrows an ErrorKind to the rule that was broken.
type Reason string

const (
	ReasonMembershipRequired Reason = "MEMBERSHIP_REQUIRED"
	ReasonAdminRequired      Reason = "ADMIN_REQUIRED"
	ReasonAlreadyMember      Reason = "ALREADY_MEMBER"
	ReasonAlreadyInvited     Reason = "ALREADY_INVITED"
	ReasonDuplicateName      Reason = "DUPLICATE_NAME"
	ReasonLastAdmin          Reason = "LAST_ADMIN"
	ReasonHasExpenses        Reason = "HAS_EXPENSES"
	ReasonHasPolicies        Reason = "HAS_POLICIES"
	ReasonOrganization       Reason = "ORGANIZATION"
	ReasonMember             Reason = "MEMBER"
	ReasonInvitation         Reason = "INVITATION"
	ReasonCategory           Reason = "CATEGORY"
	ReasonInvalidInput       Reason = "INVALID_INPUT"
	ReasonInvalidTransition  Reason = "INVALID_TRANSITION"
)

// Error is a domain failure with a user-visible message.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Reason  Reason    `json:"reason,omitempty"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Is matches errors of the same kind and reason, so that field-specific
// validation errors still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// KindOf returns the ErrorKind of err, or "" if err is not a domain error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind ErrorKind, reason Reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// NewValidationError creates a validation error for a single input field.
func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Reason: ReasonInvalidInput, Field: field, Message: message}
}

// Access errors.
var (
	ErrUnauthenticated    = newError(KindUnauthenticated, "", "Authentication required")
	ErrMembershipRequired = newError(KindForbidden, ReasonMembershipRequired, "Organization membership required")
	ErrAdminRequired      = newError(KindForbidden, ReasonAdminRequired, "Admin access required")
)

// Lookup errors.
var (
	ErrOrgNotFound        = newError(KindNotFound, ReasonOrganization, "Organization not found")
	ErrMemberNotFound     = newError(KindNotFound, ReasonMember, "Member not found")
	ErrInvitationNotFound = newError(KindNotFound, ReasonInvitation, "Invitation not found")
	ErrCategoryNotFound   = newError(KindNotFound, ReasonCategory, "Category not found")
)

// Business rule errors.
var (
	ErrLastAdmin             = newError(KindInvariantViolation, ReasonLastAdmin, "Cannot remove the last admin from the organization")
	ErrAlreadyMember         = newError(KindConflict, ReasonAlreadyMember, "User is already a member of this organization")
	ErrAlreadyMemberSelf     = newError(KindConflict, ReasonAlreadyMember, "You are already a member of this organization")
	ErrAlreadyInvited        = newError(KindConflict, ReasonAlreadyInvited, "User already has a pending invitation")
	ErrDuplicateCategoryName = newError(KindConflict, ReasonDuplicateName, "A category with this name already exists in your organization")
	ErrCategoryHasExpenses   = newError(KindInvariantViolation, ReasonHasExpenses, "Cannot delete category that has associated expenses")
	ErrCategoryHasPolicies   = newError(KindInvariantViolation, ReasonHasPolicies, "Cannot delete category that has associated policies")
	ErrInvitationNotPending  = newError(KindInvalidState, "", "Invitation is no longer valid")
	ErrInvitationExpired     = newError(KindExpired, "", "Invitation has expired")
	ErrInvitationEmail       = newError(KindEmailMismatch, "", "This invitation is not for your email address")
	ErrInvalidTransition     = newError(KindInvalidState, ReasonInvalidTransition, "Invalid invitation status transition")
)

// Validation errors.
var (
	ErrOrgNameRequired        = NewValidationError("name", "Organization name is required")
	ErrOrgNameTooLong         = NewValidationError("name", "Organization name must be 100 characters or less")
	ErrCategoryNameRequired   = NewValidationError("name", "Category name is required")
	ErrCategoryNameTooLong    = NewValidationError("name", "Category name must be 50 characters or less")
	ErrCategoryDescTooLong    = NewValidationError("description", "Description must be 200 characters or less")
	ErrInvalidEmail           = NewValidationError("email", "Invalid email address")
	ErrInvalidRole            = NewValidationError("role", "Invalid role")
	ErrOrganizationIDRequired = NewValidationError("organizationId", "Organization ID is required")
	ErrUserIDRequired         = NewValidationError("userId", "User ID is required")
	ErrInvitationIDRequired   = NewValidationError("invitationId", "Invitation ID is required")
	ErrCategoryIDRequired     = NewValidationError("categoryId", "Category ID is required")
)
