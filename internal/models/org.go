// Package models provides the data structures shared by the organization services.
package models

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Role represents a user's role within an organization.
type Role string

const (
	RoleAdmin  Role = "ADMIN"  // Manages members, invitations and categories
	RoleMember Role = "MEMBER" // Read access to organization data
)

// MaxOrgNameLength is the maximum organization name length in characters.
const MaxOrgNameLength = 100

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

// rank orders roles so that a higher rank includes every lower one.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.rank() > 0 && r.rank() >= min.rank()
}

// ParseRole converts user input into a Role. An empty string yields def.
func ParseRole(s string, def Role) (Role, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !role.IsValid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Organization represents a tenant that owns members, invitations and categories.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership links a user to an organization with a role.
type Membership struct {
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
}

// IsAdmin reports whether the membership carries the admin role.
func (m *Membership) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// MemberWithUser is a membership joined with the member's user summary.
type MemberWithUser struct {
	Membership
	User UserSummary `json:"user"`
}

// OrganizationSummary is the subset of organization fields shown alongside memberships and invitations.
type OrganizationSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Slug        string    `json:"slug,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// MembershipWithOrg is a membership joined with its organization summary.
type MembershipWithOrg struct {
	Membership
	Organization OrganizationSummary `json:"organization"`
}

// OrganizationWithMembers is an organization together with all of its memberships.
type OrganizationWithMembers struct {
	Organization
	Members []*MemberWithUser `json:"members"`
}

// Summary returns the organization summary view.
func (o *Organization) Summary() OrganizationSummary {
	return OrganizationSummary{
		ID:          o.ID,
		Name:        o.Name,
		Description: o.Description,
		Slug:        o.Slug,
		CreatedAt:   o.CreatedAt,
	}
}

// ValidateOrgName validates an organization name.
func ValidateOrgName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrOrgNameRequired
	}
	if utf8.RuneCountInString(name) > MaxOrgNameLength {
		return ErrOrgNameTooLong
	}
	return nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// GenerateSlug derives the organization slug from its name: the name is
// lower-cased and every run of whitespace becomes a single hyphen.
func GenerateSlug(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}
