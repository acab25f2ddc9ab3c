package models

import (
	"net/mail"
	"strings"
	"time"
)

// InvitationStatus represents the lifecycle state of an invitation.
type InvitationStatus string

const (
	// InvitationStatusPending indicates the invitation is waiting for the invitee.
	InvitationStatusPending InvitationStatus = "PENDING"
	// InvitationStatusAccepted indicates the invitee joined the organization.
	InvitationStatusAccepted InvitationStatus = "ACCEPTED"
	// InvitationStatusExpired indicates acceptance was attempted after expiry.
	InvitationStatusExpired InvitationStatus = "EXPIRED"
	// InvitationStatusCancelled indicates an admin withdrew the invitation.
	InvitationStatusCancelled InvitationStatus = "CANCELLED"
)

// InvitationTTL is the default validity window of a new invitation.
const InvitationTTL = 7 * 24 * time.Hour

// invitationTransitions lists the allowed status changes. Every state other
// than PENDING is terminal.
var invitationTransitions = map[InvitationStatus][]InvitationStatus{
	InvitationStatusPending: {
		InvitationStatusAccepted,
		InvitationStatusCancelled,
		InvitationStatusExpired,
	},
}

// IsTerminal reports whether no further transition is possible from s.
func (s InvitationStatus) IsTerminal() bool {
	return len(invitationTransitions[s]) == 0
}

// CanTransition reports whether s may move to next.
func (s InvitationStatus) CanTransition(next InvitationStatus) bool {
	for _, allowed := range invitationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Invitation represents an offer for an email address to join an organization.
type Invitation struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	Email          string           `json:"email"`
	Role           Role             `json:"role"`
	InvitedBy      string           `json:"invited_by"`
	Status         InvitationStatus `json:"status"`
	ExpiresAt      time.Time        `json:"expires_at"`
	AcceptedAt     *time.Time       `json:"accepted_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// IsExpiredAt reports whether the invitation had expired at now.
func (i *Invitation) IsExpiredAt(now time.Time) bool {
	return i.ExpiresAt.Before(now)
}

// Transition moves the invitation to next, recording the acceptance time
// when next is ACCEPTED.
func (i *Invitation) Transition(next InvitationStatus, now time.Time) error {
	if !i.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	i.Status = next
	if next == InvitationStatusAccepted {
		accepted := now
		i.AcceptedAt = &accepted
	}
	return nil
}

// InvitationDetails is an invitation joined with its organization and inviter.
type InvitationDetails struct {
	Invitation
	Organization OrganizationSummary `json:"organization"`
	Inviter      UserSummary         `json:"invited_by_user"`
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address such as "a@b.com".
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return ErrInvalidEmail
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}
