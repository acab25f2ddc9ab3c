package models

// Principal is the authenticated caller, supplied by the identity provider.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// IsAuthenticated reports whether the principal carries an identity.
func (p Principal) IsAuthenticated() bool {
	return p.ID != ""
}

// UserSummary is the public view of a user joined onto memberships and invitations.
type UserSummary struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
