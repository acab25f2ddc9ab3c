package invitation

import (
	"context"
	"log/slog"

	"github.com/narvanalabs/expense-orgs/internal/models"
)

// Notifier delivers invitation messages to invitees.
type Notifier interface {
	InvitationSent(ctx context.Context, inv *models.InvitationDetails) error
}

// LogNotifier records invitations in the log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that writes to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

// InvitationSent logs the invitation.
func (n *LogNotifier) InvitationSent(ctx context.Context, inv *models.InvitationDetails) error {
	n.logger.InfoContext(ctx, "invitation sent",
		"email", inv.Email,
		"organization", inv.Organization.Name,
		"invitation_id", inv.ID,
		"expires_at", inv.ExpiresAt,
	)
	return nil
}
