package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/narvanalabs/expense-orgs/internal/api/errors"
	"github.com/narvanalabs/expense-orgs/internal/auth"
	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
	"github.com/narvanalabs/expense-orgs/pkg/logger"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a copy of ctx carrying the authenticated caller.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, or the zero
// Principal when the request is anonymous.
func PrincipalFromContext(ctx context.Context) models.Principal {
	p, _ := ctx.Value(principalKey).(models.Principal)
	return p
}

// AuthMiddleware validates bearer tokens and records the caller.
type AuthMiddleware struct {
	authService *auth.Service
	users       store.UserStore
	logger      *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware. When users is
// non-nil, every verified principal is mirrored into it so memberships and
// invitations can reference the caller.
func NewAuthMiddleware(authService *auth.Service, users store.UserStore, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{
		authService: authService,
		users:       users,
		logger:      logger,
	}
}

// Authenticate is a middleware that validates JWT bearer tokens.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimiddleware.GetReqID(r.Context())

		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			apierrors.WriteError(w, apierrors.NewUnauthorizedError("Missing authentication").WithRequestID(requestID))
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			m.logger.Debug("JWT validation failed", "error", err, "request_id", requestID)
			message := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				message = "Token has expired"
			}
			apierrors.WriteError(w, apierrors.NewUnauthorizedError(message).WithRequestID(requestID))
			return
		}

		principal := claims.Principal()
		if apiErr := m.syncUser(r.Context(), principal); apiErr != nil {
			apierrors.WriteError(w, apiErr.WithRequestID(requestID))
			return
		}

		ctx := WithPrincipal(r.Context(), principal)
		ctx = logger.ContextWithUserID(ctx, principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// syncUser mirrors the principal into the user store. A caller that cannot
// be recorded could not be referenced by a membership, so the request is
// rejected.
func (m *AuthMiddleware) syncUser(ctx context.Context, p models.Principal) *apierrors.APIError {
	if m.users == nil {
		return nil
	}
	err := m.users.Upsert(ctx, &models.UserSummary{ID: p.ID, Name: p.Name, Email: p.Email})
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrDuplicate) {
		m.logger.Warn("email already registered to another user", "user_id", p.ID)
		return apierrors.New(apierrors.CodeConflict, "Email is already registered to another user")
	}
	m.logger.Error("failed to sync user", "error", err, "user_id", p.ID)
	return apierrors.NewInternalError("Failed to record user")
}
