// Package api provides the HTTP API server for organization management.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/narvanalabs/expense-orgs/internal/access"
	"github.com/narvanalabs/expense-orgs/internal/api/handlers"
	"github.com/narvanalabs/expense-orgs/internal/api/health"
	"github.com/narvanalabs/expense-orgs/internal/api/middleware"
	"github.com/narvanalabs/expense-orgs/internal/auth"
	"github.com/narvanalabs/expense-orgs/internal/category"
	"github.com/narvanalabs/expense-orgs/internal/invitation"
	"github.com/narvanalabs/expense-orgs/internal/membership"
	"github.com/narvanalabs/expense-orgs/internal/metrics"
	"github.com/narvanalabs/expense-orgs/internal/organization"
	"github.com/narvanalabs/expense-orgs/internal/store"
	"github.com/narvanalabs/expense-orgs/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Options carries optional collaborators of the server.
type Options struct {
	// Notifier receives invitation notifications. Defaults to logging them.
	Notifier invitation.Notifier
	// Metrics collects request and rejection metrics. Defaults to a fresh registry.
	Metrics *metrics.Metrics
}

// Server represents the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      store.Store
	auth       *auth.Service
	metrics    *metrics.Metrics
	config     *config.Config
	logger     *slog.Logger

	orgs        *organization.Service
	members     *membership.Service
	invitations *invitation.Service
	categories  *category.Service
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, st store.Store, authSvc *auth.Service, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	gate := access.NewGate(st, logger)
	s := &Server{
		store:   st,
		auth:    authSvc,
		metrics: opts.Metrics,
		config:  cfg,
		logger:  logger,

		orgs:    organization.NewService(st, gate, logger),
		members: membership.NewService(st, gate, logger),
		invitations: invitation.NewService(&invitation.Config{TTL: cfg.InvitationTTL},
			st, gate, opts.Notifier, logger),
		categories: category.NewService(st, gate, logger),
	}

	s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Instrument(s.metrics))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(timeout))

	// Unauthenticated endpoints
	checker := health.NewChecker(Version, 5*time.Second, map[string]health.Pinger{"database": s.store})
	r.Get("/health", checker.Handler())
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	resp := handlers.NewResponder(s.logger, s.metrics)
	orgHandler := handlers.NewOrgHandler(s.orgs, resp)
	memberHandler := handlers.NewMemberHandler(s.members, resp)
	invitationHandler := handlers.NewInvitationHandler(s.invitations, resp)
	categoryHandler := handlers.NewCategoryHandler(s.categories, resp)

	r.Route("/v1", func(r chi.Router) {
		authMiddleware := middleware.NewAuthMiddleware(s.auth, s.store.Users(), s.logger)
		r.Use(authMiddleware.Authenticate)

		r.Route("/orgs", func(r chi.Router) {
			r.Post("/", orgHandler.Create)
			r.Get("/", orgHandler.List)
			r.Route("/{orgID}", func(r chi.Router) {
				r.Get("/", orgHandler.Get)
				r.Patch("/", orgHandler.Update)
				r.Delete("/", orgHandler.Delete)

				r.Route("/members", func(r chi.Router) {
					r.Get("/", memberHandler.List)
					r.Patch("/{userID}", memberHandler.UpdateRole)
					r.Delete("/{userID}", memberHandler.Remove)
				})

				r.Route("/invitations", func(r chi.Router) {
					r.Post("/", invitationHandler.Invite)
					r.Get("/", invitationHandler.List)
					r.Post("/{invitationID}/cancel", invitationHandler.Cancel)
				})

				r.Route("/categories", func(r chi.Router) {
					r.Post("/", categoryHandler.Create)
					r.Get("/", categoryHandler.List)
					r.Get("/{categoryID}", categoryHandler.Get)
					r.Put("/{categoryID}", categoryHandler.Update)
					r.Delete("/{categoryID}", categoryHandler.Delete)
				})
			})
		})

		r.Route("/invitations", func(r chi.Router) {
			r.Get("/mine", invitationHandler.Mine)
			r.Post("/{invitationID}/accept", invitationHandler.Accept)
		})
	})

	s.router = r
}

// ListenAndServe serves HTTP until Shutdown is called. It returns nil after
// a graceful shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting API server", "addr", s.httpServer.Addr, "version", Version)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
