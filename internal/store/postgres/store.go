// Package postgres provides PostgreSQL implementation of the store interfaces.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/narvanalabs/expense-orgs/internal/store"
)

// Ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger

	orgs        *OrgStore
	memberships *MembershipStore
	invitations *InvitationStore
	categories  *CategoryStore
	dependents  *DependentStore
	users       *UserStore
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// ConnectRetries is the number of ping attempts made before giving up.
	ConnectRetries int
	// AutoMigrate applies the schema on start-up.
	AutoMigrate bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		ConnectRetries:  5,
		AutoMigrate:     true,
	}
}

// NewPostgresStore creates a new PostgreSQL store with the given configuration.
func NewPostgresStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := ping(ctx, db, cfg.ConnectRetries, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	s := &PostgresStore{
		db:     db,
		logger: logger,
	}

	// Initialize sub-stores
	s.orgs = &OrgStore{db: db, logger: logger}
	s.memberships = &MembershipStore{db: db, logger: logger}
	s.invitations = &InvitationStore{db: db, logger: logger}
	s.categories = &CategoryStore{db: db, logger: logger}
	s.dependents = &DependentStore{db: db, logger: logger}
	s.users = &UserStore{db: db, logger: logger}

	logger.Info("connected to PostgreSQL database")
	return s, nil
}

// ping waits for the database to accept connections, retrying with
// exponential backoff.
func ping(ctx context.Context, db *sql.DB, retries int, logger *slog.Logger) error {
	if retries < 1 {
		retries = 1
	}
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			logger.Warn("database not ready", "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(retries)),
	)
	return err
}

// Orgs returns the OrgStore.
func (s *PostgresStore) Orgs() store.OrgStore {
	return s.orgs
}

// Memberships returns the MembershipStore.
func (s *PostgresStore) Memberships() store.MembershipStore {
	return s.memberships
}

// Invitations returns the InvitationStore.
func (s *PostgresStore) Invitations() store.InvitationStore {
	return s.invitations
}

// Categories returns the CategoryStore.
func (s *PostgresStore) Categories() store.CategoryStore {
	return s.categories
}

// Dependents returns the DependentStore.
func (s *PostgresStore) Dependents() store.DependentStore {
	return s.dependents
}

// Users returns the UserStore.
func (s *PostgresStore) Users() store.UserStore {
	return s.users
}

// WithTx executes the given function within a database transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	// Create a transaction-scoped store
	txStore := &txStore{
		tx:     tx,
		logger: s.logger,
	}

	// Execute the function
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	// Commit the transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", mapPostgresError(err))
	}

	return nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	s.logger.Info("closing PostgreSQL connection")
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// txStore wraps a transaction and implements the Store interface.
type txStore struct {
	tx     *sql.Tx
	logger *slog.Logger

	orgs        *OrgStore
	memberships *MembershipStore
	invitations *InvitationStore
	categories  *CategoryStore
	dependents  *DependentStore
	users       *UserStore
}

func (s *txStore) Orgs() store.OrgStore {
	if s.orgs == nil {
		s.orgs = &OrgStore{tx: s.tx, logger: s.logger}
	}
	return s.orgs
}

func (s *txStore) Memberships() store.MembershipStore {
	if s.memberships == nil {
		s.memberships = &MembershipStore{tx: s.tx, logger: s.logger}
	}
	return s.memberships
}

func (s *txStore) Invitations() store.InvitationStore {
	if s.invitations == nil {
		s.invitations = &InvitationStore{tx: s.tx, logger: s.logger}
	}
	return s.invitations
}

func (s *txStore) Categories() store.CategoryStore {
	if s.categories == nil {
		s.categories = &CategoryStore{tx: s.tx, logger: s.logger}
	}
	return s.categories
}

func (s *txStore) Dependents() store.DependentStore {
	if s.dependents == nil {
		s.dependents = &DependentStore{tx: s.tx, logger: s.logger}
	}
	return s.dependents
}

func (s *txStore) Users() store.UserStore {
	if s.users == nil {
		s.users = &UserStore{tx: s.tx, logger: s.logger}
	}
	return s.users
}

func (s *txStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	// Already in a transaction, just execute the function
	return fn(s)
}

func (s *txStore) Ping(ctx context.Context) error {
	return nil
}

func (s *txStore) Close() error {
	// No-op for transaction store
	return nil
}

// queryable is an interface that both *sql.DB and *sql.Tx implement.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn picks the transaction when one is set.
func conn(db *sql.DB, tx *sql.Tx) queryable {
	if tx != nil {
		return tx
	}
	return db
}
