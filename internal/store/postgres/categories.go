package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/internal/store"
)

// CategoryStore implements store.CategoryStore using PostgreSQL.
type CategoryStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *CategoryStore) conn() queryable {
	return conn(s.db, s.tx)
}

const categoryColumns = `id, organization_id, name, COALESCE(description, ''), created_at, updated_at`

// Create creates a category.
func (s *CategoryStore) Create(ctx context.Context, c *models.ExpenseCategory) error {
	query := `
		INSERT INTO expense_categories (id, organization_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt

	_, err := s.conn().ExecContext(ctx, query,
		c.ID,
		c.OrganizationID,
		c.Name,
		c.Description,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return store.ErrDuplicate
		case isForeignKeyViolation(err):
			return store.ErrNotFound
		}
		return fmt.Errorf("inserting category: %w", mapPostgresError(err))
	}
	return nil
}

// Get retrieves a category scoped to an organization.
func (s *CategoryStore) Get(ctx context.Context, orgID, id string) (*models.ExpenseCategory, error) {
	query := `SELECT ` + categoryColumns + ` FROM expense_categories WHERE id = $1 AND organization_id = $2`

	c, err := scanCategory(s.conn().QueryRowContext(ctx, query, id, orgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying category: %w", mapPostgresError(err))
	}
	return c, nil
}

// FindByName finds a category by case-insensitive name.
func (s *CategoryStore) FindByName(ctx context.Context, orgID, name, excludeID string) (*models.ExpenseCategory, error) {
	query := `SELECT ` + categoryColumns + `
		FROM expense_categories
		WHERE organization_id = $1 AND lower(name) = lower(btrim($2)) AND id <> $3
		LIMIT 1`

	c, err := scanCategory(s.conn().QueryRowContext(ctx, query, orgID, name, excludeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying category by name: %w", mapPostgresError(err))
	}
	return c, nil
}

// List lists categories ordered by name.
func (s *CategoryStore) List(ctx context.Context, orgID string) ([]*models.ExpenseCategory, error) {
	query := `SELECT ` + categoryColumns + `
		FROM expense_categories
		WHERE organization_id = $1
		ORDER BY name ASC, id ASC`

	rows, err := s.conn().QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", mapPostgresError(err))
	}
	defer rows.Close()

	categories := []*models.ExpenseCategory{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category rows: %w", err)
	}
	return categories, nil
}

// Update updates a category's name and description.
func (s *CategoryStore) Update(ctx context.Context, c *models.ExpenseCategory) error {
	query := `
		UPDATE expense_categories
		SET name = $3, description = NULLIF($4, ''), updated_at = $5
		WHERE id = $1 AND organization_id = $2`

	c.UpdatedAt = time.Now().UTC()

	result, err := s.conn().ExecContext(ctx, query, c.ID, c.OrganizationID, c.Name, c.Description, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("updating category: %w", mapPostgresError(err))
	}
	return expectOneRow(result)
}

// Delete deletes a category. A category still referenced by expenses fails
// the foreign key check with store.ErrReferenced; one referenced by policies
// fails with store.ErrReferencedByPolicies.
func (s *CategoryStore) Delete(ctx context.Context, orgID, id string) error {
	query := `DELETE FROM expense_categories WHERE id = $1 AND organization_id = $2`

	result, err := s.conn().ExecContext(ctx, query, id, orgID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return referencedError(err)
		}
		return fmt.Errorf("deleting category: %w", mapPostgresError(err))
	}
	return expectOneRow(result)
}

func scanCategory(row scanner) (*models.ExpenseCategory, error) {
	c := &models.ExpenseCategory{}
	err := row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Name,
		&c.Description,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DependentStore implements store.DependentStore using PostgreSQL.
type DependentStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *DependentStore) conn() queryable {
	return conn(s.db, s.tx)
}

// CountExpenses returns the number of expenses in a category.
func (s *DependentStore) CountExpenses(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := s.conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE category_id = $1`, categoryID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting expenses: %w", mapPostgresError(err))
	}
	return count, nil
}

// CountPolicies returns the number of policies in a category.
func (s *DependentStore) CountPolicies(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := s.conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM policies WHERE category_id = $1`, categoryID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting policies: %w", mapPostgresError(err))
	}
	return count, nil
}

// CountsByCategory returns dependent counts for each requested category in one query.
func (s *DependentStore) CountsByCategory(ctx context.Context, categoryIDs []string) (map[string]models.DependentCounts, error) {
	counts := make(map[string]models.DependentCounts, len(categoryIDs))
	if len(categoryIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT c.id,
		       (SELECT COUNT(*) FROM expenses e WHERE e.category_id = c.id),
		       (SELECT COUNT(*) FROM policies p WHERE p.category_id = c.id)
		FROM unnest($1::text[]) AS c(id)`

	rows, err := s.conn().QueryContext(ctx, query, pq.Array(categoryIDs))
	if err != nil {
		return nil, fmt.Errorf("counting dependents: %w", mapPostgresError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var c models.DependentCounts
		if err := rows.Scan(&id, &c.Expenses, &c.Policies); err != nil {
			return nil, fmt.Errorf("scanning dependent counts: %w", err)
		}
		counts[id] = c
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dependent counts: %w", err)
	}
	return counts, nil
}
