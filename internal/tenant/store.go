package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

const tenantColumns = "id, name, slug, status, created_at, updated_at"

// Store handles tenant database operations.
type Store struct{}

// NewStore creates a new tenant store.
func NewStore() *Store {
	return &Store{}
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new tenant with the given name and slug.
func (s *Store) Create(ctx context.Context, q database.Querier, name, slug string) (*Tenant, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}

	t, err := scanTenant(q.QueryRow(ctx,
		`INSERT INTO tenants (name, slug) VALUES ($1, $2)
		 RETURNING `+tenantColumns,
		name, slug,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrSlugTaken, slug)
		}
		return nil, fmt.Errorf("creating tenant: %w", err)
	}
	return t, nil
}

// GetByID retrieves a tenant by its UUID if it lies inside the visible set.
func (s *Store) GetByID(ctx context.Context, q database.Querier, id string, visible rbac.Predicate) (*Tenant, error) {
	where, args := visible.Where(2)
	t, err := scanTenant(q.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1 AND `+where,
		append([]any{id}, args...)...,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("getting tenant: %w", err)
	}
	return t, nil
}

// List returns the tenants inside the visible set.
func (s *Store) List(ctx context.Context, q database.Querier, visible rbac.Predicate) ([]Tenant, error) {
	where, args := visible.Where(1)
	rows, err := q.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	tenants := []Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// TenantUpdate holds the mutable tenant fields. Nil fields are left unchanged.
type TenantUpdate struct {
	Name   *string
	Status *string
}

// Update applies u to the tenant. The slug is immutable.
func (s *Store) Update(ctx context.Context, q database.Querier, id string, u TenantUpdate) (*Tenant, error) {
	t, err := scanTenant(q.QueryRow(ctx,
		`UPDATE tenants
		 SET name = COALESCE($2, name), status = COALESCE($3, status), updated_at = now()
		 WHERE id = $1
		 RETURNING `+tenantColumns,
		id, u.Name, u.Status,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("updating tenant: %w", err)
	}
	return t, nil
}

// Delete removes a tenant and, by cascade, its users and content.
func (s *Store) Delete(ctx context.Context, q database.Querier, id string) error {
	tag, err := q.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}
