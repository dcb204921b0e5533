package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

const roleSelect = `SELECT r.id, r.name, r.description, r.created_at, r.updated_at,
	COALESCE(array_agg(rp.permission_key ORDER BY rp.permission_key)
		FILTER (WHERE rp.permission_key IS NOT NULL), '{}')
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.role_id = r.id`

const roleGroupBy = ` GROUP BY r.id`

// RoleStore handles role database operations. Multi-statement writes expect
// q to be a transaction.
type RoleStore struct{}

// NewRoleStore creates a new role store.
func NewRoleStore() *RoleStore {
	return &RoleStore{}
}

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt, &role.Permissions); err != nil {
		return nil, err
	}
	return &role, nil
}

// Create inserts a role with its permission keys.
func (s *RoleStore) Create(ctx context.Context, q database.Querier, name, description string, keys []string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrRoleNameEmpty
	}

	var id string
	err := q.QueryRow(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING id`,
		name, description,
	).Scan(&id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrRoleDuplicate, name)
		}
		return nil, fmt.Errorf("creating role: %w", err)
	}

	if err := s.replacePermissions(ctx, q, id, keys); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, q, id)
}

func (s *RoleStore) replacePermissions(ctx context.Context, q database.Querier, roleID string, keys []string) error {
	if _, err := q.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clearing role permissions: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := q.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_key)
		 SELECT $1, k FROM unnest($2::text[]) AS k
		 ON CONFLICT DO NOTHING`,
		roleID, keys,
	)
	if err != nil {
		return fmt.Errorf("inserting role permissions: %w", err)
	}
	return nil
}

// GetByID retrieves a role by ID.
func (s *RoleStore) GetByID(ctx context.Context, q database.Querier, id string) (*Role, error) {
	return s.getOne(ctx, q, `r.id = $1`, id)
}

// GetByName retrieves a role by its unique name.
func (s *RoleStore) GetByName(ctx context.Context, q database.Querier, name string) (*Role, error) {
	return s.getOne(ctx, q, `r.name = $1`, name)
}

func (s *RoleStore) getOne(ctx context.Context, q database.Querier, cond string, arg any) (*Role, error) {
	role, err := scanRole(q.QueryRow(ctx, roleSelect+` WHERE `+cond+roleGroupBy, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("getting role: %w", err)
	}
	return role, nil
}

// List returns all roles ordered by name.
func (s *RoleStore) List(ctx context.Context, q database.Querier) ([]Role, error) {
	rows, err := q.Query(ctx, roleSelect+roleGroupBy+` ORDER BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// RoleUpdate holds the mutable role fields. Nil fields are left unchanged.
type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions *[]string
}

// Update applies u to the role. Built-in roles keep their names.
func (s *RoleStore) Update(ctx context.Context, q database.Querier, id string, u RoleUpdate) (*Role, error) {
	current, err := s.GetByID(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, ErrRoleNameEmpty
		}
		if name != current.Name && rbac.IsReservedRole(current.Name) {
			return nil, ErrRoleReserved
		}
		u.Name = &name
	}

	_, err = q.Exec(ctx,
		`UPDATE roles
		 SET name = COALESCE($2, name), description = COALESCE($3, description), updated_at = now()
		 WHERE id = $1`,
		id, u.Name, u.Description,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrRoleDuplicate, *u.Name)
		}
		return nil, fmt.Errorf("updating role: %w", err)
	}

	if u.Permissions != nil {
		if err := s.replacePermissions(ctx, q, id, *u.Permissions); err != nil {
			return nil, err
		}
	}
	return s.GetByID(ctx, q, id)
}

// Delete removes a custom role. Users holding it are left without a role.
func (s *RoleStore) Delete(ctx context.Context, q database.Querier, id string) error {
	current, err := s.GetByID(ctx, q, id)
	if err != nil {
		return err
	}
	if rbac.IsReservedRole(current.Name) {
		return ErrRoleReserved
	}
	if _, err := q.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting role: %w", err)
	}
	return nil
}

// RoleLoader feeds the evaluator's role cache from the roles table.
type RoleLoader struct {
	db    database.Querier
	store *RoleStore
}

func NewRoleLoader(db database.Querier, store *RoleStore) *RoleLoader {
	return &RoleLoader{db: db, store: store}
}

var _ rbac.RoleLoader = (*RoleLoader)(nil)

func (l *RoleLoader) LoadRoles(ctx context.Context) ([]rbac.RoleDef, error) {
	roles, err := l.store.List(ctx, l.db)
	if err != nil {
		return nil, err
	}
	defs := make([]rbac.RoleDef, 0, len(roles))
	for _, r := range roles {
		defs = append(defs, rbac.RoleDef{Name: r.Name, Description: r.Description, Permissions: r.Permissions})
	}
	return defs, nil
}
