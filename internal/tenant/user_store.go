package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

// userSelect exposes users joined to their role under the plain column
// names visibility predicates refer to.
const userSelect = `SELECT id, tenant_id, email, username, first_name, last_name, role_id, role_name, is_active, created_at, updated_at
	FROM (
		SELECT u.id, u.tenant_id, u.email, u.username, u.first_name, u.last_name,
			u.role_id, r.name AS role_name, u.is_active, u.created_at, u.updated_at
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
	) AS users`

// UserStore handles user database operations.
type UserStore struct{}

// NewUserStore creates a new user store.
func NewUserStore() *UserStore {
	return &UserStore{}
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                          User
		tenantID, roleID, roleName *string
	)
	if err := row.Scan(&u.ID, &tenantID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&roleID, &roleName, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.TenantID = deref(tenantID)
	u.RoleID = deref(roleID)
	u.RoleName = deref(roleName)
	return &u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NewUser holds the fields of a user to create. An empty TenantID creates a
// platform-level user.
type NewUser struct {
	TenantID     string
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	RoleID       string
}

// Create inserts a new user.
func (s *UserStore) Create(ctx context.Context, q database.Querier, nu NewUser) (*User, error) {
	var id string
	err := q.QueryRow(ctx,
		`INSERT INTO users (tenant_id, email, username, first_name, last_name, password_hash, role_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		nullable(nu.TenantID), nu.Email, nu.Username, nu.FirstName, nu.LastName, nu.PasswordHash, nullable(nu.RoleID),
	).Scan(&id)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return nil, ErrEmailDuplicate
		case database.IsForeignKeyViolation(err):
			return nil, ErrUnknownTenant
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return s.GetByID(ctx, q, id, rbac.Predicate{Unrestricted: true})
}

// GetByID retrieves a user by ID if it lies inside the visible set.
func (s *UserStore) GetByID(ctx context.Context, q database.Querier, id string, visible rbac.Predicate) (*User, error) {
	where, args := visible.Where(2)
	u, err := scanUser(q.QueryRow(ctx,
		userSelect+` WHERE id = $1 AND `+where,
		append([]any{id}, args...)...,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// List returns the users inside the visible set.
func (s *UserStore) List(ctx context.Context, q database.Querier, visible rbac.Predicate) ([]User, error) {
	where, args := visible.Where(1)
	rows, err := q.Query(ctx, userSelect+` WHERE `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UserUpdate holds the profile fields a partial update may change. Nil
// fields are left unchanged.
type UserUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
	Active    *bool
}

// Update applies u to the user. Tenant and role are not changed here.
func (s *UserStore) Update(ctx context.Context, q database.Querier, id string, u UserUpdate) (*User, error) {
	tag, err := q.Exec(ctx,
		`UPDATE users
		 SET username = COALESCE($2, username),
		     first_name = COALESCE($3, first_name),
		     last_name = COALESCE($4, last_name),
		     is_active = COALESCE($5, is_active),
		     updated_at = now()
		 WHERE id = $1`,
		id, u.Username, u.FirstName, u.LastName, u.Active,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailDuplicate
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetByID(ctx, q, id, rbac.Predicate{Unrestricted: true})
}

// SetRole assigns roleID to the user. An empty roleID clears the role.
func (s *UserStore) SetRole(ctx context.Context, q database.Querier, id, roleID string) (*User, error) {
	tag, err := q.Exec(ctx,
		`UPDATE users SET role_id = $2, updated_at = now() WHERE id = $1`,
		id, nullable(roleID),
	)
	if err != nil {
		return nil, fmt.Errorf("setting user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetByID(ctx, q, id, rbac.Predicate{Unrestricted: true})
}

// Delete removes a user.
func (s *UserStore) Delete(ctx context.Context, q database.Querier, id string) error {
	tag, err := q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
