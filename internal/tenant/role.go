package tenant

import (
	"errors"
	"time"
)

var (
	ErrRoleNotFound  = errors.New("role not found")
	ErrRoleNameEmpty = errors.New("role name is required")
	ErrRoleDuplicate = errors.New("role name already exists")
	ErrRoleReserved  = errors.New("built-in roles cannot be renamed or deleted")
)

// Role is a named permission set. Roles are global: every tenant shares the
// same catalog of roles.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
