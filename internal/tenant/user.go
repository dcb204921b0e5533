package tenant

import (
	"errors"
	"time"

	"github.com/coursegrid/coursegrid/internal/rbac"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailDuplicate    = errors.New("email or username already in use")
	ErrUnknownTenant     = errors.New("tenant does not exist")
	ErrCrossTenantCreate = errors.New("cannot create users in another tenant")
)

// User is an account. An empty TenantID marks a platform-level user.
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	RoleID    string    `json:"role_id,omitempty"`
	RoleName  string    `json:"role,omitempty"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) ScopeTenantID() string { return u.TenantID }

// OwnerUserID makes every user the owner of their own record.
func (u *User) OwnerUserID() string { return u.ID }

func (u *User) AuditID() string { return u.ID }
func (u *User) String() string  { return u.Email }

// Subject describes u for the user-management guard.
func (u *User) Subject() rbac.Subject {
	return rbac.Subject{UserID: u.ID, TenantID: u.TenantID, RoleName: u.RoleName}
}
