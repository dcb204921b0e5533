package auth

import (
	"context"
	"errors"
)

var (
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Identity is the actor behind a request: who they are, which tenant they
// belong to and which role they hold. An empty TenantID means the actor is
// platform-level; an empty RoleName means no role is assigned.
type Identity struct {
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id,omitempty"`
	Email     string `json:"email"`
	RoleName  string `json:"role,omitempty"`
	Active    bool   `json:"active"`
	TokenType string `json:"token_type"` // "access" or "refresh"
}

// IdentityLoader re-reads the current state of a user. The middleware uses it
// so that deactivation and role changes apply without waiting for token expiry.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, userID string) (*Identity, error)
}

// EventRecorder receives authentication events after they succeed.
type EventRecorder interface {
	RecordLogin(ctx context.Context, actor *Identity)
	RecordLogout(ctx context.Context, actor *Identity)
}

type identityContextKey struct{}

// WithIdentity binds identity to ctx. The auth middleware is the only
// production caller; tests and system tasks use it to act as a given actor.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// GetIdentity retrieves the authenticated identity from the request context.
func GetIdentity(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey{}).(*Identity)
	return identity
}
