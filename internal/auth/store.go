package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const identitySelect = `SELECT u.id, COALESCE(u.tenant_id::text, ''), u.email, COALESCE(r.name, ''), u.is_active, u.password_hash
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id`

// Store reads the identity-relevant columns of users for authentication.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// LoadIdentity returns the current identity for userID, including its role
// name and active flag.
func (s *Store) LoadIdentity(ctx context.Context, userID string) (*Identity, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrUserNotFound
	}
	identity, _, err := s.scanIdentity(ctx, identitySelect+" WHERE u.id = $1", userID)
	return identity, err
}

// LookupCredentials returns the identity and password hash registered for email.
func (s *Store) LookupCredentials(ctx context.Context, email string) (*Identity, string, error) {
	return s.scanIdentity(ctx, identitySelect+" WHERE lower(u.email) = lower($1)", email)
}

func (s *Store) scanIdentity(ctx context.Context, query string, arg string) (*Identity, string, error) {
	var id Identity
	var hash string
	err := s.pool.QueryRow(ctx, query, arg).Scan(&id.UserID, &id.TenantID, &id.Email, &id.RoleName, &id.Active, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", fmt.Errorf("querying user: %w", err)
	}
	id.TokenType = TokenTypeAccess
	return &id, hash, nil
}
