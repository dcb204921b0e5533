package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

// SeedDefaultRoles creates the built-in roles that do not exist yet and
// returns how many it created. Existing roles keep their permissions.
// Seeding is a system action and bypasses the assignment guard.
func SeedDefaultRoles(ctx context.Context, pool *pgxpool.Pool, store *RoleStore, registry *rbac.Registry) (int, error) {
	created := 0
	err := database.WithTx(ctx, pool, func(ctx context.Context, q database.Querier) error {
		for _, def := range rbac.DefaultRoles(registry) {
			var id string
			err := q.QueryRow(ctx,
				`INSERT INTO roles (name, description) VALUES ($1, $2)
				 ON CONFLICT (name) DO NOTHING
				 RETURNING id`,
				def.Name, def.Description,
			).Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("seeding role %s: %w", def.Name, err)
			}
			if err := store.replacePermissions(ctx, q, id, def.Permissions); err != nil {
				return fmt.Errorf("seeding role %s: %w", def.Name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
