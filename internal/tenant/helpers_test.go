package tenant_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
	"github.com/coursegrid/coursegrid/internal/tenant"
)

func setupTestDB(t *testing.T) (*database.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("coursegrid_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = database.RunMigrations(connStr, "file://../../migrations")
	require.NoError(t, err)

	pool, err := database.Connect(ctx, connStr, 5)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

// seededEvaluator seeds the built-in roles and returns an evaluator whose
// cache is loaded from the database.
func seededEvaluator(t *testing.T, pool *database.Pool) *rbac.Evaluator {
	t.Helper()
	ctx := context.Background()
	registry := rbac.DefaultRegistry()
	roles := tenant.NewRoleStore()

	_, err := tenant.SeedDefaultRoles(ctx, pool, roles, registry)
	require.NoError(t, err)

	engine := rbac.NewEvaluator(registry, rbac.WithRoleLoader(tenant.NewRoleLoader(pool, roles)))
	require.NoError(t, engine.ReloadRoles(ctx))
	return engine
}

func identityOf(u *tenant.User) *auth.Identity {
	return &auth.Identity{
		UserID:   u.ID,
		TenantID: u.TenantID,
		Email:    u.Email,
		RoleName: u.RoleName,
		Active:   u.Active,
	}
}

// newRequest builds a request as identity, with {id} set when id is not empty.
func newRequest(method, target, id, body string, identity *auth.Identity) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if id != "" {
		req.SetPathValue("id", id)
	}
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	return req
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
