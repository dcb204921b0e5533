package tenant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursegrid/coursegrid/internal/rbac"
	"github.com/coursegrid/coursegrid/internal/tenant"
)

func TestValidateSlug(t *testing.T) {
	valid := []string{"acme", "chelsea-fc", "a1b", "org-2024"}
	for _, s := range valid {
		assert.NoError(t, tenant.ValidateSlug(s), s)
	}

	invalid := []string{"", "ab", "-acme", "acme-", "Acme", "acme_corp", "admin", "api"}
	for _, s := range invalid {
		assert.ErrorIs(t, tenant.ValidateSlug(s), tenant.ErrInvalidSlug, s)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Chelsea FC":              "chelsea-fc",
		"  Acme, Inc.  ":          "acme-inc",
		"École 42":                "cole-42",
		"Data & Analytics Guild!": "data-analytics-guild",
	}
	for name, want := range tests {
		assert.Equal(t, want, tenant.Slugify(name), name)
	}

	long := tenant.Slugify("a very long organization name that keeps going well past the dns label limit")
	assert.LessOrEqual(t, len(long), 63)
	assert.NoError(t, tenant.ValidateSlug(long))
}

func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := tenant.NewStore()
	ctx := context.Background()
	all := rbac.Predicate{Unrestricted: true}

	acme, err := store.Create(ctx, pool, "Acme", "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusActive, acme.Status)
	globex, err := store.Create(ctx, pool, "Globex", "globex")
	require.NoError(t, err)

	t.Run("duplicate slug", func(t *testing.T) {
		_, err := store.Create(ctx, pool, "Acme Again", "acme")
		assert.ErrorIs(t, err, tenant.ErrSlugTaken)
	})

	t.Run("invalid slug", func(t *testing.T) {
		_, err := store.Create(ctx, pool, "Bad", "-bad")
		assert.ErrorIs(t, err, tenant.ErrInvalidSlug)
	})

	t.Run("get respects visibility", func(t *testing.T) {
		own := rbac.Predicate{TenantBound: true, TenantID: acme.ID}
		got, err := store.GetByID(ctx, pool, acme.ID, own)
		require.NoError(t, err)
		assert.Equal(t, "Acme", got.Name)

		_, err = store.GetByID(ctx, pool, globex.ID, own)
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

		_, err = store.GetByID(ctx, pool, acme.ID, rbac.Predicate{Empty: true})
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("list respects visibility", func(t *testing.T) {
		tenants, err := store.List(ctx, pool, all)
		require.NoError(t, err)
		assert.Len(t, tenants, 2)

		tenants, err = store.List(ctx, pool, rbac.Predicate{TenantBound: true, TenantID: globex.ID})
		require.NoError(t, err)
		require.Len(t, tenants, 1)
		assert.Equal(t, globex.ID, tenants[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		status := tenant.StatusSuspended
		updated, err := store.Update(ctx, pool, globex.ID, tenant.TenantUpdate{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, tenant.StatusSuspended, updated.Status)
		assert.Equal(t, "Globex", updated.Name)
		assert.Equal(t, "globex", updated.Slug)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, pool, globex.ID))
		assert.ErrorIs(t, store.Delete(ctx, pool, globex.ID), tenant.ErrTenantNotFound)
		_, err := store.GetByID(ctx, pool, globex.ID, all)
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})
}
