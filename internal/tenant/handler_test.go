package tenant_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursegrid/coursegrid/internal/audit"
	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/rbac"
	"github.com/coursegrid/coursegrid/internal/tenant"
)

var platformAdmin = &auth.Identity{
	UserID:   "00000000-0000-0000-0000-0000000000aa",
	Email:    "root@platform.test",
	RoleName: rbac.RoleSuperAdmin,
	Active:   true,
}

func TestHandler_RejectsBadInput(t *testing.T) {
	h := tenant.NewHandler(nil, tenant.NewStore(), rbac.NewEvaluator(rbac.DefaultRegistry()), nil)

	t.Run("malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleCreate(w, newRequest(http.MethodPost, "/api/v1/tenants", "", `{"name":`, platformAdmin))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleCreate(w, newRequest(http.MethodPost, "/api/v1/tenants", "", `{"slug":"acme"}`, platformAdmin))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody[map[string]any](t, w)
		assert.Contains(t, body["fields"], "name")
	})

	t.Run("malformed id", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleGet(w, newRequest(http.MethodGet, "/api/v1/tenants/abc", "abc", "", platformAdmin))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

type recordedMutation struct {
	action       audit.Action
	resourceType string
	id           string
}

type memRecorder struct {
	mutations []recordedMutation
}

func (m *memRecorder) RecordMutation(_ context.Context, action audit.Action, resourceType string, record audit.Record, _ *auth.Identity) {
	m.mutations = append(m.mutations, recordedMutation{action, resourceType, record.AuditID()})
}

func (m *memRecorder) RecordAuthEvent(context.Context, audit.Action, *auth.Identity) {}

func TestHandler_TenantLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	engine := seededEvaluator(t, pool)
	recorder := &memRecorder{}
	h := tenant.NewHandler(pool, tenant.NewStore(), engine, recorder)

	var acme, globex tenant.Tenant
	t.Run("create derives slug", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleCreate(w, newRequest(http.MethodPost, "/api/v1/tenants", "", `{"name":"Acme Learning"}`, platformAdmin))
		require.Equal(t, http.StatusCreated, w.Code)
		acme = decodeBody[tenant.Tenant](t, w)
		assert.Equal(t, "acme-learning", acme.Slug)

		w = httptest.NewRecorder()
		h.HandleCreate(w, newRequest(http.MethodPost, "/api/v1/tenants", "", `{"name":"Globex","slug":"globex"}`, platformAdmin))
		require.Equal(t, http.StatusCreated, w.Code)
		globex = decodeBody[tenant.Tenant](t, w)
	})

	t.Run("duplicate and reserved slugs", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleCreate(w, newRequest(http.MethodPost, "/api/v1/tenants", "", `{"name":"Other","slug":"globex"}`, platformAdmin))
		assert.Equal(t, http.StatusConflict, w.Code)

		w = httptest.NewRecorder()
		h.HandleCreate(w, newRequest(http.MethodPost, "/api/v1/tenants", "", `{"name":"Admin"}`, platformAdmin))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	acmeAdmin := &auth.Identity{UserID: uuid.NewString(), TenantID: acme.ID, RoleName: rbac.RoleTenantAdmin, Active: true}

	t.Run("tenant admin sees only their tenant", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleList(w, newRequest(http.MethodGet, "/api/v1/tenants", "", "", acmeAdmin))
		require.Equal(t, http.StatusOK, w.Code)
		tenants := decodeBody[[]tenant.Tenant](t, w)
		require.Len(t, tenants, 1)
		assert.Equal(t, acme.ID, tenants[0].ID)

		w = httptest.NewRecorder()
		h.HandleGet(w, newRequest(http.MethodGet, "/api/v1/tenants/"+globex.ID, globex.ID, "", acmeAdmin))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("super admin sees all", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleList(w, newRequest(http.MethodGet, "/api/v1/tenants", "", "", platformAdmin))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decodeBody[[]tenant.Tenant](t, w), 2)
	})

	t.Run("update", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleUpdate(w, newRequest(http.MethodPatch, "/api/v1/tenants/"+globex.ID, globex.ID, `{"status":"suspended"}`, platformAdmin))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenant.StatusSuspended, decodeBody[tenant.Tenant](t, w).Status)

		w = httptest.NewRecorder()
		h.HandleUpdate(w, newRequest(http.MethodPatch, "/api/v1/tenants/"+globex.ID, globex.ID, `{"status":"gone"}`, platformAdmin))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleDelete(w, newRequest(http.MethodDelete, "/api/v1/tenants/"+globex.ID, globex.ID, "", platformAdmin))
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = httptest.NewRecorder()
		h.HandleGet(w, newRequest(http.MethodGet, "/api/v1/tenants/"+globex.ID, globex.ID, "", platformAdmin))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("mutations are recorded", func(t *testing.T) {
		assert.Equal(t, []recordedMutation{
			{audit.ActionCreate, rbac.ResourceTenant, acme.ID},
			{audit.ActionCreate, rbac.ResourceTenant, globex.ID},
			{audit.ActionUpdate, rbac.ResourceTenant, globex.ID},
			{audit.ActionDelete, rbac.ResourceTenant, globex.ID},
		}, recorder.mutations)
	})
}
