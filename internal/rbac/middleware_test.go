package rbac_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, eval *rbac.Evaluator, resourceType, action string, identity *auth.Identity) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	handler := rbac.RequirePermission(eval, resourceType, action)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil)
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, reached
}

func TestRBACMiddleware_Allowed(t *testing.T) {
	w, reached := serve(t, newEvaluator(), "course", rbac.ActionList, actor("u1", "t1", "VIEWER"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
}

func TestRBACMiddleware_Denied(t *testing.T) {
	w, reached := serve(t, newEvaluator(), "course", rbac.ActionDestroy, actor("u1", "t1", "VIEWER"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, reached)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "forbidden", body["error"])
	assert.Equal(t, "missing permission delete_course", body["reason"])
}

func TestRBACMiddleware_NoIdentity(t *testing.T) {
	w, reached := serve(t, newEvaluator(), "course", rbac.ActionList, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, reached)
}

func TestRBACMiddleware_InactiveActor(t *testing.T) {
	inactive := actor("u1", "t1", rbac.RoleTenantAdmin)
	inactive.Active = false

	w, reached := serve(t, newEvaluator(), "course", rbac.ActionList, inactive)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, reached)
}

func TestRBACMiddleware_SuperAdmin(t *testing.T) {
	w, reached := serve(t, rbac.NewEvaluator(rbac.DefaultRegistry()), "role", rbac.ActionDestroy, actor("root", "", rbac.RoleSuperAdmin))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
}
