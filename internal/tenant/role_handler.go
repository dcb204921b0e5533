package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

// RBACReloader is called after role mutations to refresh the evaluator.
type RBACReloader interface {
	ReloadRoles(ctx context.Context) error
}

// RoleHandler handles role and permission catalog endpoints.
type RoleHandler struct {
	pool      *pgxpool.Pool
	store     *RoleStore
	registry  *rbac.Registry
	evaluator RBACReloader
}

// NewRoleHandler creates a new role handler.
func NewRoleHandler(pool *pgxpool.Pool, store *RoleStore, registry *rbac.Registry, evaluator RBACReloader) *RoleHandler {
	return &RoleHandler{pool: pool, store: store, registry: registry, evaluator: evaluator}
}

// roleView is the API form of a role: permissions as a per-type matrix.
type roleView struct {
	*Role
	Permissions rbac.Matrix `json:"permissions"`
}

func (h *RoleHandler) view(r *Role) roleView {
	return roleView{Role: r, Permissions: h.registry.MatrixFromKeys(r.Permissions)}
}

type createRoleRequest struct {
	Name        string      `json:"name" validate:"required,max=50"`
	Description string      `json:"description" validate:"max=500"`
	Permissions rbac.Matrix `json:"permissions"`
}

// HandleCreate creates a new role.
func (h *RoleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	keys := h.registry.KeysFromMatrix(req.Permissions)

	var role *Role
	err := database.WithTx(r.Context(), h.pool, func(ctx context.Context, q database.Querier) error {
		var createErr error
		role, createErr = h.store.Create(ctx, q, req.Name, req.Description, keys)
		return createErr
	})
	if err != nil {
		h.writeRoleError(w, r, err, "role creation failed")
		return
	}

	h.reload(r.Context(), "create")
	writeJSON(w, http.StatusCreated, h.view(role))
}

// HandleList returns all roles.
func (h *RoleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.List(r.Context(), h.pool)
	if err != nil {
		writeError(w, r, err, "listing roles failed")
		return
	}

	views := make([]roleView, 0, len(roles))
	for i := range roles {
		views = append(views, h.view(&roles[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleGet returns a role by ID.
func (h *RoleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "role")
	if !ok {
		return
	}
	role, err := h.store.GetByID(r.Context(), h.pool, id)
	if err != nil {
		h.writeRoleError(w, r, err, "fetching role failed")
		return
	}
	writeJSON(w, http.StatusOK, h.view(role))
}

type updateRoleRequest struct {
	Name        *string      `json:"name" validate:"omitempty,max=50"`
	Description *string      `json:"description" validate:"omitempty,max=500"`
	Permissions *rbac.Matrix `json:"permissions"`
}

// HandleUpdate replaces a role (PUT) or changes the fields present in the
// body (PATCH). A PUT without permissions clears them.
func (h *RoleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "role")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if r.Method == http.MethodPut && req.Name == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ErrRoleNameEmpty.Error()})
		return
	}

	u := RoleUpdate{Name: req.Name, Description: req.Description}
	switch {
	case req.Permissions != nil:
		keys := h.registry.KeysFromMatrix(*req.Permissions)
		u.Permissions = &keys
	case r.Method == http.MethodPut:
		u.Permissions = &[]string{}
	}

	var role *Role
	err := database.WithTx(r.Context(), h.pool, func(ctx context.Context, q database.Querier) error {
		var updateErr error
		role, updateErr = h.store.Update(ctx, q, id, u)
		return updateErr
	})
	if err != nil {
		h.writeRoleError(w, r, err, "role update failed")
		return
	}

	h.reload(r.Context(), "update")
	writeJSON(w, http.StatusOK, h.view(role))
}

// HandleDelete deletes a custom role.
func (h *RoleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "role")
	if !ok {
		return
	}

	err := database.WithTx(r.Context(), h.pool, func(ctx context.Context, q database.Querier) error {
		return h.store.Delete(ctx, q, id)
	})
	if err != nil {
		h.writeRoleError(w, r, err, "role deletion failed")
		return
	}

	h.reload(r.Context(), "delete")
	w.WriteHeader(http.StatusNoContent)
}

type permissionType struct {
	ResourceType  string            `json:"resource_type"`
	Keys          []string          `json:"keys"`
	CustomActions map[string]string `json:"custom_actions,omitempty"`
}

// HandleListPermissions returns the permission catalog grouped by resource
// type, in name order.
func (h *RoleHandler) HandleListPermissions(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	types := make([]permissionType, 0, len(names))
	for _, name := range names {
		rt, _ := h.registry.Lookup(name)
		pt := permissionType{ResourceType: name}
		for _, v := range []rbac.Verb{rbac.VerbView, rbac.VerbAdd, rbac.VerbChange, rbac.VerbDelete} {
			pt.Keys = append(pt.Keys, rt.PermissionKey(v))
		}
		if len(rt.Actions) > 0 {
			pt.CustomActions = rt.Actions
		}
		types = append(types, pt)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resource_types": types,
		"count":          len(h.registry.Keys()),
	})
}

func (h *RoleHandler) reload(ctx context.Context, op string) {
	if h.evaluator == nil {
		return
	}
	if err := h.evaluator.ReloadRoles(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to reload RBAC roles", "after", op, "error", err)
	}
}

func (h *RoleHandler) writeRoleError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrRoleNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrRoleNameEmpty), errors.Is(err, ErrRoleReserved):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrRoleDuplicate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeError(w, r, err, fallback)
	}
}
