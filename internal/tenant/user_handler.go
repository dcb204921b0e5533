package tenant

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/coursegrid/coursegrid/internal/audit"
	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

// UserHandler handles user HTTP endpoints. On top of the tenant boundary,
// every action on an existing user goes through the user-management guard.
type UserHandler struct {
	db        database.Querier
	store     *UserStore
	roleStore *RoleStore
	engine    rbac.PolicyEngine
	recorder  audit.Recorder
}

// NewUserHandler creates a new user handler.
func NewUserHandler(db database.Querier, store *UserStore, roleStore *RoleStore, engine rbac.PolicyEngine, recorder audit.Recorder) *UserHandler {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &UserHandler{db: db, store: store, roleStore: roleStore, engine: engine, recorder: recorder}
}

type createUserRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Username  string `json:"username" validate:"required,max=150"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Role      string `json:"role" validate:"required,max=50"`
	TenantID  string `json:"tenant_id" validate:"omitempty,uuid"`
}

// HandleCreate creates a user. The actor may only hand out a role no
// stronger than their own, and tenant-bound actors always create users in
// their own tenant.
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentity(r.Context())
	var req createUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	role, ok := h.resolveRole(w, r, identity, req.Role)
	if !ok {
		return
	}

	tenantID, err := placeUser(identity, role.Name, req.TenantID)
	if err != nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	}
	if d := h.engine.AuthorizeObject(identity, &User{TenantID: tenantID}); !d.Allowed {
		rbac.WriteDenied(w, d)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, err, "user creation failed")
		return
	}

	user, err := h.store.Create(r.Context(), h.db, NewUser{
		TenantID:     tenantID,
		Email:        req.Email,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
		RoleID:       role.ID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailDuplicate):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrUnknownTenant):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "field": "tenant_id"})
		default:
			writeError(w, r, err, "user creation failed")
		}
		return
	}

	h.recorder.RecordMutation(r.Context(), audit.ActionCreate, rbac.ResourceUser, user, nil)
	writeJSON(w, http.StatusCreated, user)
}

// placeUser decides the tenant of a new user. SUPER_ADMIN users are
// platform-level. Only a SUPER_ADMIN may pick an arbitrary tenant; everyone
// else creates users in their own tenant, or at platform level when they
// have none, and may not name another one.
func placeUser(identity *auth.Identity, roleName, requested string) (string, error) {
	if rbac.KindOf(roleName) == rbac.KindSuperAdmin {
		return "", nil
	}
	if rbac.KindOf(identity.RoleName) == rbac.KindSuperAdmin {
		return requested, nil
	}
	if requested != "" && requested != identity.TenantID {
		return "", ErrCrossTenantCreate
	}
	return identity.TenantID, nil
}

// resolveRole loads the named role and runs the escalation guard for
// assigning it.
func (h *UserHandler) resolveRole(w http.ResponseWriter, r *http.Request, identity *auth.Identity, name string) (*Role, bool) {
	role, err := h.roleStore.GetByName(r.Context(), h.db, name)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown role", "field": "role"})
			return nil, false
		}
		writeError(w, r, err, "resolving role failed")
		return nil, false
	}
	if err := h.engine.ValidateRoleAssignment(identity, rbac.NewRole(role.Name, role.Permissions)); err != nil {
		writeError(w, r, err, "resolving role failed")
		return nil, false
	}
	return role, true
}

// HandleList returns the users visible to the caller: everyone for a
// SUPER_ADMIN, the tenant for a TENANT_ADMIN, and only themselves otherwise.
// Users the caller could not fetch individually, such as peer tenant
// admins, are left out.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentity(r.Context())
	users, err := h.store.List(r.Context(), h.db, h.engine.VisibleSet(identity, rbac.ResourceUser))
	if err != nil {
		writeError(w, r, err, "listing users failed")
		return
	}

	manageable := users[:0]
	for _, u := range users {
		if h.engine.AuthorizeUserObject(identity, u.Subject()).Allowed {
			manageable = append(manageable, u)
		}
	}
	writeJSON(w, http.StatusOK, manageable)
}

// load fetches the user named in the path and runs the tenant boundary and
// user-management checks. It writes the response and returns nil when the
// caller must stop.
func (h *UserHandler) load(w http.ResponseWriter, r *http.Request) (*auth.Identity, *User) {
	id, ok := pathID(w, r, "user")
	if !ok {
		return nil, nil
	}
	identity := auth.GetIdentity(r.Context())

	user, err := h.store.GetByID(r.Context(), h.db, id, h.engine.VisibleSet(identity, rbac.ResourceUser))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return nil, nil
		}
		writeError(w, r, err, "fetching user failed")
		return nil, nil
	}
	if d := h.engine.AuthorizeObject(identity, user); !d.Allowed {
		rbac.WriteDenied(w, d)
		return nil, nil
	}
	if d := h.engine.AuthorizeUserObject(identity, user.Subject()); !d.Allowed {
		rbac.WriteDenied(w, d)
		return nil, nil
	}
	return identity, user
}

// HandleGet returns a user by ID.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if _, user := h.load(w, r); user != nil {
		writeJSON(w, http.StatusOK, user)
	}
}

type updateUserRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=1,max=150"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Active    *bool   `json:"is_active"`
}

// HandleUpdate changes a user's profile fields.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_, user := h.load(w, r)
	if user == nil {
		return
	}
	var req updateUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	updated, err := h.store.Update(r.Context(), h.db, user.ID, UserUpdate{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Active:    req.Active,
	})
	if err != nil {
		h.writeUserError(w, r, err, "user update failed")
		return
	}

	h.recorder.RecordMutation(r.Context(), audit.ActionUpdate, rbac.ResourceUser, updated, nil)
	writeJSON(w, http.StatusOK, updated)
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,max=50"`
}

// HandleSetRole re-assigns a user's role.
func (h *UserHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	identity, user := h.load(w, r)
	if user == nil {
		return
	}
	var req setRoleRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	role, ok := h.resolveRole(w, r, identity, req.Role)
	if !ok {
		return
	}

	updated, err := h.store.SetRole(r.Context(), h.db, user.ID, role.ID)
	if err != nil {
		h.writeUserError(w, r, err, "role assignment failed")
		return
	}

	h.recorder.RecordMutation(r.Context(), audit.ActionUpdate, rbac.ResourceUser, updated, nil)
	writeJSON(w, http.StatusOK, updated)
}

// HandleDelete deletes a user.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_, user := h.load(w, r)
	if user == nil {
		return
	}

	if err := h.store.Delete(r.Context(), h.db, user.ID); err != nil {
		h.writeUserError(w, r, err, "user deletion failed")
		return
	}

	h.recorder.RecordMutation(r.Context(), audit.ActionDelete, rbac.ResourceUser, user, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) writeUserError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrEmailDuplicate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeError(w, r, err, fallback)
	}
}
