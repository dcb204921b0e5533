package tenant

import (
	"errors"
	"net/http"

	"github.com/coursegrid/coursegrid/internal/audit"
	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

// Handler handles tenant HTTP endpoints. Request-level permissions are
// applied by the router; the handler narrows to the visible set and runs
// the object-level check.
type Handler struct {
	db       database.Querier
	store    *Store
	engine   rbac.PolicyEngine
	recorder audit.Recorder
}

// NewHandler creates a new tenant handler.
func NewHandler(db database.Querier, store *Store, engine rbac.PolicyEngine, recorder audit.Recorder) *Handler {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Handler{db: db, store: store, engine: engine, recorder: recorder}
}

type createTenantRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Slug string `json:"slug" validate:"omitempty,max=63"`
}

// HandleCreate creates a new tenant. The slug is derived from the name when
// omitted.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Slug == "" {
		req.Slug = Slugify(req.Name)
	}

	t, err := h.store.Create(r.Context(), h.db, req.Name, req.Slug)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSlug):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrSlugTaken):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			writeError(w, r, err, "tenant creation failed")
		}
		return
	}

	h.recorder.RecordMutation(r.Context(), audit.ActionCreate, rbac.ResourceTenant, t, nil)
	writeJSON(w, http.StatusCreated, t)
}

// load fetches the tenant named in the path and runs the object-level check.
// It writes the response and returns nil when the caller must stop.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) *Tenant {
	id, ok := pathID(w, r, "tenant")
	if !ok {
		return nil
	}
	identity := auth.GetIdentity(r.Context())

	t, err := h.store.GetByID(r.Context(), h.db, id, h.engine.VisibleSet(identity, rbac.ResourceTenant))
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return nil
		}
		writeError(w, r, err, "fetching tenant failed")
		return nil
	}
	if d := h.engine.AuthorizeObject(identity, t); !d.Allowed {
		rbac.WriteDenied(w, d)
		return nil
	}
	return t
}

// HandleGet returns a tenant by ID.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if t := h.load(w, r); t != nil {
		writeJSON(w, http.StatusOK, t)
	}
}

// HandleList returns the tenants visible to the caller.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentity(r.Context())
	tenants, err := h.store.List(r.Context(), h.db, h.engine.VisibleSet(identity, rbac.ResourceTenant))
	if err != nil {
		writeError(w, r, err, "listing tenants failed")
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

type updateTenantRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=255"`
	Status *string `json:"status" validate:"omitempty,oneof=active suspended archived"`
}

// HandleUpdate changes a tenant's name or status.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	t := h.load(w, r)
	if t == nil {
		return
	}
	var req updateTenantRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	updated, err := h.store.Update(r.Context(), h.db, t.ID, TenantUpdate{Name: req.Name, Status: req.Status})
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		writeError(w, r, err, "tenant update failed")
		return
	}

	h.recorder.RecordMutation(r.Context(), audit.ActionUpdate, rbac.ResourceTenant, updated, nil)
	writeJSON(w, http.StatusOK, updated)
}

// HandleDelete deletes a tenant and everything it owns.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	t := h.load(w, r)
	if t == nil {
		return
	}

	if err := h.store.Delete(r.Context(), h.db, t.ID); err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		writeError(w, r, err, "tenant deletion failed")
		return
	}

	h.recorder.RecordMutation(r.Context(), audit.ActionDelete, rbac.ResourceTenant, t, nil)
	w.WriteHeader(http.StatusNoContent)
}
