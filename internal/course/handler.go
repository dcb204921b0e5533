package course

import (
	"errors"
	"net/http"

	"github.com/coursegrid/coursegrid/internal/audit"
	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
	"github.com/coursegrid/coursegrid/internal/tenant"
)

// ErrNotPublishable is returned when publishing an archived course.
var ErrNotPublishable = errors.New("archived courses cannot be published")

// Handler handles course HTTP endpoints.
type Handler struct {
	db       database.Querier
	store    *Store
	engine   rbac.PolicyEngine
	recorder audit.Recorder
}

func NewHandler(db database.Querier, store *Store, engine rbac.PolicyEngine, recorder audit.Recorder) *Handler {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Handler{db: db, store: store, engine: engine, recorder: recorder}
}

type createCourseRequest struct {
	TenantID    string `json:"tenant_id" validate:"omitempty,uuid"`
	Name        string `json:"name" validate:"required,max=255"`
	Slug        string `json:"slug" validate:"omitempty,max=255"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents" validate:"gte=0"`
	IsFree      bool   `json:"is_free"`
}

// owningTenant picks the tenant a new course lands in. Tenant actors always
// create inside their own tenant. A platform SUPER_ADMIN must name one; any
// other platform actor has no tenant to create in.
func owningTenant(identity *auth.Identity, requested string) (string, error) {
	if identity.TenantID != "" {
		return identity.TenantID, nil
	}
	if rbac.KindOf(identity.RoleName) != rbac.KindSuperAdmin {
		return "", ErrForeignTenant
	}
	if requested == "" {
		return "", ErrTenantRequired
	}
	return requested, nil
}

// HandleCreate creates a draft course owned by the caller.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	identity := auth.GetIdentity(r.Context())

	tenantID, err := owningTenant(identity, req.TenantID)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrForeignTenant) {
			status = http.StatusForbidden
		}
		writeJSON(w, status, map[string]string{"error": err.Error(), "field": "tenant_id"})
		return
	}
	if d := h.engine.AuthorizeObject(identity, &Course{TenantID: tenantID}); !d.Allowed {
		rbac.WriteDenied(w, d)
		return
	}
	if req.Slug == "" {
		req.Slug = tenant.Slugify(req.Name)
	}

	c, err := h.store.Create(r.Context(), h.db, NewCourse{
		TenantID:    tenantID,
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		IsFree:      req.IsFree,
		CreatedBy:   identity.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSlugTaken):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrUnknownTenant):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "field": "tenant_id"})
		default:
			internalError(w, r, err, "course creation failed")
		}
		return
	}

	h.recorder.RecordMutation(r.Context(), audit.ActionCreate, rbac.ResourceCourse, c, nil)
	writeJSON(w, http.StatusCreated, c)
}

// HandleList returns the visible courses, optionally filtered by ?name= and
// ?status=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{Name: q.Get("name"), Status: q.Get("status")}
	switch f.Status {
	case "", StatusDraft, StatusPublished, StatusArchived:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter", "field": "status"})
		return
	}

	identity := auth.GetIdentity(r.Context())
	courses, err := h.store.List(r.Context(), h.db, h.engine.VisibleSet(identity, rbac.ResourceCourse), f)
	if err != nil {
		internalError(w, r, err, "listing courses failed")
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) *Course {
	id := r.PathValue("id")
	if !isUUID(id) {
		notFound(w)
		return nil
	}
	identity := auth.GetIdentity(r.Context())

	c, err := h.store.GetByID(r.Context(), h.db, id, h.engine.VisibleSet(identity, rbac.ResourceCourse))
	if err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			notFound(w)
			return nil
		}
		internalError(w, r, err, "fetching course failed")
		return nil
	}
	if d := h.engine.AuthorizeObject(identity, c); !d.Allowed {
		rbac.WriteDenied(w, d)
		return nil
	}
	return c
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if c := h.load(w, r); c != nil {
		writeJSON(w, http.StatusOK, c)
	}
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	c := h.load(w, r)
	if c == nil {
		return
	}
	if err := h.store.Delete(r.Context(), h.db, c.ID); err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			notFound(w)
			return
		}
		internalError(w, r, err, "course deletion failed")
		return
	}

	h.recorder.RecordMutation(r.Context(), audit.ActionDelete, rbac.ResourceCourse, c, nil)
	w.WriteHeader(http.StatusNoContent)
}

// HandlePublish moves a draft course to PUBLISHED. Publishing an already
// published course is a no-op.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	c := h.load(w, r)
	if c == nil {
		return
	}
	switch c.Status {
	case StatusPublished:
		writeJSON(w, http.StatusOK, c)
		return
	case StatusArchived:
		writeJSON(w, http.StatusConflict, map[string]string{"error": ErrNotPublishable.Error()})
		return
	}

	published, err := h.store.SetStatus(r.Context(), h.db, c.ID, StatusPublished)
	if err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			notFound(w)
			return
		}
		internalError(w, r, err, "publishing course failed")
		return
	}

	h.recorder.RecordMutation(r.Context(), audit.ActionUpdate, rbac.ResourceCourse, published, nil)
	writeJSON(w, http.StatusOK, published)
}
