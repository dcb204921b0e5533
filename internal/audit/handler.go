package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Visibility resolves the records an actor may see.
type Visibility interface {
	VisibleSet(identity *auth.Identity, resourceType string) rbac.Predicate
}

// Handler serves audit query endpoints.
type Handler struct {
	db         database.Querier
	store      *Store
	visibility Visibility
}

// NewHandler creates an audit query handler.
func NewHandler(db database.Querier, store *Store, visibility Visibility) *Handler {
	return &Handler{db: db, store: store, visibility: visibility}
}

// HandleListEntries returns the audit entries visible to the caller.
// GET /api/v1/audit/entries?action=DELETE&resource_type=course&user_id=<uuid>&after=<rfc3339>&before=<rfc3339>&limit=50
func (h *Handler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentity(r.Context())
	params, err := parseListParams(r)
	if err != nil {
		writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	params.Visibility = h.visibility.VisibleSet(identity, rbac.ResourceAuditLog)

	if h.db == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{"entries": []Entry{}, "count": 0})
		return
	}

	entries, err := h.store.List(r.Context(), h.db, params)
	if err != nil {
		slog.ErrorContext(r.Context(), "listing audit entries", "error", err)
		writeAuditJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func parseListParams(r *http.Request) (ListParams, error) {
	q := r.URL.Query()
	p := ListParams{Limit: defaultListLimit}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return p, &rbac.ValidationError{Field: "limit", Message: "must be a positive integer"}
		}
		p.Limit = min(n, maxListLimit)
	}
	if raw := q.Get("action"); raw != "" {
		a, ok := ParseAction(raw)
		if !ok {
			return p, &rbac.ValidationError{Field: "action", Message: "unknown action"}
		}
		p.Action = &a
	}
	if raw := q.Get("resource_type"); raw != "" {
		p.ResourceType = &raw
	}
	if raw := q.Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return p, &rbac.ValidationError{Field: "user_id", Message: "must be a UUID"}
		}
		p.UserID = &id
	}
	for _, f := range []struct {
		name string
		dst  **time.Time
	}{{"after", &p.After}, {"before", &p.Before}} {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return p, &rbac.ValidationError{Field: f.name, Message: "must be an RFC 3339 timestamp"}
		}
		*f.dst = &t
	}
	return p, nil
}

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
