package rbac

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coursegrid/coursegrid/internal/auth"
)

// RequirePermission returns middleware that runs the request-level check for
// action on resourceType against the authenticated identity.
func RequirePermission(engine *Evaluator, resourceType, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.GetIdentity(r.Context())
			decision := engine.Authorize(identity, resourceType, action)
			if !decision.Allowed {
				logDenial(r, identity, resourceType, action, decision)
				WriteDenied(w, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteDenied writes the HTTP response for a denied decision.
func WriteDenied(w http.ResponseWriter, d Decision) {
	w.Header().Set("Content-Type", "application/json")
	if d.unauthenticated {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "authentication required",
		})
		return
	}
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  "forbidden",
		"reason": d.Reason,
	})
}

func logDenial(r *http.Request, identity *auth.Identity, resourceType, action string, d Decision) {
	attrs := []any{
		"resource_type", resourceType,
		"action", action,
		"reason", d.Reason,
		"path", r.URL.Path,
	}
	if identity != nil {
		attrs = append(attrs, "user_id", identity.UserID, "tenant_id", identity.TenantID)
	}
	slog.WarnContext(r.Context(), "access denied", attrs...)
}
