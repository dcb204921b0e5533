package tenant

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/coursegrid/coursegrid/internal/rbac"
)

const maxBodyBytes = 10 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest reads and validates a JSON body into dst, writing a 400 and
// returning false on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": fieldErrors(err),
		})
		return false
	}
	return true
}

func fieldErrors(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["body"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		fields[fe.Field()] = "failed on " + fe.Tag()
	}
	return fields
}

// pathID returns the {id} path value if it is a UUID. Malformed ids cannot
// name a row, so they are reported as not found.
func pathID(w http.ResponseWriter, r *http.Request, what string) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": what + " not found"})
		return "", false
	}
	return id, true
}

// writeError maps guard and validation errors to their HTTP status and logs
// anything else as an internal failure.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *rbac.ValidationError
	switch status := rbac.StatusCode(err); {
	case errors.As(err, &verr):
		body := map[string]string{"error": verr.Message}
		if verr.Field != "" {
			body["field"] = verr.Field
		}
		writeJSON(w, http.StatusBadRequest, body)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		writeJSON(w, status, map[string]string{"error": err.Error()})
	default:
		slog.ErrorContext(r.Context(), fallback, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
