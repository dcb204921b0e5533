package rbac

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/coursegrid/coursegrid/internal/auth"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
)

// ValidationError rejects a request payload. Message is safe to show to the
// caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Decision represents the result of an authorization check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`

	unauthenticated bool
}

func allow(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

func denyUnauthenticated() Decision {
	return Decision{Reason: "authentication required", unauthenticated: true}
}

// Err returns nil for an allow, ErrUnauthenticated when there was no usable
// actor, and ErrForbidden otherwise.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.unauthenticated:
		return ErrUnauthenticated
	default:
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
}

// StatusCode maps an authorization error to an HTTP status.
func StatusCode(err error) int {
	var verr *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PolicyEngine is the authorization surface consumed by resource handlers.
type PolicyEngine interface {
	Authorize(identity *auth.Identity, resourceType, action string) Decision
	AuthorizeObject(identity *auth.Identity, record any) Decision
	AuthorizeUserObject(identity *auth.Identity, target Subject) Decision
	VisibleSet(identity *auth.Identity, resourceType string) Predicate
	ValidateRoleAssignment(identity *auth.Identity, target Role) error
}

var _ PolicyEngine = (*Evaluator)(nil)

func authenticated(identity *auth.Identity) bool {
	return identity != nil && identity.Active
}

func isSuperAdmin(identity *auth.Identity) bool {
	return KindOf(identity.RoleName) == KindSuperAdmin
}
