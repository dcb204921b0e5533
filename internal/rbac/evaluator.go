package rbac

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/coursegrid/coursegrid/internal/auth"
)

// RoleLoader loads role definitions from a backing store.
type RoleLoader interface {
	LoadRoles(ctx context.Context) ([]RoleDef, error)
}

// DecisionObserver is notified of every decision. telemetry.Metrics
// satisfies it.
type DecisionObserver interface {
	ObserveDecision(kind string, allowed bool)
}

// EvaluatorOption configures the Evaluator.
type EvaluatorOption func(*Evaluator)

// WithRoleLoader sets a RoleLoader for DB-backed role loading.
func WithRoleLoader(loader RoleLoader) EvaluatorOption {
	return func(e *Evaluator) {
		e.loader = loader
	}
}

func WithObserver(o DecisionObserver) EvaluatorOption {
	return func(e *Evaluator) {
		e.observer = o
	}
}

// Evaluator answers authorization questions from an in-memory role cache.
// All checks are pure: they read the cache and the arguments and nothing else.
type Evaluator struct {
	registry *Registry
	loader   RoleLoader
	observer DecisionObserver
	roles    map[string]PermissionSet // role name → permissions
	mu       sync.RWMutex
}

func NewEvaluator(registry *Registry, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		registry: registry,
		roles:    make(map[string]PermissionSet),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// ReloadRoles loads roles from the RoleLoader and replaces the in-memory map.
// If loading fails, the existing map is preserved.
func (e *Evaluator) ReloadRoles(ctx context.Context) error {
	if e.loader == nil {
		return fmt.Errorf("no role loader configured")
	}

	defs, err := e.loader.LoadRoles(ctx)
	if err != nil {
		return fmt.Errorf("loading roles: %w", err)
	}

	newRoles := make(map[string]PermissionSet, len(defs))
	for _, d := range defs {
		newRoles[d.Name] = NewPermissionSet(e.registry.Sanitize(d.Permissions)...)
	}

	e.mu.Lock()
	e.roles = newRoles
	e.mu.Unlock()

	return nil
}

// RegisterRole adds or replaces a role in the in-memory cache.
func (e *Evaluator) RegisterRole(name string, permissions []string) {
	set := NewPermissionSet(e.registry.Sanitize(permissions)...)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles[name] = set
}

// RolePermissions returns the cached permission set for a role name.
func (e *Evaluator) RolePermissions(name string) (PermissionSet, bool) {
	if name == "" {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	set, ok := e.roles[name]
	return set, ok
}

// HasPermission reports whether the actor's role carries key. It does not
// apply the SUPER_ADMIN bypass.
func (e *Evaluator) HasPermission(identity *auth.Identity, key string) bool {
	if identity == nil {
		return false
	}
	set, ok := e.RolePermissions(identity.RoleName)
	return ok && set.Has(key)
}

// Authorize decides whether the actor may perform action on resourceType at
// all, before any record is loaded.
func (e *Evaluator) Authorize(identity *auth.Identity, resourceType, action string) Decision {
	d := e.authorize(identity, resourceType, action)
	e.observe("request", d)
	return d
}

func (e *Evaluator) authorize(identity *auth.Identity, resourceType, action string) Decision {
	if !authenticated(identity) {
		return denyUnauthenticated()
	}
	if isSuperAdmin(identity) {
		return allow("super admin")
	}

	// Undeclared custom actions and unknown types are open to any
	// authenticated actor. Gate them by declaring a key in the registry.
	key, ok := e.registry.RequiredKey(resourceType, action)
	if !ok {
		return allow(fmt.Sprintf("no permission required for %s on %s", action, resourceType))
	}

	perms, ok := e.RolePermissions(identity.RoleName)
	if !ok {
		return deny("no role assigned")
	}
	if !perms.Has(key) {
		return deny(fmt.Sprintf("missing permission %s", key))
	}
	return allow(key)
}

// Records expose their tenant through one of these. A record that implements
// none of them is not tenant-bound.
type (
	// TenantEntity is implemented by the tenant record itself.
	TenantEntity interface {
		TenantKey() string
	}
	// TenantRelated is implemented by records holding a tenant relation.
	// A nil result means the relation is unset.
	TenantRelated interface {
		RelatedTenant() TenantEntity
	}
	// TenantScoped is implemented by records carrying a tenant id. An empty
	// result means the record is platform-level.
	TenantScoped interface {
		ScopeTenantID() string
	}
)

// tenantOf resolves the tenant a record belongs to. Nil records, typed or
// not, are not tenant-bound.
func tenantOf(record any) (tenantID string, bound bool) {
	if isNil(record) {
		return "", false
	}
	switch r := record.(type) {
	case TenantEntity:
		return r.TenantKey(), true
	case TenantRelated:
		t := r.RelatedTenant()
		if isNil(t) {
			return "", true
		}
		return t.TenantKey(), true
	case TenantScoped:
		return r.ScopeTenantID(), true
	default:
		return "", false
	}
}

// isNil reports whether v is nil or holds a nil pointer, map, slice,
// func, channel or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// AuthorizeObject decides whether the actor may touch a specific record.
// Only the tenant boundary is checked here; Authorize covers permissions.
func (e *Evaluator) AuthorizeObject(identity *auth.Identity, record any) Decision {
	d := e.authorizeObject(identity, record)
	e.observe("object", d)
	return d
}

func (e *Evaluator) authorizeObject(identity *auth.Identity, record any) Decision {
	if !authenticated(identity) {
		return denyUnauthenticated()
	}
	if isSuperAdmin(identity) {
		return allow("super admin")
	}
	if isNil(record) {
		return deny("no record")
	}

	tenantID, bound := tenantOf(record)
	if !bound {
		return allow("record is not tenant-bound")
	}
	if tenantID != identity.TenantID {
		return deny("record belongs to another tenant")
	}
	return allow("same tenant")
}

func (e *Evaluator) observe(kind string, d Decision) {
	if e.observer != nil {
		e.observer.ObserveDecision(kind, d.Allowed)
	}
}
