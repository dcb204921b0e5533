package rbac

import (
	"fmt"
	"slices"
	"strings"
)

// Verb is the operation half of a permission key.
type Verb string

const (
	VerbView   Verb = "view"
	VerbAdd    Verb = "add"
	VerbChange Verb = "change"
	VerbDelete Verb = "delete"
)

var verbs = []Verb{VerbView, VerbAdd, VerbChange, VerbDelete}

// Standard resource actions.
const (
	ActionList          = "list"
	ActionRetrieve      = "retrieve"
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionPartialUpdate = "partial_update"
	ActionDestroy       = "destroy"
)

var standardActions = map[string]Verb{
	ActionList:          VerbView,
	ActionRetrieve:      VerbView,
	ActionCreate:        VerbAdd,
	ActionUpdate:        VerbChange,
	ActionPartialUpdate: VerbChange,
	ActionDestroy:       VerbDelete,
}

// Scope selects how list visibility narrows for actors that are neither
// SUPER_ADMIN nor TENANT_ADMIN.
type Scope int

const (
	// ScopeTenant restricts to the actor's tenant and nothing more.
	ScopeTenant Scope = iota
	// ScopePublished additionally hides unpublished records.
	ScopePublished
	// ScopeOwned additionally hides records owned by other users.
	ScopeOwned
	// ScopeActive additionally hides inactive records.
	ScopeActive
	// ScopeGlobal marks types that do not belong to a tenant.
	ScopeGlobal
)

// Columns names the SQL expressions a visibility predicate renders against.
type Columns struct {
	Tenant string
	Status string
	Owner  string
	Active string
}

var defaultColumns = Columns{
	Tenant: "tenant_id",
	Status: "status",
	Owner:  "user_id",
	Active: "is_active",
}

// ResourceType describes one kind of protected record.
type ResourceType struct {
	Name string
	// Codename is the permission-key suffix; defaults to Name.
	Codename string
	Scope    Scope
	// Audited types have their creates and deletes written to the audit log.
	Audited bool
	// Actions maps non-standard action names to the permission key they
	// require. Undeclared non-standard actions need no permission.
	Actions map[string]string
	Columns Columns
}

func (rt ResourceType) codename() string {
	if rt.Codename != "" {
		return rt.Codename
	}
	return rt.Name
}

// PermissionKey returns the catalog key for verb on this type, e.g. "change_course".
func (rt ResourceType) PermissionKey(v Verb) string {
	return Key(v, rt.codename())
}

func (rt ResourceType) columns() Columns {
	c := rt.Columns
	if c.Tenant == "" {
		c.Tenant = defaultColumns.Tenant
	}
	if c.Status == "" {
		c.Status = defaultColumns.Status
	}
	if c.Owner == "" {
		c.Owner = defaultColumns.Owner
	}
	if c.Active == "" {
		c.Active = defaultColumns.Active
	}
	return c
}

// Key builds a permission key.
func Key(v Verb, codename string) string {
	return string(v) + "_" + codename
}

// Registry is the closed set of resource types and the permission catalog
// derived from them. It is immutable once built.
type Registry struct {
	types map[string]ResourceType
	names []string
	keys  map[string]struct{}
}

// NewRegistry builds a registry. Every type contributes the four standard
// verb keys; custom action keys must resolve to one of those.
func NewRegistry(types ...ResourceType) (*Registry, error) {
	r := &Registry{
		types: make(map[string]ResourceType, len(types)),
		keys:  make(map[string]struct{}, len(types)*len(verbs)),
	}
	for _, rt := range types {
		if rt.Name == "" {
			return nil, fmt.Errorf("resource type with empty name")
		}
		if _, dup := r.types[rt.Name]; dup {
			return nil, fmt.Errorf("duplicate resource type %q", rt.Name)
		}
		r.types[rt.Name] = rt
		r.names = append(r.names, rt.Name)
		for _, v := range verbs {
			r.keys[rt.PermissionKey(v)] = struct{}{}
		}
	}
	for _, rt := range types {
		for action, key := range rt.Actions {
			if _, std := standardActions[action]; std {
				return nil, fmt.Errorf("resource type %q overrides standard action %q", rt.Name, action)
			}
			if _, ok := r.keys[key]; !ok {
				return nil, fmt.Errorf("resource type %q action %q requires unknown permission %q", rt.Name, action, key)
			}
		}
	}
	slices.Sort(r.names)
	return r, nil
}

// MustRegistry is NewRegistry for static definitions.
func MustRegistry(types ...ResourceType) *Registry {
	r, err := NewRegistry(types...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(name string) (ResourceType, bool) {
	rt, ok := r.types[name]
	return rt, ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Keys returns the whole catalog in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.keys))
	for k := range r.keys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (r *Registry) Contains(key string) bool {
	_, ok := r.keys[key]
	return ok
}

// Sanitize drops keys outside the catalog and duplicates. The result is sorted.
func (r *Registry) Sanitize(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if r.Contains(k) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// RequiredKey returns the permission key needed to perform action on
// resourceType. ok is false when no key applies: the type is unknown or the
// action is non-standard and undeclared.
func (r *Registry) RequiredKey(resourceType, action string) (key string, ok bool) {
	rt, found := r.types[resourceType]
	if !found {
		return "", false
	}
	if v, std := standardActions[action]; std {
		return rt.PermissionKey(v), true
	}
	key, ok = rt.Actions[action]
	return key, ok
}

// IsAudited reports whether mutations of resourceType are recorded.
func (r *Registry) IsAudited(resourceType string) bool {
	rt, ok := r.types[resourceType]
	return ok && rt.Audited
}

// Matrix is the per-type permission representation used by the role API:
// {"course": {"view": true, "create": true, "update": false, "delete": false}}.
type Matrix map[string]map[string]bool

var matrixVerbs = map[string]Verb{
	"create": VerbAdd,
	"update": VerbChange,
	"delete": VerbDelete,
	"view":   VerbView,
}

// KeysFromMatrix converts a Matrix to catalog keys. Unknown types and
// actions are dropped.
func (r *Registry) KeysFromMatrix(m Matrix) []string {
	var keys []string
	for name, actions := range m {
		rt, ok := r.types[name]
		if !ok {
			continue
		}
		for action, granted := range actions {
			v, ok := matrixVerbs[action]
			if !ok || !granted {
				continue
			}
			keys = append(keys, rt.PermissionKey(v))
		}
	}
	return r.Sanitize(keys)
}

// MatrixFromKeys renders keys as a Matrix. Only types with at least one
// granted key appear.
func (r *Registry) MatrixFromKeys(keys []string) Matrix {
	set := NewPermissionSet(keys...)
	m := Matrix{}
	for _, name := range r.names {
		rt := r.types[name]
		row := make(map[string]bool, len(matrixVerbs))
		granted := false
		for action, v := range matrixVerbs {
			has := set.Has(rt.PermissionKey(v))
			row[action] = has
			granted = granted || has
		}
		if granted {
			m[name] = row
		}
	}
	return m
}
