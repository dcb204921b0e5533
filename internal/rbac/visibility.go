package rbac

import (
	"fmt"
	"strings"

	"github.com/coursegrid/coursegrid/internal/auth"
)

// Optional record interfaces consulted by Predicate.Matches.
type (
	Publishable interface {
		IsPublished() bool
	}
	Owned interface {
		OwnerUserID() string
	}
	Activatable interface {
		IsActive() bool
	}
)

// Predicate is the set of records an actor may see for one resource type.
// Callers render it with Where for SQL or test records with Matches, and may
// only narrow it further. A predicate that is neither Unrestricted nor
// TenantBound, including the zero value, matches nothing.
type Predicate struct {
	// Empty matches nothing.
	Empty bool
	// Unrestricted matches everything.
	Unrestricted bool

	// TenantBound restricts to records of TenantID. An empty TenantID
	// selects platform-level records.
	TenantBound   bool
	TenantID      string
	PublishedOnly bool
	OwnerID       string
	ActiveOnly    bool

	columns Columns
}

// VisibleSet returns the records of resourceType the actor may list or
// retrieve.
func (e *Evaluator) VisibleSet(identity *auth.Identity, resourceType string) Predicate {
	rt, known := e.registry.Lookup(resourceType)
	if !known {
		rt = ResourceType{Name: resourceType}
	}
	cols := rt.columns()

	if !authenticated(identity) {
		return Predicate{Empty: true, columns: cols}
	}
	if isSuperAdmin(identity) || rt.Scope == ScopeGlobal {
		return Predicate{Unrestricted: true, columns: cols}
	}

	p := Predicate{TenantBound: true, TenantID: identity.TenantID, columns: cols}
	if KindOf(identity.RoleName) == KindTenantAdmin {
		return p
	}
	if e.HasPermission(identity, rt.PermissionKey(VerbChange)) {
		return p
	}

	switch rt.Scope {
	case ScopePublished:
		p.PublishedOnly = true
	case ScopeOwned:
		p.OwnerID = identity.UserID
	case ScopeActive:
		p.ActiveOnly = true
	}
	return p
}

// Where renders the predicate as a SQL boolean expression. Placeholders start
// at $argStart; the returned args bind them in order.
func (p Predicate) Where(argStart int) (string, []any) {
	if p.Empty {
		return "FALSE", nil
	}
	if p.Unrestricted {
		return "TRUE", nil
	}
	if !p.TenantBound {
		return "FALSE", nil
	}

	cols := p.columns
	if cols == (Columns{}) {
		cols = defaultColumns
	}

	var conds []string
	var args []any
	n := argStart
	bind := func(expr string, v any) {
		conds = append(conds, fmt.Sprintf("%s = $%d", expr, n))
		args = append(args, v)
		n++
	}

	if p.TenantID == "" {
		conds = append(conds, cols.Tenant+" IS NULL")
	} else {
		bind(cols.Tenant, p.TenantID)
	}
	if p.PublishedOnly {
		bind(cols.Status, StatusPublished)
	}
	if p.OwnerID != "" {
		bind(cols.Owner, p.OwnerID)
	}
	if p.ActiveOnly {
		conds = append(conds, cols.Active+" = TRUE")
	}

	return strings.Join(conds, " AND "), args
}

// Matches reports whether record is in the set. Records that do not expose
// a field the predicate restricts on never match.
func (p Predicate) Matches(record any) bool {
	if p.Empty {
		return false
	}
	if p.Unrestricted {
		return true
	}
	if !p.TenantBound {
		return false
	}

	tenantID, bound := tenantOf(record)
	if !bound || tenantID != p.TenantID {
		return false
	}
	if p.PublishedOnly {
		r, ok := record.(Publishable)
		if !ok || !r.IsPublished() {
			return false
		}
	}
	if p.OwnerID != "" {
		r, ok := record.(Owned)
		if !ok || r.OwnerUserID() != p.OwnerID {
			return false
		}
	}
	if p.ActiveOnly {
		r, ok := record.(Activatable)
		if !ok || !r.IsActive() {
			return false
		}
	}
	return true
}
