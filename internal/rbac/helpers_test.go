package rbac_test

import (
	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

type tenantRecord struct{ id string }

func (t tenantRecord) TenantKey() string { return t.id }

type moduleRecord struct {
	tenant *tenantRecord
}

func (m moduleRecord) RelatedTenant() rbac.TenantEntity {
	if m.tenant == nil {
		return nil
	}
	return m.tenant
}

// looseModule hands back its relation as is, so an unset pointer arrives as
// a typed nil.
type looseModule struct {
	tenant *tenantRecord
}

func (m looseModule) RelatedTenant() rbac.TenantEntity { return m.tenant }

type courseRecord struct {
	tenantID  string
	published bool
}

func (c courseRecord) ScopeTenantID() string { return c.tenantID }
func (c courseRecord) IsPublished() bool     { return c.published }

type enrollmentRecord struct {
	tenantID string
	userID   string
}

func (e enrollmentRecord) ScopeTenantID() string { return e.tenantID }
func (e enrollmentRecord) OwnerUserID() string   { return e.userID }

type catalogueRecord struct {
	tenantID string
	active   bool
}

func (c catalogueRecord) ScopeTenantID() string { return c.tenantID }
func (c catalogueRecord) IsActive() bool        { return c.active }

type untenanted struct{}

func actor(userID, tenantID, role string) *auth.Identity {
	return &auth.Identity{UserID: userID, TenantID: tenantID, RoleName: role, Active: true}
}

func newEvaluator() *rbac.Evaluator {
	registry := rbac.DefaultRegistry()
	eval := rbac.NewEvaluator(registry)
	for _, def := range rbac.DefaultRoles(registry) {
		eval.RegisterRole(def.Name, def.Permissions)
	}
	eval.RegisterRole("EDITOR", []string{"view_course", "change_course"})
	eval.RegisterRole("VIEWER", []string{"view_course"})
	return eval
}
