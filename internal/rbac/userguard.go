package rbac

import "github.com/coursegrid/coursegrid/internal/auth"

// Subject is the user record targeted by a user-management action.
type Subject struct {
	UserID   string
	TenantID string
	RoleName string
}

// AuthorizeUserObject applies the user-management rules on top of
// AuthorizeObject: nobody but a SUPER_ADMIN touches a SUPER_ADMIN or another
// TENANT_ADMIN, TENANT_ADMINs manage their own tenant, and everybody else
// manages only themselves.
func (e *Evaluator) AuthorizeUserObject(identity *auth.Identity, target Subject) Decision {
	d := e.authorizeUserObject(identity, target)
	e.observe("user", d)
	return d
}

func (e *Evaluator) authorizeUserObject(identity *auth.Identity, target Subject) Decision {
	if !authenticated(identity) {
		return denyUnauthenticated()
	}
	if isSuperAdmin(identity) {
		return allow("super admin")
	}

	self := target.UserID != "" && target.UserID == identity.UserID
	switch {
	case KindOf(target.RoleName) == KindSuperAdmin:
		return deny("target is a super admin")
	case target.TenantID != identity.TenantID:
		return deny("target belongs to another tenant")
	case KindOf(target.RoleName) == KindTenantAdmin && !self:
		return deny("target is a tenant admin")
	case KindOf(identity.RoleName) == KindTenantAdmin:
		return allow("tenant admin")
	case self:
		return allow("self")
	default:
		return deny("users may only manage themselves")
	}
}
