package rbac

import "github.com/coursegrid/coursegrid/internal/auth"

const (
	msgCannotAssignRoles = "You do not have permission to assign roles."
	msgRoleExceedsOwn    = "You cannot assign a role with more permissions than your own."
)

// ValidateRoleAssignment checks that the actor may give target to a user.
// A non-SUPER_ADMIN actor may only hand out roles whose permissions are a
// subset of their own. The SUPER_ADMIN role counts as holding the whole
// catalog, whatever its stored set.
func (e *Evaluator) ValidateRoleAssignment(identity *auth.Identity, target Role) error {
	err := e.validateRoleAssignment(identity, target)
	if e.observer != nil {
		e.observer.ObserveDecision("assignment", err == nil)
	}
	return err
}

func (e *Evaluator) validateRoleAssignment(identity *auth.Identity, target Role) error {
	if !authenticated(identity) {
		return ErrUnauthenticated
	}
	if isSuperAdmin(identity) {
		return nil
	}

	own, ok := e.RolePermissions(identity.RoleName)
	if !ok {
		return &ValidationError{Field: "role", Message: msgCannotAssignRoles}
	}

	// SUPER_ADMIN is measured by its bypass, not its stored set.
	effective := target.Permissions
	if KindOf(target.Name) == KindSuperAdmin {
		effective = NewPermissionSet(e.registry.Keys()...)
		for k := range target.Permissions {
			effective[k] = struct{}{}
		}
	}
	if !effective.SubsetOf(own) {
		return &ValidationError{Field: "role", Message: msgRoleExceedsOwn}
	}
	return nil
}
