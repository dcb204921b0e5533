package rbac

import "slices"

// Built-in role names.
const (
	RoleSuperAdmin  = "SUPER_ADMIN"
	RoleTenantAdmin = "TENANT_ADMIN"
	RoleTenantUser  = "TENANT_USER"
)

// Kind tags a role name with the fixed behavior attached to it. Only the
// SUPER_ADMIN and TENANT_ADMIN kinds change how checks run; their permission
// sets are still consulted for everything else.
type Kind int

const (
	KindNone Kind = iota
	KindCustom
	KindSuperAdmin
	KindTenantAdmin
	KindTenantUser
)

func KindOf(roleName string) Kind {
	switch roleName {
	case "":
		return KindNone
	case RoleSuperAdmin:
		return KindSuperAdmin
	case RoleTenantAdmin:
		return KindTenantAdmin
	case RoleTenantUser:
		return KindTenantUser
	default:
		return KindCustom
	}
}

func (k Kind) String() string {
	switch k {
	case KindSuperAdmin:
		return RoleSuperAdmin
	case KindTenantAdmin:
		return RoleTenantAdmin
	case KindTenantUser:
		return RoleTenantUser
	case KindCustom:
		return "custom"
	default:
		return "none"
	}
}

// IsReservedRole reports whether name is one of the built-in roles.
func IsReservedRole(name string) bool {
	k := KindOf(name)
	return k == KindSuperAdmin || k == KindTenantAdmin || k == KindTenantUser
}

// PermissionSet is an unordered set of catalog keys.
type PermissionSet map[string]struct{}

func NewPermissionSet(keys ...string) PermissionSet {
	s := make(PermissionSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s PermissionSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// SubsetOf reports whether every key in s is also in other.
func (s PermissionSet) SubsetOf(other PermissionSet) bool {
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

func (s PermissionSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Role is a named permission set as seen by the evaluator.
type Role struct {
	Name        string
	Permissions PermissionSet
}

func NewRole(name string, keys []string) Role {
	return Role{Name: name, Permissions: NewPermissionSet(keys...)}
}

// RoleDef is a role name with its permission keys, used by RoleLoader and seeding.
type RoleDef struct {
	Name        string
	Description string
	Permissions []string
}
