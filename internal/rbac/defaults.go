package rbac

func crud(resourceTypes ...string) []string {
	keys := make([]string, 0, len(resourceTypes)*len(verbs))
	for _, rt := range resourceTypes {
		for _, v := range verbs {
			keys = append(keys, Key(v, rt))
		}
	}
	return keys
}

// DefaultRoles returns the built-in roles created at first start.
func DefaultRoles(registry *Registry) []RoleDef {
	tenantAdmin := crud(
		ResourceUser, ResourceCourse, ResourceModule, ResourceSubModule,
		ResourceCatalogue, ResourceEnrollment, ResourceSkill, ResourceCourseSkill,
	)
	tenantAdmin = append(tenantAdmin,
		Key(VerbView, ResourceSubModuleProgress),
		Key(VerbChange, ResourceSubModuleProgress),
		Key(VerbView, ResourceUserSkill),
		Key(VerbView, ResourcePayment),
		Key(VerbView, ResourceRole),
		Key(VerbView, ResourcePermission),
		Key(VerbView, ResourceAuditLog),
	)

	tenantUser := []string{
		Key(VerbView, ResourceCourse),
		Key(VerbView, ResourceModule),
		Key(VerbView, ResourceSubModule),
		Key(VerbView, ResourceCatalogue),
		Key(VerbAdd, ResourceEnrollment),
		Key(VerbView, ResourceEnrollment),
		Key(VerbView, ResourceSubModuleProgress),
		Key(VerbChange, ResourceSubModuleProgress),
		Key(VerbView, ResourceUserSkill),
		Key(VerbView, ResourceSkill),
		Key(VerbView, ResourcePayment),
		Key(VerbView, ResourceUser),
	}

	return []RoleDef{
		{
			Name:        RoleSuperAdmin,
			Description: "Platform operator with unrestricted access",
			Permissions: registry.Keys(),
		},
		{
			Name:        RoleTenantAdmin,
			Description: "Administers a single tenant",
			Permissions: registry.Sanitize(tenantAdmin),
		},
		{
			Name:        RoleTenantUser,
			Description: "Learner within a tenant",
			Permissions: registry.Sanitize(tenantUser),
		},
	}
}
