package rbac

// Resource type names.
const (
	ResourceTenant            = "tenant"
	ResourceUser              = "user"
	ResourceRole              = "role"
	ResourcePermission        = "permission"
	ResourceCourse            = "course"
	ResourceModule            = "module"
	ResourceSubModule         = "submodule"
	ResourceCatalogue         = "catalogue"
	ResourceSkill             = "skill"
	ResourceCourseSkill       = "courseskill"
	ResourceUserSkill         = "userskill"
	ResourceEnrollment        = "enrollment"
	ResourceSubModuleProgress = "submoduleprogress"
	ResourcePayment           = "payment"
	ResourceAuditLog          = "auditlog"
)

// Course statuses referenced by visibility rules.
const StatusPublished = "PUBLISHED"

// DefaultRegistry returns the resource types served by this application.
func DefaultRegistry() *Registry {
	return MustRegistry(
		ResourceType{Name: ResourceTenant, Audited: true, Columns: Columns{Tenant: "id"}},
		ResourceType{Name: ResourceUser, Scope: ScopeOwned, Audited: true, Columns: Columns{Owner: "id"}},
		ResourceType{Name: ResourceRole, Scope: ScopeGlobal},
		ResourceType{Name: ResourcePermission, Scope: ScopeGlobal},
		ResourceType{
			Name:    ResourceCourse,
			Scope:   ScopePublished,
			Audited: true,
			Actions: map[string]string{"publish": "change_course"},
		},
		ResourceType{Name: ResourceModule, Audited: true},
		ResourceType{Name: ResourceSubModule, Audited: true},
		ResourceType{Name: ResourceCatalogue, Scope: ScopeActive, Audited: true},
		ResourceType{Name: ResourceSkill, Audited: true},
		ResourceType{Name: ResourceCourseSkill, Audited: true},
		ResourceType{Name: ResourceUserSkill, Audited: true},
		ResourceType{
			Name:    ResourceEnrollment,
			Scope:   ScopeOwned,
			Audited: true,
			Actions: map[string]string{"enroll": "add_enrollment"},
		},
		ResourceType{
			Name:  ResourceSubModuleProgress,
			Scope: ScopeOwned,
			Columns: Columns{
				Owner: "(SELECT e.user_id FROM enrollments e WHERE e.id = enrollment_id)",
			},
		},
		ResourceType{Name: ResourcePayment, Scope: ScopeOwned, Audited: true},
		ResourceType{Name: ResourceAuditLog},
	)
}
