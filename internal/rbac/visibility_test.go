package rbac_test

import (
	"testing"

	"github.com/coursegrid/coursegrid/internal/rbac"
	"github.com/stretchr/testify/assert"
)

func TestVisibleSet_NoActor(t *testing.T) {
	eval := newEvaluator()

	p := eval.VisibleSet(nil, "course")

	assert.True(t, p.Empty)
	assert.False(t, p.Matches(courseRecord{tenantID: "t1", published: true}))
	clause, args := p.Where(1)
	assert.Equal(t, "FALSE", clause)
	assert.Empty(t, args)
}

func TestVisibleSet_SuperAdmin(t *testing.T) {
	eval := newEvaluator()

	p := eval.VisibleSet(actor("root", "", rbac.RoleSuperAdmin), "course")

	assert.True(t, p.Unrestricted)
	assert.True(t, p.Matches(courseRecord{tenantID: "t7"}))
	clause, _ := p.Where(1)
	assert.Equal(t, "TRUE", clause)
}

func TestVisibleSet_TenantAdminSeesWholeTenant(t *testing.T) {
	eval := newEvaluator()
	admin := actor("a1", "t1", rbac.RoleTenantAdmin)

	for _, rt := range []string{"course", "enrollment", "catalogue", "payment", "user"} {
		p := eval.VisibleSet(admin, rt)
		assert.True(t, p.TenantBound, rt)
		assert.False(t, p.PublishedOnly, rt)
		assert.Empty(t, p.OwnerID, rt)
		assert.False(t, p.ActiveOnly, rt)
	}
}

func TestVisibleSet_PublishedContent(t *testing.T) {
	eval := newEvaluator()
	learner := actor("u1", "t1", rbac.RoleTenantUser)

	p := eval.VisibleSet(learner, "course")

	assert.True(t, p.Matches(courseRecord{tenantID: "t1", published: true}))
	assert.False(t, p.Matches(courseRecord{tenantID: "t1", published: false}))
	assert.False(t, p.Matches(courseRecord{tenantID: "t2", published: true}))

	clause, args := p.Where(3)
	assert.Equal(t, "tenant_id = $3 AND status = $4", clause)
	assert.Equal(t, []any{"t1", "PUBLISHED"}, args)
}

func TestVisibleSet_ChangePermissionLiftsNarrowing(t *testing.T) {
	eval := newEvaluator()
	editor := actor("u1", "t1", "EDITOR")

	p := eval.VisibleSet(editor, "course")

	assert.True(t, p.Matches(courseRecord{tenantID: "t1", published: false}))
	assert.False(t, p.Matches(courseRecord{tenantID: "t2", published: true}))
	clause, args := p.Where(1)
	assert.Equal(t, "tenant_id = $1", clause)
	assert.Equal(t, []any{"t1"}, args)
}

func TestVisibleSet_Owned(t *testing.T) {
	eval := newEvaluator()
	learner := actor("u1", "t1", rbac.RoleTenantUser)

	p := eval.VisibleSet(learner, "enrollment")

	assert.True(t, p.Matches(enrollmentRecord{tenantID: "t1", userID: "u1"}))
	assert.False(t, p.Matches(enrollmentRecord{tenantID: "t1", userID: "u2"}))
	assert.False(t, p.Matches(enrollmentRecord{tenantID: "t2", userID: "u1"}))
	assert.False(t, p.Matches(courseRecord{tenantID: "t1"}), "records without an owner never match")

	clause, args := p.Where(1)
	assert.Equal(t, "tenant_id = $1 AND user_id = $2", clause)
	assert.Equal(t, []any{"t1", "u1"}, args)
}

func TestVisibleSet_UsersSeeThemselves(t *testing.T) {
	eval := newEvaluator()

	clause, args := eval.VisibleSet(actor("u1", "t1", rbac.RoleTenantUser), "user").Where(1)

	assert.Equal(t, "tenant_id = $1 AND id = $2", clause)
	assert.Equal(t, []any{"t1", "u1"}, args)
}

func TestVisibleSet_ProgressOwnedThroughEnrollment(t *testing.T) {
	eval := newEvaluator()

	clause, _ := eval.VisibleSet(actor("u1", "t1", "VIEWER"), "submoduleprogress").Where(1)

	assert.Equal(t, "tenant_id = $1 AND (SELECT e.user_id FROM enrollments e WHERE e.id = enrollment_id) = $2", clause)
}

func TestVisibleSet_Active(t *testing.T) {
	eval := newEvaluator()
	learner := actor("u1", "t1", rbac.RoleTenantUser)

	p := eval.VisibleSet(learner, "catalogue")

	assert.True(t, p.Matches(catalogueRecord{tenantID: "t1", active: true}))
	assert.False(t, p.Matches(catalogueRecord{tenantID: "t1", active: false}))
	clause, args := p.Where(1)
	assert.Equal(t, "tenant_id = $1 AND is_active = TRUE", clause)
	assert.Equal(t, []any{"t1"}, args)
}

func TestVisibleSet_BaseOnlyTypes(t *testing.T) {
	eval := newEvaluator()
	learner := actor("u1", "t1", rbac.RoleTenantUser)

	for _, rt := range []string{"module", "skill", "auditlog", "spaceship"} {
		clause, args := eval.VisibleSet(learner, rt).Where(1)
		assert.Equal(t, "tenant_id = $1", clause, rt)
		assert.Equal(t, []any{"t1"}, args, rt)
	}
}

func TestVisibleSet_TenantEntity(t *testing.T) {
	eval := newEvaluator()
	p := eval.VisibleSet(actor("u1", "t1", rbac.RoleTenantAdmin), "tenant")

	assert.True(t, p.Matches(tenantRecord{id: "t1"}))
	assert.False(t, p.Matches(tenantRecord{id: "t2"}))
	clause, _ := p.Where(1)
	assert.Equal(t, "id = $1", clause)
}

func TestVisibleSet_GlobalTypes(t *testing.T) {
	eval := newEvaluator()

	p := eval.VisibleSet(actor("u1", "t1", rbac.RoleTenantUser), "role")
	assert.True(t, p.Unrestricted)
}

func TestVisibleSet_PlatformLevelActor(t *testing.T) {
	eval := newEvaluator()

	p := eval.VisibleSet(actor("ops", "", "EDITOR"), "course")

	clause, args := p.Where(1)
	assert.Equal(t, "tenant_id IS NULL", clause)
	assert.Empty(t, args)
	assert.True(t, p.Matches(courseRecord{}))
	assert.False(t, p.Matches(courseRecord{tenantID: "t1"}))
}

func TestVisibleSet_UntenantedRecordsNeverMatchTenantPredicate(t *testing.T) {
	eval := newEvaluator()

	assert.False(t, eval.VisibleSet(actor("u1", "t1", rbac.RoleTenantAdmin), "module").Matches(untenanted{}))
}

func TestPredicate_ZeroValueMatchesNothing(t *testing.T) {
	var p rbac.Predicate

	assert.False(t, p.Matches(courseRecord{tenantID: "t2", published: true}))
	assert.False(t, p.Matches(untenanted{}))
	clause, args := p.Where(1)
	assert.Equal(t, "FALSE", clause)
	assert.Empty(t, args)

	narrowed := rbac.Predicate{OwnerID: "u1", PublishedOnly: true}
	assert.False(t, narrowed.Matches(courseRecord{tenantID: "t1", published: true}))
	clause, _ = narrowed.Where(1)
	assert.Equal(t, "FALSE", clause)
}
