package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/platform/middleware"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

// mockDB implements database.Querier for testing.
type mockDB struct {
	mu   sync.Mutex
	err  error
	sql  []string
	args [][]any
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return pgconn.CommandTag{}, m.err
	}
	m.sql = append(m.sql, sql)
	m.args = append(m.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return nil
}

func (m *mockDB) insertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sql)
}

func (m *mockDB) lastArgs() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.args[len(m.args)-1]
}

type countingObserver struct {
	ok, failed int
}

func (o *countingObserver) ObserveAuditWrite(ok bool) {
	if ok {
		o.ok++
	} else {
		o.failed++
	}
}

type courseStub struct {
	id   string
	name string
}

func (c courseStub) AuditID() string { return c.id }
func (c courseStub) String() string  { return c.name }

type bareRecord string

func (b bareRecord) AuditID() string { return string(b) }

var (
	tenantA = uuid.NewString()
	adminA  = &auth.Identity{UserID: uuid.NewString(), TenantID: tenantA, Email: "admin@a.test", RoleName: rbac.RoleTenantAdmin, Active: true}
	superAdmin = &auth.Identity{UserID: uuid.NewString(), Email: "root@platform.test", RoleName: rbac.RoleSuperAdmin, Active: true}
	userA   = &auth.Identity{UserID: uuid.NewString(), TenantID: tenantA, Email: "learner@a.test", RoleName: rbac.RoleTenantUser, Active: true}
	editorA = &auth.Identity{UserID: uuid.NewString(), TenantID: tenantA, Email: "ed@a.test", RoleName: "EDITOR", Active: true}
)

func newTestRecorder(db *mockDB, obs WriteObserver, logBuf *bytes.Buffer) *DBRecorder {
	cfg := RecorderConfig{Registry: rbac.DefaultRegistry(), Observer: obs}
	if logBuf != nil {
		cfg.Logger = slog.New(slog.NewTextHandler(logBuf, nil))
	}
	return NewDBRecorder(db, NewStore(), cfg)
}

// Insert args: id, user_id, tenant_id, action, resource_type, resource_id, resource_repr, details, origin_addr, created_at.
func TestRecordMutation_AdminActor(t *testing.T) {
	db := &mockDB{}
	obs := &countingObserver{}
	r := newTestRecorder(db, obs, nil)

	ctx := middleware.WithClientAddr(context.Background(), "203.0.113.7")
	r.RecordMutation(ctx, ActionCreate, rbac.ResourceCourse, courseStub{id: "c-1", name: "Go Basics"}, adminA)

	require.Equal(t, 1, db.insertCount())
	args := db.lastArgs()
	require.Len(t, args, 10)
	assert.Equal(t, adminA.UserID, args[1].(*uuid.UUID).String())
	assert.Equal(t, tenantA, args[2].(*uuid.UUID).String())
	assert.Equal(t, "CREATE", args[3])
	assert.Equal(t, "course", args[4])
	assert.Equal(t, "c-1", args[5])
	assert.Equal(t, "Go Basics", args[6])
	assert.JSONEq(t, `{}`, string(args[7].([]byte)))
	require.NotNil(t, args[8])
	assert.Equal(t, "203.0.113.7", *args[8].(*string))
	assert.Equal(t, 1, obs.ok)
}

func TestRecordMutation_ActorFromContext(t *testing.T) {
	db := &mockDB{}
	r := newTestRecorder(db, nil, nil)

	ctx := auth.WithIdentity(context.Background(), superAdmin)
	r.RecordMutation(ctx, ActionDelete, rbac.ResourceTenant, bareRecord("t-9"), nil)

	require.Equal(t, 1, db.insertCount())
	args := db.lastArgs()
	assert.Equal(t, superAdmin.UserID, args[1].(*uuid.UUID).String())
	assert.Nil(t, args[2].(*uuid.UUID), "platform actor has no tenant")
	assert.Equal(t, "DELETE", args[3])
	assert.Equal(t, "t-9", args[6], "repr falls back to the id")
}

func TestRecordMutation_NoActor(t *testing.T) {
	db := &mockDB{}
	r := newTestRecorder(db, nil, nil)

	r.RecordMutation(context.Background(), ActionCreate, rbac.ResourceUser, bareRecord("u-1"), nil)

	require.Equal(t, 1, db.insertCount())
	args := db.lastArgs()
	assert.Nil(t, args[1].(*uuid.UUID))
	assert.Nil(t, args[8].(*string))
}

func TestRecordMutation_DroppedForNonAdmins(t *testing.T) {
	db := &mockDB{}
	r := newTestRecorder(db, nil, nil)

	for _, actor := range []*auth.Identity{userA, editorA} {
		r.RecordMutation(context.Background(), ActionCreate, rbac.ResourceEnrollment, bareRecord("e-1"), actor)
	}
	assert.Zero(t, db.insertCount())
}

func TestRecordMutation_UnauditedType(t *testing.T) {
	db := &mockDB{}
	r := newTestRecorder(db, nil, nil)

	r.RecordMutation(context.Background(), ActionUpdate, rbac.ResourceRole, bareRecord("r-1"), superAdmin)
	r.RecordMutation(context.Background(), ActionUpdate, rbac.ResourceSubModuleProgress, bareRecord("p-1"), superAdmin)
	r.RecordMutation(context.Background(), ActionUpdate, "unknown", bareRecord("x-1"), superAdmin)
	assert.Zero(t, db.insertCount())
}

func TestRecordMutation_RejectsAuthActions(t *testing.T) {
	db := &mockDB{}
	var logs bytes.Buffer
	r := newTestRecorder(db, nil, &logs)

	r.RecordMutation(context.Background(), ActionLogin, rbac.ResourceUser, bareRecord("u-1"), superAdmin)
	assert.Zero(t, db.insertCount())
	assert.Contains(t, logs.String(), "not a mutation action")
}

func TestRecordMutation_TruncatesRepr(t *testing.T) {
	db := &mockDB{}
	r := newTestRecorder(db, nil, nil)

	long := strings.Repeat("é", maxReprLen+50)
	r.RecordMutation(context.Background(), ActionCreate, rbac.ResourceCourse, courseStub{id: "c-2", name: long}, adminA)

	require.Equal(t, 1, db.insertCount())
	assert.Len(t, []rune(db.lastArgs()[6].(string)), maxReprLen)
}

func TestRecordMutation_FailureIsSwallowed(t *testing.T) {
	db := &mockDB{err: errors.New("connection reset")}
	obs := &countingObserver{}
	var logs bytes.Buffer
	r := newTestRecorder(db, obs, &logs)

	assert.NotPanics(t, func() {
		r.RecordMutation(context.Background(), ActionCreate, rbac.ResourceCourse, bareRecord("c-1"), adminA)
	})
	assert.Equal(t, 1, obs.failed)
	assert.Contains(t, logs.String(), "audit write failed")
	assert.Contains(t, logs.String(), "connection reset")
}

func TestRecordMutation_SurvivesCanceledContext(t *testing.T) {
	db := &mockDB{}
	r := newTestRecorder(db, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.RecordMutation(ctx, ActionDelete, rbac.ResourceCourse, bareRecord("c-1"), adminA)
	assert.Equal(t, 1, db.insertCount())
}

func TestRecordAuthEvents(t *testing.T) {
	db := &mockDB{}
	r := newTestRecorder(db, nil, nil)
	ctx := middleware.WithClientAddr(context.Background(), "198.51.100.2")

	r.RecordLogin(ctx, adminA)
	require.Equal(t, 1, db.insertCount())
	args := db.lastArgs()
	assert.Equal(t, "LOGIN", args[3])
	assert.Equal(t, "user", args[4])
	assert.Equal(t, adminA.UserID, args[5])
	assert.Equal(t, adminA.Email, args[6])

	r.RecordLogout(ctx, superAdmin)
	require.Equal(t, 2, db.insertCount())
	assert.Equal(t, "LOGOUT", db.lastArgs()[3])

	r.RecordLogin(ctx, userA)
	r.RecordLogout(ctx, nil)
	r.RecordAuthEvent(ctx, ActionCreate, adminA)
	assert.Equal(t, 2, db.insertCount())
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	r.RecordMutation(context.Background(), ActionCreate, rbac.ResourceCourse, bareRecord("c-1"), adminA)
	r.RecordAuthEvent(context.Background(), ActionLogin, adminA)
}
