package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coursegrid/coursegrid/internal/auth"
	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/platform/middleware"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

const defaultWriteTimeout = 5 * time.Second

// WriteObserver is notified of every audit write attempt.
type WriteObserver interface {
	ObserveAuditWrite(ok bool)
}

// RecorderConfig configures a DBRecorder.
type RecorderConfig struct {
	// Registry decides which resource types are audited.
	Registry *rbac.Registry
	// WriteTimeout bounds a single insert. Defaults to 5s.
	WriteTimeout time.Duration
	Observer     WriteObserver
	Logger       *slog.Logger
}

// DBRecorder writes one row per event, synchronously, on the caller's
// goroutine. The write is detached from the caller's cancellation so a client
// disconnecting after the mutation committed does not lose the entry.
type DBRecorder struct {
	db       database.Querier
	store    *Store
	registry *rbac.Registry
	timeout  time.Duration
	observer WriteObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewDBRecorder creates a recorder writing through db.
func NewDBRecorder(db database.Querier, store *Store, cfg RecorderConfig) *DBRecorder {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = rbac.DefaultRegistry()
	}
	return &DBRecorder{
		db:       db,
		store:    store,
		registry: cfg.Registry,
		timeout:  cfg.WriteTimeout,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

var (
	_ Recorder           = (*DBRecorder)(nil)
	_ auth.EventRecorder = (*DBRecorder)(nil)
)

// RecordMutation records a committed create, update or delete of record.
// Unaudited resource types are ignored. When actor is nil the identity bound
// to ctx is used; with neither, the entry is written without an actor.
func (r *DBRecorder) RecordMutation(ctx context.Context, action Action, resourceType string, record Record, actor *auth.Identity) {
	if !action.isMutation() {
		r.logger.WarnContext(ctx, "audit: not a mutation action", "action", action, "resource_type", resourceType)
		return
	}
	if record == nil || !r.registry.IsAudited(resourceType) {
		return
	}
	if actor == nil {
		actor = auth.GetIdentity(ctx)
	}
	if !recordsFor(actor) {
		return
	}

	r.write(ctx, r.newEntry(ctx, action, resourceType, record.AuditID(), reprOf(record), actor))
}

// RecordAuthEvent records a LOGIN or LOGOUT performed by actor.
func (r *DBRecorder) RecordAuthEvent(ctx context.Context, action Action, actor *auth.Identity) {
	if !action.isAuthEvent() {
		r.logger.WarnContext(ctx, "audit: not an auth action", "action", action)
		return
	}
	if actor == nil {
		actor = auth.GetIdentity(ctx)
	}
	if actor == nil || !recordsFor(actor) {
		return
	}

	r.write(ctx, r.newEntry(ctx, action, rbac.ResourceUser, actor.UserID, actor.Email, actor))
}

func (r *DBRecorder) RecordLogin(ctx context.Context, actor *auth.Identity) {
	r.RecordAuthEvent(ctx, ActionLogin, actor)
}

func (r *DBRecorder) RecordLogout(ctx context.Context, actor *auth.Identity) {
	r.RecordAuthEvent(ctx, ActionLogout, actor)
}

// recordsFor reports whether entries by actor are kept. Only administrators
// are audited; system-initiated changes (no actor) always are.
func recordsFor(actor *auth.Identity) bool {
	if actor == nil {
		return true
	}
	switch rbac.KindOf(actor.RoleName) {
	case rbac.KindSuperAdmin, rbac.KindTenantAdmin:
		return true
	}
	return false
}

func (r *DBRecorder) newEntry(ctx context.Context, action Action, resourceType, resourceID, repr string, actor *auth.Identity) Entry {
	e := Entry{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ResourceRepr: repr,
		Details:      map[string]any{},
		CreatedAt:    r.now().UTC(),
	}
	if actor != nil {
		e.UserID = parseUUID(actor.UserID)
		e.TenantID = parseUUID(actor.TenantID)
	}
	if addr := middleware.GetClientAddr(ctx); addr != "" {
		e.OriginAddr = &addr
	}
	return e
}

func (r *DBRecorder) write(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	err := r.store.Insert(ctx, r.db, e)
	if r.observer != nil {
		r.observer.ObserveAuditWrite(err == nil)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "audit write failed",
			"error", err,
			"action", e.Action,
			"resource_type", e.ResourceType,
			"resource_id", e.ResourceID,
		)
	}
}
