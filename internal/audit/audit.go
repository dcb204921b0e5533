package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coursegrid/coursegrid/internal/auth"
)

// Action is what an entry records.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionLogin  Action = "LOGIN"
	ActionLogout Action = "LOGOUT"
)

func (a Action) isMutation() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

func (a Action) isAuthEvent() bool {
	return a == ActionLogin || a == ActionLogout
}

// ParseAction returns the Action named by s, or false if s names none.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionLogout:
		return a, true
	}
	return "", false
}

const maxReprLen = 200

// Entry is one row of the audit log. Entries are insert-only and keep no
// reference to the rows they describe, so they survive deletion of both the
// acting user and the resource.
type Entry struct {
	ID           uuid.UUID      `json:"id"`
	UserID       *uuid.UUID     `json:"user_id"`
	TenantID     *uuid.UUID     `json:"tenant_id"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	ResourceRepr string         `json:"resource_repr"`
	Details      map[string]any `json:"details"`
	OriginAddr   *string        `json:"origin_addr"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ScopeTenantID exposes the acting user's tenant to visibility checks.
func (e Entry) ScopeTenantID() string {
	if e.TenantID == nil {
		return ""
	}
	return e.TenantID.String()
}

// Record is a resource instance that can be audited. Records that also
// implement fmt.Stringer use it for the entry's display form.
type Record interface {
	AuditID() string
}

func reprOf(record Record) string {
	repr := record.AuditID()
	if s, ok := record.(fmt.Stringer); ok {
		repr = s.String()
	}
	if r := []rune(repr); len(r) > maxReprLen {
		repr = string(r[:maxReprLen])
	}
	return repr
}

// Recorder writes audit entries after a mutation or authentication event has
// committed. Implementations never return errors to the caller.
type Recorder interface {
	RecordMutation(ctx context.Context, action Action, resourceType string, record Record, actor *auth.Identity)
	RecordAuthEvent(ctx context.Context, action Action, actor *auth.Identity)
}

// NopRecorder discards all entries.
type NopRecorder struct{}

func (NopRecorder) RecordMutation(context.Context, Action, string, Record, *auth.Identity) {}
func (NopRecorder) RecordAuthEvent(context.Context, Action, *auth.Identity)                {}
func (NopRecorder) RecordLogin(context.Context, *auth.Identity)                            {}
func (NopRecorder) RecordLogout(context.Context, *auth.Identity)                           {}

var (
	_ Recorder           = NopRecorder{}
	_ auth.EventRecorder = NopRecorder{}
)

func parseUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
