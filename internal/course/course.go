// Package course serves courses, the published-content resource. Learners
// see published courses of their tenant; editors and admins see drafts too.
package course

import (
	"errors"
	"time"

	"github.com/coursegrid/coursegrid/internal/rbac"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrSlugTaken      = errors.New("course slug already in use in tenant")
	ErrUnknownTenant  = errors.New("tenant does not exist")
	ErrTenantRequired = errors.New("tenant_id is required for platform-level actors")
	ErrForeignTenant  = errors.New("only a super admin may place courses in a named tenant")
)

const (
	StatusDraft     = "DRAFT"
	StatusPublished = rbac.StatusPublished
	StatusArchived  = "ARCHIVED"
)

type Course struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	PriceCents  int64     `json:"price_cents"`
	IsFree      bool      `json:"is_free"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Course) ScopeTenantID() string { return c.TenantID }
func (c *Course) IsPublished() bool     { return c.Status == StatusPublished }
func (c *Course) AuditID() string       { return c.ID }
func (c *Course) String() string        { return c.Name }
