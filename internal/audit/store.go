package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

const entryColumns = "id, user_id, tenant_id, action, resource_type, resource_id, resource_repr, details, origin_addr, created_at"

// Store handles audit entry persistence.
type Store struct{}

// NewStore creates an audit Store.
func NewStore() *Store {
	return &Store{}
}

// Insert writes a single entry.
func (s *Store) Insert(ctx context.Context, db database.Querier, e Entry) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshaling details: %w", err)
	}

	_, err = db.Exec(ctx,
		`INSERT INTO audit_log (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.UserID, e.TenantID, string(e.Action), e.ResourceType, e.ResourceID,
		e.ResourceRepr, detailsJSON, e.OriginAddr, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// ListParams defines filters for querying audit entries. Visibility is the
// caller's visible set and is always applied first.
type ListParams struct {
	Visibility   rbac.Predicate
	Action       *Action
	ResourceType *string
	UserID       *uuid.UUID
	After        *time.Time
	Before       *time.Time
	Limit        int
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, db database.Querier, p ListParams) ([]Entry, error) {
	sql, args := buildListQuery(p)
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.TenantID, &action, &e.ResourceType, &e.ResourceID,
			&e.ResourceRepr, &details, &e.OriginAddr, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = Action(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decoding audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// buildListQuery constructs a parameterized SELECT for audit entries.
func buildListQuery(p ListParams) (string, []any) {
	visible, args := p.Visibility.Where(1)
	conditions := []string{visible}
	argN := len(args) + 1

	if p.Action != nil {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argN))
		args = append(args, string(*p.Action))
		argN++
	}
	if p.ResourceType != nil {
		conditions = append(conditions, fmt.Sprintf("resource_type = $%d", argN))
		args = append(args, *p.ResourceType)
		argN++
	}
	if p.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argN))
		args = append(args, *p.UserID)
		argN++
	}
	if p.After != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argN))
		args = append(args, *p.After)
		argN++
	}
	if p.Before != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argN))
		args = append(args, *p.Before)
		argN++
	}

	sql := fmt.Sprintf(
		`SELECT %s
		FROM audit_log
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d`,
		entryColumns, strings.Join(conditions, " AND "), argN,
	)
	args = append(args, p.Limit)

	return sql, args
}
