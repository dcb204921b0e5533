package course

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/coursegrid/coursegrid/internal/platform/database"
	"github.com/coursegrid/coursegrid/internal/rbac"
)

const courseColumns = "id, tenant_id, name, slug, description, status, price_cents, is_free, created_by, created_at, updated_at"

// Store handles course database operations.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

func scanCourse(row pgx.Row) (*Course, error) {
	var (
		c         Course
		createdBy *string
	)
	if err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Slug, &c.Description, &c.Status,
		&c.PriceCents, &c.IsFree, &createdBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if createdBy != nil {
		c.CreatedBy = *createdBy
	}
	return &c, nil
}

// NewCourse holds the fields of a course to create. Courses start as drafts.
// CreatedBy is dropped when it names no stored user, as for the dev identity.
type NewCourse struct {
	TenantID    string
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	IsFree      bool
	CreatedBy   string
}

func (s *Store) Create(ctx context.Context, q database.Querier, nc NewCourse) (*Course, error) {
	var createdBy *string
	if nc.CreatedBy != "" {
		createdBy = &nc.CreatedBy
	}
	c, err := scanCourse(q.QueryRow(ctx,
		`INSERT INTO courses (tenant_id, name, slug, description, price_cents, is_free, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, (SELECT id FROM users WHERE id = $7::uuid))
		 RETURNING `+courseColumns,
		nc.TenantID, nc.Name, nc.Slug, nc.Description, nc.PriceCents, nc.IsFree, createdBy,
	))
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return nil, fmt.Errorf("%w: %s", ErrSlugTaken, nc.Slug)
		case database.IsForeignKeyViolation(err):
			return nil, ErrUnknownTenant
		}
		return nil, fmt.Errorf("creating course: %w", err)
	}
	return c, nil
}

// GetByID retrieves a course if it lies inside the visible set.
func (s *Store) GetByID(ctx context.Context, q database.Querier, id string, visible rbac.Predicate) (*Course, error) {
	where, args := visible.Where(2)
	c, err := scanCourse(q.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1 AND `+where,
		append([]any{id}, args...)...,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("getting course: %w", err)
	}
	return c, nil
}

// ListFilter narrows a listing beyond the visible set.
type ListFilter struct {
	// Name matches case-insensitively anywhere in the course name.
	Name   string
	Status string
}

// buildListQuery renders the visible set first so filters can only narrow it.
func buildListQuery(visible rbac.Predicate, f ListFilter) (string, []any) {
	where, args := visible.Where(1)
	conditions := []string{where}
	argN := len(args) + 1

	if f.Name != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argN))
		args = append(args, "%"+escapeLike(f.Name)+"%")
		argN++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argN))
		args = append(args, f.Status)
	}

	return `SELECT ` + courseColumns + ` FROM courses WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at`, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *Store) List(ctx context.Context, q database.Querier, visible rbac.Predicate, f ListFilter) ([]Course, error) {
	sql, args := buildListQuery(visible, f)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	defer rows.Close()

	courses := []Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning course: %w", err)
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}

// SetStatus moves a course to status.
func (s *Store) SetStatus(ctx context.Context, q database.Querier, id, status string) (*Course, error) {
	c, err := scanCourse(q.QueryRow(ctx,
		`UPDATE courses SET status = $2, updated_at = now() WHERE id = $1
		 RETURNING `+courseColumns,
		id, status,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("updating course status: %w", err)
	}
	return c, nil
}

func (s *Store) Delete(ctx context.Context, q database.Querier, id string) error {
	tag, err := q.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCourseNotFound
	}
	return nil
}
