package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/estatehub/internal/models"
)

const projectCols = `p.id, p.owner, p.name, p.description, p.location, p.created_at, p.updated_at, p.deleted_at`

// Projects persists projects.
type Projects struct{ db *DB }

// Projects returns the project repository.
func (db *DB) Projects() *Projects { return &Projects{db: db} }

func scanProject(s scanner) (*models.Project, error) {
	var p models.Project
	var deleted sql.NullTime
	if err := s.Scan(&p.ID, &p.Owner, &p.Name, &p.Description, &p.Location, &p.CreatedAt, &p.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.DeletedAt = timePtr(deleted)
	return &p, nil
}

// Create inserts an active project.
func (r *Projects) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	now := r.db.timestamp()
	res, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO projects (owner, name, description, location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Owner, p.Name, p.Description, p.Location, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, id)
}

// Find loads a project in any state.
func (r *Projects) Find(ctx context.Context, id int64) (*models.Project, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects p WHERE p.id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(models.KindProject, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: find project: %w", err)
	}
	return p, nil
}

// Update writes the editable fields.
func (r *Projects) Update(ctx context.Context, p *models.Project) (*models.Project, error) {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE projects SET name = ?, description = ?, location = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Description, p.Location, r.db.timestamp(), p.ID)
	if err != nil {
		return nil, fmt.Errorf("store: update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound(models.KindProject, p.ID)
	}
	return r.Find(ctx, p.ID)
}

// SetDeletedAt bins (non-nil at) or restores (nil) a project.
func (r *Projects) SetDeletedAt(ctx context.Context, id int64, at *time.Time) (*models.Project, error) {
	if err := r.db.setDeletedAt(ctx, "projects", models.KindProject, id, at); err != nil {
		return nil, err
	}
	return r.Find(ctx, id)
}

// Delete purges a project with its properties, case studies, posts and images.
func (r *Projects) Delete(ctx context.Context, id int64) error {
	return r.db.deleteRow(ctx, "projects", models.KindProject, id)
}

// List returns projects of f.Owner and the total matching count.
func (r *Projects) List(ctx context.Context, f Filter) ([]*models.Project, int, error) {
	var w where
	if f.Owner != "" {
		w.add("p.owner = ?", f.Owner)
	}
	w.deleted("p.deleted_at", f.Deleted)

	total, err := r.db.count(ctx, `SELECT count(*) FROM projects p`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := limitOffset(f.Limit, f.Offset)
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT `+projectCols+` FROM projects p`+w.String()+` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`,
		append(w.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var out []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
