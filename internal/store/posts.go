package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/estatehub/internal/models"
)

const postCols = `t.id, t.case_study_id, t.platform, t.content, t.locale, t.scheduled_at, t.published, t.created_at, t.updated_at, t.deleted_at`

const postOwnerJoin = ` JOIN case_studies c ON c.id = t.case_study_id JOIN projects p ON p.id = c.project_id`

// Posts persists social posts.
type Posts struct{ db *DB }

// Posts returns the post repository.
func (db *DB) Posts() *Posts { return &Posts{db: db} }

func scanPost(s scanner, extra ...any) (*models.Post, error) {
	var p models.Post
	var scheduled, deleted sql.NullTime
	dest := []any{&p.ID, &p.CaseStudyID, &p.Platform, &p.Content, &p.Locale, &scheduled,
		&p.Published, &p.CreatedAt, &p.UpdatedAt, &deleted}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.ScheduledAt = timePtr(scheduled)
	p.DeletedAt = timePtr(deleted)
	return &p, nil
}

// Create inserts an active post under p.CaseStudyID.
func (r *Posts) Create(ctx context.Context, p *models.Post) (*models.Post, error) {
	id, err := insertPost(ctx, r.db.conn, p, r.db.timestamp())
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, id)
}

func insertPost(ctx context.Context, ex execer, p *models.Post, now time.Time) (int64, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT INTO posts (case_study_id, platform, content, locale, scheduled_at, published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.CaseStudyID, p.Platform, p.Content, p.Locale, nullable(p.ScheduledAt), p.Published, now, now)
	if err != nil {
		return 0, fmt.Errorf("store: insert post: %w", err)
	}
	return res.LastInsertId()
}

// Find loads a post in any state.
func (r *Posts) Find(ctx context.Context, id int64) (*models.Post, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+postCols+` FROM posts t WHERE t.id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(models.KindPost, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: find post: %w", err)
	}
	return p, nil
}

// Update writes the editable fields.
func (r *Posts) Update(ctx context.Context, p *models.Post) (*models.Post, error) {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE posts SET platform = ?, content = ?, locale = ?, scheduled_at = ?, published = ?, updated_at = ?
		WHERE id = ?
	`, p.Platform, p.Content, p.Locale, nullable(p.ScheduledAt), p.Published, r.db.timestamp(), p.ID)
	if err != nil {
		return nil, fmt.Errorf("store: update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound(models.KindPost, p.ID)
	}
	return r.Find(ctx, p.ID)
}

// SetDeletedAt bins (non-nil at) or restores (nil) a post.
func (r *Posts) SetDeletedAt(ctx context.Context, id int64, at *time.Time) (*models.Post, error) {
	if err := r.db.setDeletedAt(ctx, "posts", models.KindPost, id, at); err != nil {
		return nil, err
	}
	return r.Find(ctx, id)
}

// Delete purges a post and its images.
func (r *Posts) Delete(ctx context.Context, id int64) error {
	return r.db.deleteRow(ctx, "posts", models.KindPost, id)
}

// List returns posts, optionally of one case study, owned by f.Owner.
func (r *Posts) List(ctx context.Context, f Filter) ([]*models.Post, int, error) {
	from := ` FROM posts t` + postOwnerJoin
	var w where
	if f.Owner != "" {
		w.add("p.owner = ?", f.Owner)
	}
	if f.ParentID != 0 {
		w.add("t.case_study_id = ?", f.ParentID)
	}
	w.deleted("t.deleted_at", f.Deleted)

	total, err := r.db.count(ctx, `SELECT count(*)`+from+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := limitOffset(f.Limit, f.Offset)
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT `+postCols+from+w.String()+` ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?`,
		append(w.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list posts: %w", err)
	}
	defer rows.Close()

	var out []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
