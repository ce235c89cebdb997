package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/estatehub/internal/models"
)

const caseStudyCols = `c.id, c.project_id, c.title, c.content, c.audience, c.created_at, c.updated_at, c.deleted_at`

// CaseStudies persists case studies.
type CaseStudies struct{ db *DB }

// CaseStudies returns the case study repository.
func (db *DB) CaseStudies() *CaseStudies { return &CaseStudies{db: db} }

func scanCaseStudy(s scanner) (*models.CaseStudy, error) {
	var c models.CaseStudy
	var deleted sql.NullTime
	if err := s.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Content, &c.Audience, &c.CreatedAt, &c.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.DeletedAt = timePtr(deleted)
	return &c, nil
}

// Create inserts an active case study under c.ProjectID.
func (r *CaseStudies) Create(ctx context.Context, c *models.CaseStudy) (*models.CaseStudy, error) {
	id, err := insertCaseStudy(ctx, r.db.conn, c, r.db.timestamp())
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, id)
}

// CreateWithPosts inserts c and posts under it in one transaction. Nothing
// is written when any insert fails.
func (r *CaseStudies) CreateWithPosts(ctx context.Context, c *models.CaseStudy, posts []*models.Post) (*models.CaseStudy, []*models.Post, error) {
	var csID int64
	postIDs := make([]int64, 0, len(posts))
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		now := r.db.timestamp()
		var err error
		if csID, err = insertCaseStudy(ctx, tx, c, now); err != nil {
			return err
		}
		for _, p := range posts {
			p.CaseStudyID = csID
			id, err := insertPost(ctx, tx, p, now)
			if err != nil {
				return err
			}
			postIDs = append(postIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	created, err := r.Find(ctx, csID)
	if err != nil {
		return nil, nil, err
	}
	out := make([]*models.Post, 0, len(postIDs))
	for _, id := range postIDs {
		p, err := r.db.Posts().Find(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, p)
	}
	return created, out, nil
}

func insertCaseStudy(ctx context.Context, ex execer, c *models.CaseStudy, now time.Time) (int64, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT INTO case_studies (project_id, title, content, audience, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ProjectID, c.Title, c.Content, c.Audience, now, now)
	if err != nil {
		return 0, fmt.Errorf("store: insert case study: %w", err)
	}
	return res.LastInsertId()
}

// Find loads a case study in any state.
func (r *CaseStudies) Find(ctx context.Context, id int64) (*models.CaseStudy, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+caseStudyCols+` FROM case_studies c WHERE c.id = ?`, id)
	c, err := scanCaseStudy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(models.KindCaseStudy, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: find case study: %w", err)
	}
	return c, nil
}

// Update writes the editable fields.
func (r *CaseStudies) Update(ctx context.Context, c *models.CaseStudy) (*models.CaseStudy, error) {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE case_studies SET title = ?, content = ?, audience = ?, updated_at = ?
		WHERE id = ?
	`, c.Title, c.Content, c.Audience, r.db.timestamp(), c.ID)
	if err != nil {
		return nil, fmt.Errorf("store: update case study: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound(models.KindCaseStudy, c.ID)
	}
	return r.Find(ctx, c.ID)
}

// SetDeletedAt bins (non-nil at) or restores (nil) a case study.
func (r *CaseStudies) SetDeletedAt(ctx context.Context, id int64, at *time.Time) (*models.CaseStudy, error) {
	if err := r.db.setDeletedAt(ctx, "case_studies", models.KindCaseStudy, id, at); err != nil {
		return nil, err
	}
	return r.Find(ctx, id)
}

// Delete purges a case study and its posts.
func (r *CaseStudies) Delete(ctx context.Context, id int64) error {
	return r.db.deleteRow(ctx, "case_studies", models.KindCaseStudy, id)
}

// List returns case studies, optionally of one project, owned by f.Owner.
func (r *CaseStudies) List(ctx context.Context, f Filter) ([]*models.CaseStudy, int, error) {
	from := ` FROM case_studies c JOIN projects p ON p.id = c.project_id`
	var w where
	if f.Owner != "" {
		w.add("p.owner = ?", f.Owner)
	}
	if f.ParentID != 0 {
		w.add("c.project_id = ?", f.ParentID)
	}
	w.deleted("c.deleted_at", f.Deleted)

	total, err := r.db.count(ctx, `SELECT count(*)`+from+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := limitOffset(f.Limit, f.Offset)
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT `+caseStudyCols+from+w.String()+` ORDER BY c.created_at DESC, c.id DESC LIMIT ? OFFSET ?`,
		append(w.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list case studies: %w", err)
	}
	defer rows.Close()

	var out []*models.CaseStudy
	for rows.Next() {
		c, err := scanCaseStudy(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}
