package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/models"
)

const imageCols = `id, post_id, name, filename, size, created_at`

func scanImage(s scanner) (*models.Image, error) {
	var img models.Image
	if err := s.Scan(&img.ID, &img.PostID, &img.Name, &img.Filename, &img.Size, &img.CreatedAt); err != nil {
		return nil, err
	}
	img.CreatedAt = img.CreatedAt.UTC()
	return &img, nil
}

// AddImage records an uploaded image. A post cannot hold two images with the
// same original filename.
func (db *DB) AddImage(ctx context.Context, img *models.Image) (*models.Image, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO images (post_id, name, filename, size, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, img.PostID, img.Name, img.Filename, img.Size, db.timestamp())
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("store: image %q on post %d: %w", img.Filename, img.PostID, apperr.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("store: insert image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.FindImage(ctx, id)
}

// FindImage loads one image row.
func (db *DB) FindImage(ctx context.Context, id int64) (*models.Image, error) {
	img, err := scanImage(db.conn.QueryRowContext(ctx, `SELECT `+imageCols+` FROM images WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("image", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: find image: %w", err)
	}
	return img, nil
}

// ListImages returns the images of a post in upload order.
func (db *DB) ListImages(ctx context.Context, postID int64) ([]*models.Image, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+imageCols+` FROM images WHERE post_id = ? ORDER BY id`, postID)
	if err != nil {
		return nil, fmt.Errorf("store: list images: %w", err)
	}
	defer rows.Close()

	var out []*models.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// ImageNameInUse reports whether any image row still references the stored
// object name. Content-addressed names can be shared between posts.
func (db *DB) ImageNameInUse(ctx context.Context, name string) (bool, error) {
	n, err := db.count(ctx, `SELECT count(*) FROM images WHERE name = ?`, name)
	return n > 0, err
}

// DeleteImage removes one image row.
func (db *DB) DeleteImage(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("image", id)
	}
	return nil
}

var imageSubtreeQueries = map[models.Kind]string{
	models.KindProject: `SELECT i.name FROM images i
		JOIN posts t ON t.id = i.post_id
		JOIN case_studies c ON c.id = t.case_study_id
		WHERE c.project_id = ?`,
	models.KindCaseStudy: `SELECT i.name FROM images i
		JOIN posts t ON t.id = i.post_id
		WHERE t.case_study_id = ?`,
	models.KindPost: `SELECT i.name FROM images i WHERE i.post_id = ?`,
}

// ImageNames returns the stored object names of every image owned, directly
// or through posts, by ref. Kinds that cannot own images return nil.
func (db *DB) ImageNames(ctx context.Context, ref models.Ref) ([]string, error) {
	q, ok := imageSubtreeQueries[ref.Kind]
	if !ok {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx, q, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("store: image names of %s: %w", ref, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
