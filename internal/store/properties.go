package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/estatehub/internal/models"
)

const propertyCols = `x.id, x.project_id, x.title, x.description, x.price, x.currency, x.area_sqm, x.bedrooms, x.bathrooms, x.created_at, x.updated_at, x.deleted_at`

// Properties persists properties.
type Properties struct{ db *DB }

// Properties returns the property repository.
func (db *DB) Properties() *Properties { return &Properties{db: db} }

func scanProperty(s scanner) (*models.Property, error) {
	var p models.Property
	var deleted sql.NullTime
	if err := s.Scan(&p.ID, &p.ProjectID, &p.Title, &p.Description, &p.Price, &p.Currency,
		&p.AreaSqm, &p.Bedrooms, &p.Bathrooms, &p.CreatedAt, &p.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.DeletedAt = timePtr(deleted)
	return &p, nil
}

// Create inserts an active property under p.ProjectID.
func (r *Properties) Create(ctx context.Context, p *models.Property) (*models.Property, error) {
	now := r.db.timestamp()
	res, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO properties (project_id, title, description, price, currency, area_sqm, bedrooms, bathrooms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ProjectID, p.Title, p.Description, p.Price, p.Currency, p.AreaSqm, p.Bedrooms, p.Bathrooms, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: insert property: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, id)
}

// Find loads a property in any state.
func (r *Properties) Find(ctx context.Context, id int64) (*models.Property, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT `+propertyCols+` FROM properties x WHERE x.id = ?`, id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(models.KindProperty, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: find property: %w", err)
	}
	return p, nil
}

// Update writes the editable fields.
func (r *Properties) Update(ctx context.Context, p *models.Property) (*models.Property, error) {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE properties SET title = ?, description = ?, price = ?, currency = ?, area_sqm = ?,
			bedrooms = ?, bathrooms = ?, updated_at = ?
		WHERE id = ?
	`, p.Title, p.Description, p.Price, p.Currency, p.AreaSqm, p.Bedrooms, p.Bathrooms, r.db.timestamp(), p.ID)
	if err != nil {
		return nil, fmt.Errorf("store: update property: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound(models.KindProperty, p.ID)
	}
	return r.Find(ctx, p.ID)
}

// SetDeletedAt bins (non-nil at) or restores (nil) a property.
func (r *Properties) SetDeletedAt(ctx context.Context, id int64, at *time.Time) (*models.Property, error) {
	if err := r.db.setDeletedAt(ctx, "properties", models.KindProperty, id, at); err != nil {
		return nil, err
	}
	return r.Find(ctx, id)
}

// Delete purges a property.
func (r *Properties) Delete(ctx context.Context, id int64) error {
	return r.db.deleteRow(ctx, "properties", models.KindProperty, id)
}

// List returns properties, optionally of one project, owned by f.Owner.
func (r *Properties) List(ctx context.Context, f Filter) ([]*models.Property, int, error) {
	from := ` FROM properties x JOIN projects p ON p.id = x.project_id`
	var w where
	if f.Owner != "" {
		w.add("p.owner = ?", f.Owner)
	}
	if f.ParentID != 0 {
		w.add("x.project_id = ?", f.ParentID)
	}
	w.deleted("x.deleted_at", f.Deleted)

	total, err := r.db.count(ctx, `SELECT count(*)`+from+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := limitOffset(f.Limit, f.Offset)
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT `+propertyCols+from+w.String()+` ORDER BY x.created_at DESC, x.id DESC LIMIT ? OFFSET ?`,
		append(w.args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list properties: %w", err)
	}
	defer rows.Close()

	var out []*models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
