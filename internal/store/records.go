package store

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/starford/estatehub/internal/models"
)

// FindRecord loads any soft-deletable record by reference.
func (db *DB) FindRecord(ctx context.Context, ref models.Ref) (models.Record, error) {
	switch ref.Kind {
	case models.KindProject:
		return db.Projects().Find(ctx, ref.ID)
	case models.KindProperty:
		return db.Properties().Find(ctx, ref.ID)
	case models.KindCaseStudy:
		return db.CaseStudies().Find(ctx, ref.ID)
	case models.KindPost:
		return db.Posts().Find(ctx, ref.ID)
	}
	return nil, notFound(ref.Kind, ref.ID)
}

var ownerQueries = map[models.Kind]string{
	models.KindProject: `SELECT owner FROM projects WHERE id = ?`,
	models.KindProperty: `SELECT p.owner FROM properties x
		JOIN projects p ON p.id = x.project_id WHERE x.id = ?`,
	models.KindCaseStudy: `SELECT p.owner FROM case_studies c
		JOIN projects p ON p.id = c.project_id WHERE c.id = ?`,
	models.KindPost: `SELECT p.owner FROM posts t` + postOwnerJoin + ` WHERE t.id = ?`,
}

// OwnerOf returns the tenant that owns the root project of ref.
func (db *DB) OwnerOf(ctx context.Context, ref models.Ref) (string, error) {
	q, ok := ownerQueries[ref.Kind]
	if !ok {
		return "", notFound(ref.Kind, ref.ID)
	}
	var owner string
	err := db.conn.QueryRowContext(ctx, q, ref.ID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(ref.Kind, ref.ID)
	}
	if err != nil {
		return "", fmt.Errorf("store: owner of %s: %w", ref, err)
	}
	return owner, nil
}

// binQueries select (id, title, deleted_at) of binned rows per kind.
var binQueries = []struct {
	kind  models.Kind
	query string
}{
	{models.KindProject, `SELECT p.id, p.name, p.deleted_at FROM projects p
		WHERE p.owner = ? AND p.deleted_at IS NOT NULL`},
	{models.KindProperty, `SELECT x.id, x.title, x.deleted_at FROM properties x
		JOIN projects p ON p.id = x.project_id
		WHERE p.owner = ? AND x.deleted_at IS NOT NULL`},
	{models.KindCaseStudy, `SELECT c.id, c.title, c.deleted_at FROM case_studies c
		JOIN projects p ON p.id = c.project_id
		WHERE p.owner = ? AND c.deleted_at IS NOT NULL`},
	{models.KindPost, `SELECT t.id, t.platform || ': ' || substr(t.content, 1, 60), t.deleted_at FROM posts t` +
		postOwnerJoin + ` WHERE p.owner = ? AND t.deleted_at IS NOT NULL`},
}

// Bin lists every binned record of owner across kinds, newest first.
// Children of a binned parent are listed only if they were binned themselves.
func (db *DB) Bin(ctx context.Context, owner string) ([]models.BinItem, error) {
	var out []models.BinItem
	for _, bq := range binQueries {
		rows, err := db.conn.QueryContext(ctx, bq.query, owner)
		if err != nil {
			return nil, fmt.Errorf("store: bin %s: %w", bq.kind, err)
		}
		for rows.Next() {
			item := models.BinItem{Ref: models.Ref{Kind: bq.kind}}
			if err := rows.Scan(&item.Ref.ID, &item.Title, &item.DeletedAt); err != nil {
				rows.Close()
				return nil, err
			}
			item.DeletedAt = item.DeletedAt.UTC()
			out = append(out, item)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	slices.SortStableFunc(out, func(a, b models.BinItem) int {
		if c := b.DeletedAt.Compare(a.DeletedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Ref.String(), b.Ref.String())
	})
	return out, nil
}
