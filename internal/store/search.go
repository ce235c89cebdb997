package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/estatehub/internal/models"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search performs a LIKE search over active project names, property titles
// and case study titles of owner.
func (db *DB) Search(ctx context.Context, owner, query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)
	like := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT 'project', p.id, p.name, substr(p.description, 1, 200)
		FROM projects p
		WHERE p.owner = ? AND p.deleted_at IS NULL
		  AND (p.name LIKE ? ESCAPE '\' OR p.location LIKE ? ESCAPE '\')
		UNION ALL
		SELECT 'property', x.id, x.title, substr(x.description, 1, 200)
		FROM properties x JOIN projects p ON p.id = x.project_id
		WHERE p.owner = ? AND x.deleted_at IS NULL AND p.deleted_at IS NULL
		  AND x.title LIKE ? ESCAPE '\'
		UNION ALL
		SELECT 'case_study', c.id, c.title, substr(c.content, 1, 200)
		FROM case_studies c JOIN projects p ON p.id = c.project_id
		WHERE p.owner = ? AND c.deleted_at IS NULL AND p.deleted_at IS NULL
		  AND c.title LIKE ? ESCAPE '\'
		LIMIT ?
	`, owner, like, like, owner, like, owner, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.Ref.Kind, &h.Ref.ID, &h.Title, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
