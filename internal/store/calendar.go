package store

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/estatehub/internal/models"
)

// Calendar returns posts of owner scheduled in [from, to) whose post, case
// study and project are all active, ordered by schedule.
func (db *DB) Calendar(ctx context.Context, owner string, from, to time.Time) ([]models.CalendarEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+postCols+`, p.id, p.name, c.title
		FROM posts t`+postOwnerJoin+`
		WHERE p.owner = ?
		  AND t.scheduled_at IS NOT NULL AND t.scheduled_at >= ? AND t.scheduled_at < ?
		  AND t.deleted_at IS NULL AND c.deleted_at IS NULL AND p.deleted_at IS NULL
		ORDER BY t.scheduled_at, t.id
	`, owner, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: calendar: %w", err)
	}
	defer rows.Close()

	var out []models.CalendarEntry
	for rows.Next() {
		var e models.CalendarEntry
		post, err := scanPost(rows, &e.ProjectID, &e.ProjectName, &e.CaseStudy)
		if err != nil {
			return nil, err
		}
		e.Post = *post
		out = append(out, e)
	}
	return out, rows.Err()
}
