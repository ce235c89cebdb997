package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/estatehub/internal/models"
)

// PutToken stores a pending stream token.
func (db *DB) PutToken(ctx context.Context, tok *models.StreamToken) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO stream_tokens (token, owner, kind, payload, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, tok.Token, tok.Owner, tok.Kind, tok.Payload, tok.ExpiresAt.UTC(), db.timestamp())
	if err != nil {
		return fmt.Errorf("store: put token: %w", err)
	}
	return nil
}

// TakeToken consumes owner's token: the row is deleted in the same
// transaction it is read in, so a token runs at most once. Expired tokens are
// removed and reported as not found; other tenants' tokens are left alone.
func (db *DB) TakeToken(ctx context.Context, token, owner string, now time.Time) (*models.StreamToken, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var tok models.StreamToken
	err = tx.QueryRowContext(ctx, `
		SELECT token, owner, kind, payload, expires_at, created_at
		FROM stream_tokens WHERE token = ? AND owner = ?
	`, token, owner).Scan(&tok.Token, &tok.Owner, &tok.Kind, &tok.Payload, &tok.ExpiresAt, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("stream token", token)
	}
	if err != nil {
		return nil, fmt.Errorf("store: take token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stream_tokens WHERE token = ?`, token); err != nil {
		return nil, fmt.Errorf("store: consume token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}

	tok.ExpiresAt = tok.ExpiresAt.UTC()
	tok.CreatedAt = tok.CreatedAt.UTC()
	if !now.Before(tok.ExpiresAt) {
		return nil, notFound("stream token", token)
	}
	return &tok, nil
}

// SweepTokens deletes tokens expired at now and returns how many went.
func (db *DB) SweepTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM stream_tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("store: sweep tokens: %w", err)
	}
	return res.RowsAffected()
}
