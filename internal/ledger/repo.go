package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yourview/yourview/internal/apperr"
	"github.com/yourview/yourview/internal/models"
)

// Store defines the ledger operations used by the upload pipeline.
type Store interface {
	Record(ctx context.Context, u models.Upload) error
	Get(ctx context.Context, key string) (*models.Upload, error)
	List(ctx context.Context, limit, offset int) ([]models.Upload, int, error)
	Delete(ctx context.Context, key string) error
}

var _ Store = (*DB)(nil)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Record inserts or replaces the row for u.Key.
func (db *DB) Record(ctx context.Context, u models.Upload) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO uploads (key, content_type, size, etag, original_filename, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content_type      = excluded.content_type,
			size              = excluded.size,
			etag              = excluded.etag,
			original_filename = excluded.original_filename
	`, u.Key, u.ContentType, u.Size, u.ETag, u.OriginalFilename, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger: record %s: %w", u.Key, err)
	}
	return nil
}

// Get returns the row for key, or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, key string) (*models.Upload, error) {
	var u models.Upload
	err := db.conn.QueryRowContext(ctx, `
		SELECT key, content_type, size, etag, original_filename, created_at
		FROM uploads WHERE key = ?`, key).
		Scan(&u.Key, &u.ContentType, &u.Size, &u.ETag, &u.OriginalFilename, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get %s: %w", key, err)
	}
	return &u, nil
}

// List returns uploads newest first together with the total row count.
func (db *DB) List(ctx context.Context, limit, offset int) ([]models.Upload, int, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM uploads`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ledger: count: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT key, content_type, size, etag, original_filename, created_at
		FROM uploads ORDER BY created_at DESC, key LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	out := []models.Upload{}
	for rows.Next() {
		var u models.Upload
		if err := rows.Scan(&u.Key, &u.ContentType, &u.Size, &u.ETag, &u.OriginalFilename, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Delete removes the row for key. Deleting a missing key is not an error.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM uploads WHERE key = ?`, key); err != nil {
		return fmt.Errorf("ledger: delete %s: %w", key, err)
	}
	return nil
}

// AllETags returns key → etag for every recorded upload.
func (db *DB) AllETags(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT key, etag FROM uploads`)
	if err != nil {
		return nil, fmt.Errorf("ledger: all etags: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, e string
		if err := rows.Scan(&k, &e); err != nil {
			return nil, err
		}
		out[k] = e
	}
	return out, rows.Err()
}
