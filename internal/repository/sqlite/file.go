package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/model"
	"github.com/sakif/travel-blog/internal/repository"
)

var (
	_ repository.FileStore       = (*FileDB)(nil)
	_ repository.StatsRepository = (*StatsDB)(nil)
)

// FileDB is an object-store bucket backed by a BLOB column. Every query is
// scoped to the bucket the handle was opened for.
type FileDB struct {
	conn   *sql.DB
	bucket string
}

// Create stores a file. An empty ID gets a fresh xid.
func (db *FileDB) Create(ctx context.Context, file *model.File) error {
	if file.ID == "" {
		file.ID = xid.New().String()
	}
	file.Bucket = db.bucket
	file.Size = int64(len(file.Data))
	file.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO files (id, bucket, name, mime_type, owner_id, size, public, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID, file.Bucket, file.Name, file.MimeType, file.OwnerID, file.Size, file.Public, file.Data, file.CreatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return apperror.Conflict("file", file.ID)
		}
		return fmt.Errorf("sqlite: creating file %s: %w", file.Name, err)
	}
	return nil
}

// Get returns a file with its contents.
func (db *FileDB) Get(ctx context.Context, id string) (*model.File, error) {
	var f model.File
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, bucket, name, mime_type, owner_id, size, public, data, created_at
		 FROM files WHERE bucket = ? AND id = ?`, db.bucket, id,
	).Scan(&f.ID, &f.Bucket, &f.Name, &f.MimeType, &f.OwnerID, &f.Size, &f.Public, &f.Data, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("file", id)
		}
		return nil, fmt.Errorf("sqlite: getting file %s: %w", id, err)
	}
	return &f, nil
}

// List returns metadata for every file in the bucket, oldest first.
func (db *FileDB) List(ctx context.Context) ([]model.File, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, bucket, name, mime_type, owner_id, size, public, created_at
		 FROM files WHERE bucket = ? ORDER BY created_at ASC, rowid ASC`, db.bucket)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing files: %w", err)
	}
	defer rows.Close()

	var files []model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.ID, &f.Bucket, &f.Name, &f.MimeType, &f.OwnerID, &f.Size, &f.Public, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating files: %w", err)
	}
	return files, nil
}

// SetPublic grants or revokes public read access.
func (db *FileDB) SetPublic(ctx context.Context, id string, public bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE files SET public = ? WHERE bucket = ? AND id = ?`, public, db.bucket, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating permissions of file %s: %w", id, err)
	}
	found, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NotFound("file", id)
	}
	return nil
}

// Delete removes a file from the bucket.
func (db *FileDB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM files WHERE bucket = ? AND id = ?`, db.bucket, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting file %s: %w", id, err)
	}
	found, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NotFound("file", id)
	}
	return nil
}

// StatsDB stores named counters.
type StatsDB struct {
	conn *sql.DB
}

// Get returns a counter value, or apperror.ErrNotFound when the counter
// document was never created.
func (db *StatsDB) Get(ctx context.Context, id string) (int, error) {
	var v int
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM stats WHERE id = ?`, id).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("stats", id)
		}
		return 0, fmt.Errorf("sqlite: getting counter %s: %w", id, err)
	}
	return v, nil
}

// Increment adds one to a counter, creating it at 1 if missing.
func (db *StatsDB) Increment(ctx context.Context, id string) (int, error) {
	var v int
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO stats (id, value) VALUES (?, 1)
		 ON CONFLICT(id) DO UPDATE SET value = value + 1
		 RETURNING value`, id,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("sqlite: incrementing counter %s: %w", id, err)
	}
	return v, nil
}
