// Package store implements the local metadata cache: a persistent key-value
// collaborator backed by SQLite plus the per-parent item buckets kept
// consistent under a single process-wide lock.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/dbx"
)

// Bucket namespaces inside the key-value store.
type BucketType string

const (
	BucketNormal     BucketType = "normal"
	BucketThumbnails BucketType = "thumbnails"
	BucketMetadata   BucketType = "metadata"
)

// KV is the persistent key-value collaborator. Get returns
// common.ErrNotFound for missing keys.
type KV interface {
	Get(ctx context.Context, key string, bucket BucketType) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, bucket BucketType) error
	Delete(ctx context.Context, key string, bucket BucketType) error
}

// SQLiteKV persists key-value pairs in the client's SQLite database.
type SQLiteKV struct {
	db dbx.DBTX
}

func NewSQLiteKV(db dbx.DBTX) *SQLiteKV {
	return &SQLiteKV{db: db}
}

func (r *SQLiteKV) Get(ctx context.Context, key string, bucket BucketType) ([]byte, error) {
	query := `select value from kv where bucket=? and key=?`
	row := r.db.QueryRowContext(ctx, query, string(bucket), key)

	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteKV) Set(ctx context.Context, key string, value []byte, bucket BucketType) error {
	query := `insert into kv (bucket, key, value) values (?, ?, ?)
			on conflict(bucket, key) do update set value = excluded.value`
	if _, err := r.db.ExecContext(ctx, query, string(bucket), key, value); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

func (r *SQLiteKV) Delete(ctx context.Context, key string, bucket BucketType) error {
	query := `delete from kv where bucket=? and key=?`
	if _, err := r.db.ExecContext(ctx, query, string(bucket), key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}
