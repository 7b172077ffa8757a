package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/dbx"
	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `uuid, type, parent, metadata, nonce, name_hash, size, chunks, mime, bucket, region, color, favorited, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, item *models.Item) error {

	query :=
		`INSERT INTO items (uuid, user_id, type, parent, metadata, nonce, name_hash, size, chunks, mime, bucket, region, color, favorited)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 `

	_, err := r.db.ExecContext(ctx, query,
		item.UUID, item.UserID, item.Type, item.Parent, item.Metadata, item.Nonce, item.NameHash,
		item.Size, item.Chunks, item.Mime, item.Bucket, item.Region, item.Color, item.Favorited)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) scanItem(row *sql.Row) (*models.Item, error) {
	item := &models.Item{}
	err := row.Scan(&item.UUID, &item.Type, &item.Parent, &item.Metadata, &item.Nonce, &item.NameHash,
		&item.Size, &item.Chunks, &item.Mime, &item.Bucket, &item.Region, &item.Color, &item.Favorited, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, uuid string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE user_id = $1 AND uuid = $2`
	return r.scanItem(r.db.QueryRowContext(ctx, query, userID, uuid))
}

func (r *PostgresRepository) FindByNameHash(ctx context.Context, userID, parent, nameHash string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
	          WHERE user_id = $1 AND parent = $2 AND name_hash = $3 AND type = 'folder'`
	return r.scanItem(r.db.QueryRowContext(ctx, query, userID, parent, nameHash))
}

func (r *PostgresRepository) ListFolder(ctx context.Context, userID, parent string) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
	          WHERE user_id = $1 AND parent = $2
	          ORDER BY updated_at`

	rows, err := r.db.QueryContext(ctx, query, userID, parent)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		item := &models.Item{}
		err := rows.Scan(&item.UUID, &item.Type, &item.Parent, &item.Metadata, &item.Nonce, &item.NameHash,
			&item.Size, &item.Chunks, &item.Mime, &item.Bucket, &item.Region, &item.Color, &item.Favorited, &item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) UsedBytes(ctx context.Context, userID string) (int64, error) {
	var used int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM items WHERE user_id = $1 AND type = 'file'`, userID).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return used, nil
}

func (r *PostgresRepository) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetParent(ctx context.Context, userID, uuid, parent string) error {
	return r.update(ctx,
		`UPDATE items SET parent = $3, updated_at = now() WHERE user_id = $1 AND uuid = $2`,
		userID, uuid, parent)
}

func (r *PostgresRepository) SetFavorited(ctx context.Context, userID, uuid string, value bool) error {
	return r.update(ctx,
		`UPDATE items SET favorited = $3, updated_at = now() WHERE user_id = $1 AND uuid = $2`,
		userID, uuid, value)
}

func (r *PostgresRepository) SetColor(ctx context.Context, userID, uuid, color string) error {
	return r.update(ctx,
		`UPDATE items SET color = $3, updated_at = now() WHERE user_id = $1 AND uuid = $2 AND type = 'folder'`,
		userID, uuid, color)
}

// RecordChunk registers one issued chunk URL. The uploads row is created on
// first contact; chunks only ever grows, so the stored value is the number of
// chunks the server has actually authorized.
func (r *PostgresRepository) RecordChunk(ctx context.Context, upload *models.Upload, index int64) error {

	query :=
		`INSERT INTO uploads (uuid, user_id, parent, upload_key, chunks)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (uuid) DO UPDATE
		 SET chunks = GREATEST(uploads.chunks, EXCLUDED.chunks)
		 WHERE uploads.user_id = EXCLUDED.user_id AND uploads.upload_key = EXCLUDED.upload_key
		 `

	res, err := r.db.ExecContext(ctx, query,
		upload.UUID, upload.UserID, upload.Parent, upload.UploadKey, index+1)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		// a row exists but belongs to someone else or carries another key
		return common.ErrUnauthorized
	}
	return nil
}

func (r *PostgresRepository) GetUpload(ctx context.Context, userID, uuid string) (*models.Upload, error) {
	query := `SELECT uuid, user_id, parent, upload_key, chunks, created_at FROM uploads
	          WHERE user_id = $1 AND uuid = $2`

	u := &models.Upload{}
	err := r.db.QueryRowContext(ctx, query, userID, uuid).
		Scan(&u.UUID, &u.UserID, &u.Parent, &u.UploadKey, &u.Chunks, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) DeleteUpload(ctx context.Context, userID, uuid string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE user_id = $1 AND uuid = $2`, userID, uuid)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
