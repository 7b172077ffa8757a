package items

import (
	"context"

	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
)

// Repository persists drive items and in-flight uploads. Every operation is
// scoped to a single owner; a uuid belonging to another account behaves as
// absent.
type Repository interface {
	Create(ctx context.Context, item *models.Item) error
	Get(ctx context.Context, userID, uuid string) (*models.Item, error)
	FindByNameHash(ctx context.Context, userID, parent, nameHash string) (*models.Item, error)
	ListFolder(ctx context.Context, userID, parent string) ([]*models.Item, error)
	UsedBytes(ctx context.Context, userID string) (int64, error)

	SetParent(ctx context.Context, userID, uuid, parent string) error
	SetFavorited(ctx context.Context, userID, uuid string, value bool) error
	SetColor(ctx context.Context, userID, uuid, color string) error

	RecordChunk(ctx context.Context, upload *models.Upload, index int64) error
	GetUpload(ctx context.Context, userID, uuid string) (*models.Upload, error)
	DeleteUpload(ctx context.Context, userID, uuid string) error
}
