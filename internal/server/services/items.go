package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/dbx"
	"github.com/dmitrijs2005/drivekeeper/internal/server/config"
	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/dmitrijs2005/drivekeeper/internal/server/repositories/repomanager"
)

// ItemService implements the drive verbs: folders, listings, chunked
// uploads and downloads via presigned URLs, move/trash/restore, favorites
// and folder colors. All operations are scoped to the authenticated user.
type ItemService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
	notifier    Notifier
}

func NewItemService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *ItemService {
	return &ItemService{
		db:          db,
		repomanager: m,
		config:      cfg,
		notifier:    NopNotifier{},
	}
}

// SetNotifier attaches the push channel. Call before serving traffic.
func (s *ItemService) SetNotifier(n Notifier) {
	s.notifier = n
}

// ToWireItem strips the owner and flattens timestamps for transport.
func ToWireItem(item *models.Item) *WireItem {
	return &WireItem{
		UUID:      item.UUID,
		Type:      item.Type,
		Parent:    item.Parent,
		Metadata:  item.Metadata,
		Nonce:     item.Nonce,
		NameHash:  item.NameHash,
		Size:      item.Size,
		Chunks:    item.Chunks,
		Bucket:    item.Bucket,
		Region:    item.Region,
		Color:     item.Color,
		Favorited: item.Favorited,
		Timestamp: item.UpdatedAt.UnixMilli(),
	}
}

// Quota reports the account's used and maximum storage in bytes.
func (s *ItemService) Quota(ctx context.Context, userID string) (used, max int64, err error) {
	repo := s.repomanager.Items(s.db)
	used, err = repo.UsedBytes(ctx, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("error reading usage: %w", err)
	}
	return used, s.config.MaxQuotaBytes, nil
}

// CreateFolder registers a sealed folder record. A folder with the same
// name hash under the same parent yields common.ErrAlreadyExists.
func (s *ItemService) CreateFolder(ctx context.Context, userID string, item *models.Item) error {
	repo := s.repomanager.Items(s.db)

	if _, err := repo.FindByNameHash(ctx, userID, item.Parent, item.NameHash); err == nil {
		return common.ErrAlreadyExists
	} else if !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("error checking folder name: %w", err)
	}

	item.UserID = userID
	item.Type = common.ItemTypeFolder
	if err := repo.Create(ctx, item); err != nil {
		return err
	}

	s.notifier.Notify(userID, &ItemEvent{Event: EventNew, UUID: item.UUID, Item: ToWireItem(item)})
	return nil
}

// FolderExists reports whether parent already contains a folder with the
// given name hash, and if so which one.
func (s *ItemService) FolderExists(ctx context.Context, userID, parent, nameHash string) (bool, string, error) {
	repo := s.repomanager.Items(s.db)
	item, err := repo.FindByNameHash(ctx, userID, parent, nameHash)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("error checking folder name: %w", err)
	}
	return true, item.UUID, nil
}

// ListFolder returns the sealed records directly under parent.
func (s *ItemService) ListFolder(ctx context.Context, userID, parent string) ([]*models.Item, error) {
	repo := s.repomanager.Items(s.db)
	return repo.ListFolder(ctx, userID, parent)
}

// UploadChunkURL authorizes one chunk of an upload in progress and returns
// a presigned PUT URL for it. The first call creates the upload record;
// every call bumps the server-side chunk count, which is what the finalize
// step adopts. A full account yields common.ErrStorageFull.
func (s *ItemService) UploadChunkURL(ctx context.Context, userID, uuid string, index int64, parent, uploadKey string) (string, error) {
	if index < 0 || uploadKey == "" {
		return "", common.ErrUnauthorized
	}

	repo := s.repomanager.Items(s.db)

	used, err := repo.UsedBytes(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("error reading usage: %w", err)
	}
	if used >= s.config.MaxQuotaBytes {
		return "", common.ErrStorageFull
	}

	upload := &models.Upload{UUID: uuid, UserID: userID, Parent: parent, UploadKey: uploadKey}
	if err := repo.RecordChunk(ctx, upload, index); err != nil {
		return "", err
	}

	return s.presignedPutURL(ctx, chunkStorageKey(userID, uuid, index))
}

// DownloadChunkURL returns a presigned GET URL for one stored chunk of a
// file the user owns.
func (s *ItemService) DownloadChunkURL(ctx context.Context, userID, uuid string, index int64) (string, error) {
	repo := s.repomanager.Items(s.db)

	item, err := repo.Get(ctx, userID, uuid)
	if err != nil {
		return "", err
	}
	if item.Type != common.ItemTypeFile || index < 0 || index >= item.Chunks {
		return "", common.ErrNotFound
	}

	return s.presignedGetURL(ctx, chunkStorageKey(userID, uuid, index))
}

// FinishUploadRequest finalizes a chunked upload. Metadata and Nonce carry
// the client-sealed file envelope.
type FinishUploadRequest struct {
	UUID      string
	Parent    string
	Metadata  []byte
	Nonce     []byte
	NameHash  string
	Size      int64
	Chunks    int64
	Mime      string
	UploadKey string
}

// FinishUpload turns a completed upload into a live item. The chunk count
// stored on the item is the number of chunks the server authorized, not the
// client's estimate. The upload record is consumed atomically with the
// insert. Exceeding the quota yields common.ErrStorageFull.
func (s *ItemService) FinishUpload(ctx context.Context, userID string, req *FinishUploadRequest) (*models.Item, error) {
	repo := s.repomanager.Items(s.db)

	upload, err := repo.GetUpload(ctx, userID, req.UUID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(upload.UploadKey), []byte(req.UploadKey)) != 1 {
		return nil, common.ErrUnauthorized
	}

	used, err := repo.UsedBytes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error reading usage: %w", err)
	}
	if used+req.Size > s.config.MaxQuotaBytes {
		return nil, common.ErrStorageFull
	}

	item := &models.Item{
		UUID:     req.UUID,
		UserID:   userID,
		Type:     common.ItemTypeFile,
		Parent:   upload.Parent,
		Metadata: req.Metadata,
		Nonce:    req.Nonce,
		NameHash: req.NameHash,
		Size:     req.Size,
		Chunks:   upload.Chunks,
		Mime:     req.Mime,
		Bucket:   s.config.S3Bucket,
		Region:   s.config.S3Region,
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.Items(tx)
		if err := repoTx.Create(ctx, item); err != nil {
			return err
		}
		return repoTx.DeleteUpload(ctx, userID, req.UUID)
	}); err != nil {
		return nil, err
	}

	s.notifier.Notify(userID, &ItemEvent{Event: EventNew, UUID: item.UUID, Item: ToWireItem(item)})
	return item, nil
}

// Move reparents an item. Moving a folder into a parent that already holds
// a folder with the same name yields common.ErrAlreadyExists.
func (s *ItemService) Move(ctx context.Context, userID, uuid, parent string) error {
	repo := s.repomanager.Items(s.db)

	item, err := repo.Get(ctx, userID, uuid)
	if err != nil {
		return err
	}

	if item.Type == common.ItemTypeFolder {
		if _, err := repo.FindByNameHash(ctx, userID, parent, item.NameHash); err == nil {
			return common.ErrAlreadyExists
		} else if !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("error checking folder name: %w", err)
		}
	}

	oldParent := item.Parent
	if err := repo.SetParent(ctx, userID, uuid, parent); err != nil {
		return err
	}

	// the event carries the full record so other sessions can mirror it
	// without a round trip
	item.Parent = parent
	s.notifier.Notify(userID, &ItemEvent{Event: EventMove, UUID: uuid, Parent: oldParent, Dest: parent, Item: ToWireItem(item)})
	return nil
}

// Trash moves an item into the trash container.
func (s *ItemService) Trash(ctx context.Context, userID, uuid string) error {
	repo := s.repomanager.Items(s.db)

	item, err := repo.Get(ctx, userID, uuid)
	if err != nil {
		return err
	}

	oldParent := item.Parent
	if err := repo.SetParent(ctx, userID, uuid, common.ParentTrash); err != nil {
		return err
	}

	item.Parent = common.ParentTrash
	s.notifier.Notify(userID, &ItemEvent{Event: EventTrash, UUID: uuid, Parent: oldParent, Dest: common.ParentTrash, Item: ToWireItem(item)})
	return nil
}

// Restore moves a trashed item back under parent, applying the same folder
// name collision rule as Move.
func (s *ItemService) Restore(ctx context.Context, userID, uuid, parent string) error {
	repo := s.repomanager.Items(s.db)

	item, err := repo.Get(ctx, userID, uuid)
	if err != nil {
		return err
	}

	if item.Type == common.ItemTypeFolder {
		if _, err := repo.FindByNameHash(ctx, userID, parent, item.NameHash); err == nil {
			return common.ErrAlreadyExists
		} else if !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("error checking folder name: %w", err)
		}
	}

	oldParent := item.Parent
	if err := repo.SetParent(ctx, userID, uuid, parent); err != nil {
		return err
	}

	item.Parent = parent
	s.notifier.Notify(userID, &ItemEvent{Event: EventRestore, UUID: uuid, Parent: oldParent, Dest: parent, Item: ToWireItem(item)})
	return nil
}

// Favorite toggles the favorite flag on an item.
func (s *ItemService) Favorite(ctx context.Context, userID, uuid string, value bool) error {
	repo := s.repomanager.Items(s.db)

	item, err := repo.Get(ctx, userID, uuid)
	if err != nil {
		return err
	}

	if err := repo.SetFavorited(ctx, userID, uuid, value); err != nil {
		return err
	}

	item.Favorited = value
	s.notifier.Notify(userID, &ItemEvent{Event: EventFavorite, UUID: uuid, Parent: item.Parent, Value: value, Item: ToWireItem(item)})
	return nil
}

// ChangeColor sets a folder's color label. Files are not colorable; the
// update silently targets folders only and reports ErrNotFound otherwise.
func (s *ItemService) ChangeColor(ctx context.Context, userID, uuid, color string) error {
	repo := s.repomanager.Items(s.db)

	item, err := repo.Get(ctx, userID, uuid)
	if err != nil {
		return err
	}

	if err := repo.SetColor(ctx, userID, uuid, color); err != nil {
		return err
	}

	s.notifier.Notify(userID, &ItemEvent{Event: EventColor, UUID: uuid, Parent: item.Parent, Color: color})
	return nil
}
