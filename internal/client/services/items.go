package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
	"github.com/dmitrijs2005/drivekeeper/internal/client/events"
	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/client/store"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
)

var (
	// ErrFolderExists reports a name collision at the destination.
	ErrFolderExists = errors.New("folder already exists at destination")
)

// ItemService runs batch item operations. Each operation issues one remote
// call per item, waits for all of them, reports failures per item and
// mirrors every success into the local metadata store plus a domain event.
// The batch is never atomic: past the pre-checks, one item's failure does
// not undo or block its siblings.
type ItemService interface {
	CreateFolder(ctx context.Context, name, parent string, masterKey []byte) (*models.Item, error)
	ListFolder(ctx context.Context, parent string, masterKey []byte) ([]*models.Item, error)
	MoveItems(ctx context.Context, items []*models.Item, dest string) error
	TrashItems(ctx context.Context, items []*models.Item) error
	RestoreItems(ctx context.Context, items []*models.Item) error
	FavoriteItems(ctx context.Context, items []*models.Item, value bool) error
	ChangeColor(ctx context.Context, items []*models.Item, color string) error
}

type itemService struct {
	logger logging.Logger
	client api.Client
	store  *store.Store
	bus    *events.Bus
}

func NewItemService(logger logging.Logger, client api.Client, st *store.Store, bus *events.Bus) ItemService {
	return &itemService{logger: logger, client: client, store: st, bus: bus}
}

// CreateFolder registers a folder on the server and caches it locally. The
// folder name travels only inside the sealed metadata envelope; the server
// sees a digest of the lowercased name for collision checks.
func (s *itemService) CreateFolder(ctx context.Context, name, parent string, masterKey []byte) (*models.Item, error) {
	nameHash := cryptox.NameHash(name)
	exists, _, err := s.client.FolderExists(ctx, parent, nameHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%q: %w", name, ErrFolderExists)
	}

	sealed, nonce, err := cryptox.EncryptMetadata(&models.FolderMetadata{Name: name}, masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to seal folder metadata: %w", err)
	}

	item := &models.Item{
		UUID:      uuid.NewString(),
		Name:      name,
		Type:      models.ItemTypeFolder,
		Parent:    parent,
		Timestamp: time.Now().Unix(),
	}
	err = s.client.CreateFolder(ctx, &api.CreateFolderRequest{
		UUID:     item.UUID,
		Parent:   parent,
		Metadata: sealed,
		Nonce:    nonce,
		NameHash: nameHash,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.AddItems(ctx, []*models.Item{item}, parent); err != nil {
		s.logger.Error(ctx, "failed to cache created folder", "uuid", item.UUID, "error", err)
	}
	s.bus.Publish(events.Event{Topic: events.TopicItemCreated, UUID: item.UUID, Parent: parent, Item: item})
	return item, nil
}

// ListFolder fetches a folder's content, unseals each item's metadata with
// the master key and refreshes the local cache for that parent. Items whose
// envelope cannot be opened are skipped with a log line; the listing is a
// refreshable cache, never the source of truth.
func (s *itemService) ListFolder(ctx context.Context, parent string, masterKey []byte) ([]*models.Item, error) {
	remote, err := s.client.ListFolder(ctx, parent)
	if err != nil {
		return nil, err
	}

	items := make([]*models.Item, 0, len(remote))
	for _, r := range remote {
		item, err := DecodeRemoteItem(r, masterKey)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecryptable item", "uuid", r.UUID, "error", err)
			continue
		}
		items = append(items, item)
	}

	if err := s.store.ClearItems(ctx, parent); err != nil {
		return nil, err
	}
	if err := s.store.AddItems(ctx, items, parent); err != nil {
		return nil, err
	}
	return items, nil
}

// DecodeRemoteItem unseals a server item's metadata envelope and builds the
// local item record.
func DecodeRemoteItem(r *api.RemoteItem, masterKey []byte) (*models.Item, error) {
	item := &models.Item{
		UUID:      r.UUID,
		Type:      models.ItemType(r.Type),
		Parent:    r.Parent,
		Size:      r.Size,
		Chunks:    r.Chunks,
		Bucket:    r.Bucket,
		Region:    r.Region,
		Color:     r.Color,
		Favorited: r.Favorited,
		Timestamp: r.Timestamp,
	}
	if item.IsFolder() {
		var meta models.FolderMetadata
		if err := cryptox.DecryptMetadata(r.Metadata, r.Nonce, masterKey, &meta); err != nil {
			return nil, err
		}
		item.Name = meta.Name
		return item, nil
	}

	var meta models.FileMetadata
	if err := cryptox.DecryptMetadata(r.Metadata, r.Nonce, masterKey, &meta); err != nil {
		return nil, err
	}
	item.Name = meta.Name
	item.Mime = meta.Mime
	item.Key = meta.Key
	if meta.Size > 0 {
		item.Size = meta.Size
	}
	item.LastModified = time.UnixMilli(meta.LastModified)
	item.LastModifiedSort = meta.LastModified
	return item, nil
}

// MoveItems moves the batch into dest. A batch containing an item whose
// UUID or current parent equals dest is a silent no-op: no remote call is
// issued. Folder moves pre-check the destination for name collisions and
// abort the whole batch on the first hit, before any mutation happens.
func (s *itemService) MoveItems(ctx context.Context, items []*models.Item, dest string) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		if item.UUID == dest || item.Parent == dest {
			return nil
		}
	}

	if err := s.checkFolderCollisions(ctx, items, dest); err != nil {
		return err
	}

	results := s.forEach(ctx, items, func(ctx context.Context, item *models.Item) error {
		if item.IsFolder() {
			return s.client.MoveFolder(ctx, item.UUID, dest)
		}
		return s.client.MoveFile(ctx, item.UUID, dest)
	})

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, s.reportItemError(r.item, "move", r.err))
			continue
		}
		oldParent := r.item.Parent
		if err := s.store.RemoveItems(ctx, []*models.Item{r.item}, oldParent); err != nil {
			s.logger.Error(ctx, "failed to evict moved item", "uuid", r.item.UUID, "error", err)
		}
		moved := *r.item
		moved.Parent = dest
		if err := s.store.AddItems(ctx, []*models.Item{&moved}, dest); err != nil {
			s.logger.Error(ctx, "failed to cache moved item", "uuid", r.item.UUID, "error", err)
		}
		s.bus.Publish(events.Event{Topic: events.TopicItemMoved, UUID: moved.UUID, Parent: dest, Item: &moved})
	}
	return errors.Join(errs...)
}

// TrashItems moves the batch into the trash root.
func (s *itemService) TrashItems(ctx context.Context, items []*models.Item) error {
	results := s.forEach(ctx, items, func(ctx context.Context, item *models.Item) error {
		return s.client.TrashItem(ctx, item.UUID, string(item.Type))
	})

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, s.reportItemError(r.item, "trash", r.err))
			continue
		}
		if err := s.store.RemoveItems(ctx, []*models.Item{r.item}, r.item.Parent); err != nil {
			s.logger.Error(ctx, "failed to evict trashed item", "uuid", r.item.UUID, "error", err)
		}
		trashed := *r.item
		trashed.Parent = common.ParentTrash
		if err := s.store.AddItems(ctx, []*models.Item{&trashed}, common.ParentTrash); err != nil {
			s.logger.Error(ctx, "failed to cache trashed item", "uuid", r.item.UUID, "error", err)
		}
		s.bus.Publish(events.Event{Topic: events.TopicItemTrashed, UUID: trashed.UUID, Item: &trashed})
	}
	return errors.Join(errs...)
}

// RestoreItems puts trashed items back into their recorded parent. Folder
// restores pre-check the destination the way folder moves do.
func (s *itemService) RestoreItems(ctx context.Context, items []*models.Item) error {
	for _, item := range items {
		if !item.IsFolder() {
			continue
		}
		exists, _, err := s.client.FolderExists(ctx, restoreParent(item), cryptox.NameHash(item.Name))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%q: %w", item.Name, ErrFolderExists)
		}
	}

	results := s.forEach(ctx, items, func(ctx context.Context, item *models.Item) error {
		return s.client.RestoreItem(ctx, item.UUID, string(item.Type), restoreParent(item))
	})

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, s.reportItemError(r.item, "restore", r.err))
			continue
		}
		if err := s.store.RemoveItems(ctx, []*models.Item{r.item}, common.ParentTrash); err != nil {
			s.logger.Error(ctx, "failed to evict restored item", "uuid", r.item.UUID, "error", err)
		}
		restored := *r.item
		restored.Parent = restoreParent(r.item)
		if err := s.store.AddItems(ctx, []*models.Item{&restored}, restored.Parent); err != nil {
			s.logger.Error(ctx, "failed to cache restored item", "uuid", r.item.UUID, "error", err)
		}
		s.bus.Publish(events.Event{Topic: events.TopicItemRestored, UUID: restored.UUID, Parent: restored.Parent, Item: &restored})
	}
	return errors.Join(errs...)
}

// restoreParent is where a trashed item goes back to. Items trashed from a
// since-deleted folder fall back to the base root.
func restoreParent(item *models.Item) string {
	if item.Parent == "" || item.Parent == common.ParentTrash {
		return common.ParentBase
	}
	return item.Parent
}

// FavoriteItems flips the favorite flag on the batch.
func (s *itemService) FavoriteItems(ctx context.Context, items []*models.Item, value bool) error {
	results := s.forEach(ctx, items, func(ctx context.Context, item *models.Item) error {
		return s.client.FavoriteItem(ctx, item.UUID, string(item.Type), value)
	})

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, s.reportItemError(r.item, "favorite", r.err))
			continue
		}
		changed := *r.item
		changed.Favorited = value
		if err := s.store.ChangeItems(ctx, []*models.Item{&changed}, r.item.Parent); err != nil {
			s.logger.Error(ctx, "failed to patch favorited item", "uuid", r.item.UUID, "error", err)
		}
		s.bus.Publish(events.Event{Topic: events.TopicItemFavorite, UUID: changed.UUID, Parent: changed.Parent, Item: &changed})
	}
	return errors.Join(errs...)
}

// ChangeColor recolors the folders in the batch. Files are skipped.
func (s *itemService) ChangeColor(ctx context.Context, items []*models.Item, color string) error {
	folders := make([]*models.Item, 0, len(items))
	for _, item := range items {
		if item.IsFolder() {
			folders = append(folders, item)
		}
	}

	results := s.forEach(ctx, folders, func(ctx context.Context, item *models.Item) error {
		return s.client.ChangeColor(ctx, item.UUID, color)
	})

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, s.reportItemError(r.item, "color", r.err))
			continue
		}
		if err := s.store.ChangeItem(ctx, r.item.UUID, r.item.Parent, "color", color); err != nil {
			s.logger.Error(ctx, "failed to patch folder color", "uuid", r.item.UUID, "error", err)
		}
		changed := *r.item
		changed.Color = color
		s.bus.Publish(events.Event{Topic: events.TopicItemColor, UUID: changed.UUID, Parent: changed.Parent, Item: &changed})
	}
	return errors.Join(errs...)
}

// checkFolderCollisions aborts a folder move batch before any remote
// mutation when a same-named folder already sits at the destination.
func (s *itemService) checkFolderCollisions(ctx context.Context, items []*models.Item, dest string) error {
	for _, item := range items {
		if !item.IsFolder() {
			continue
		}
		exists, _, err := s.client.FolderExists(ctx, dest, cryptox.NameHash(item.Name))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%q: %w", item.Name, ErrFolderExists)
		}
	}
	return nil
}

type itemResult struct {
	item *models.Item
	err  error
}

// forEach issues op once per item concurrently and waits for all of them.
func (s *itemService) forEach(ctx context.Context, items []*models.Item, op func(ctx context.Context, item *models.Item) error) []itemResult {
	results := make([]itemResult, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		i, item := i, item
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = itemResult{item: item, err: op(ctx, item)}
		}()
	}
	wg.Wait()
	return results
}

func (s *itemService) reportItemError(item *models.Item, op string, err error) error {
	wrapped := fmt.Errorf("%s %q: %w", op, item.Name, err)
	s.bus.Publish(events.Event{Topic: events.TopicItemError, UUID: item.UUID, Item: item, Err: wrapped})
	return wrapped
}
