package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
	"github.com/dmitrijs2005/drivekeeper/internal/client/events"
	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/client/store"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"

	_ "modernc.org/sqlite"
)

func setupItemService(t *testing.T, client api.Client) (ItemService, *store.Store, *events.Bus) {
	t.Helper()
	ctx := context.Background()

	db, err := store.InitDatabase(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.NewStore(store.NewSQLiteKV(db))
	bus := events.NewBus()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewItemService(logger, client, st, bus), st, bus
}

func file(uuid, name, parent string) *models.Item {
	return &models.Item{UUID: uuid, Name: name, Type: models.ItemTypeFile, Parent: parent}
}

func folder(uuid, name, parent string) *models.Item {
	return &models.Item{UUID: uuid, Name: name, Type: models.ItemTypeFolder, Parent: parent}
}

func TestItemService_MoveIntoOwnParentIsSilentNoop(t *testing.T) {
	client := &fakeClient{}
	svc, _, _ := setupItemService(t, client)
	ctx := context.Background()

	items := []*models.Item{file("f1", "a.txt", "p1"), file("f2", "b.txt", "base")}
	require.NoError(t, svc.MoveItems(ctx, items, "p1"))
	assert.Equal(t, int32(0), client.mutations.Load())
}

func TestItemService_MoveIntoSelfIsSilentNoop(t *testing.T) {
	client := &fakeClient{}
	svc, _, _ := setupItemService(t, client)

	d := folder("d1", "docs", "base")
	require.NoError(t, svc.MoveItems(context.Background(), []*models.Item{d}, "d1"))
	assert.Equal(t, int32(0), client.mutations.Load())
}

func TestItemService_MoveFolderCollisionAbortsWholeBatch(t *testing.T) {
	colliding := cryptox.NameHash("reports")
	client := &fakeClient{
		folderExists: func(ctx context.Context, parent, nameHash string) (bool, string, error) {
			return nameHash == colliding, "", nil
		},
	}
	svc, _, _ := setupItemService(t, client)

	batch := []*models.Item{
		folder("d1", "alpha", "base"),
		folder("d2", "reports", "base"),
		folder("d3", "omega", "base"),
	}
	err := svc.MoveItems(context.Background(), batch, "dest")
	require.ErrorIs(t, err, ErrFolderExists)
	assert.Contains(t, err.Error(), "reports")
	// no remote mutation was issued for any of the three
	assert.Equal(t, int32(0), client.mutations.Load())
}

func TestItemService_MoveMigratesStoreBuckets(t *testing.T) {
	client := &fakeClient{}
	svc, st, bus := setupItemService(t, client)
	ctx := context.Background()

	it := file("f1", "a.txt", common.ParentBase)
	require.NoError(t, st.AddItems(ctx, []*models.Item{it}, common.ParentBase))

	ch, cancel := bus.Subscribe(events.TopicItemMoved)
	defer cancel()

	require.NoError(t, svc.MoveItems(ctx, []*models.Item{it}, "dest"))

	old, err := st.Items(ctx, common.ParentBase)
	require.NoError(t, err)
	assert.Empty(t, old)

	moved, err := st.Items(ctx, "dest")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "dest", moved[0].Parent)

	ev := <-ch
	assert.Equal(t, "f1", ev.UUID)
}

func TestItemService_BatchIsAllSettled(t *testing.T) {
	boom := errors.New("backend unavailable")
	client := &fakeClient{
		moveFile: func(ctx context.Context, uuid, parent string) error {
			if uuid == "f2" {
				return boom
			}
			return nil
		},
	}
	svc, st, bus := setupItemService(t, client)
	ctx := context.Background()

	batch := []*models.Item{
		file("f1", "a.txt", common.ParentBase),
		file("f2", "b.txt", common.ParentBase),
		file("f3", "c.txt", common.ParentBase),
	}
	require.NoError(t, st.AddItems(ctx, batch, common.ParentBase))

	errCh, cancel := bus.Subscribe(events.TopicItemError)
	defer cancel()

	err := svc.MoveItems(ctx, batch, "dest")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "b.txt")

	// siblings of the failed item still landed
	moved, err2 := st.Items(ctx, "dest")
	require.NoError(t, err2)
	assert.Len(t, moved, 2)

	ev := <-errCh
	assert.Equal(t, "f2", ev.UUID)
	assert.ErrorIs(t, ev.Err, boom)
}

func TestItemService_TrashThenRestoreRoundTrip(t *testing.T) {
	client := &fakeClient{}
	svc, st, _ := setupItemService(t, client)
	ctx := context.Background()

	it := file("f1", "a.txt", common.ParentBase)
	require.NoError(t, st.AddItems(ctx, []*models.Item{it}, common.ParentBase))

	require.NoError(t, svc.TrashItems(ctx, []*models.Item{it}))

	trashed, err := st.Items(ctx, common.ParentTrash)
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	base, err := st.Items(ctx, common.ParentBase)
	require.NoError(t, err)
	assert.Empty(t, base)

	// the trashed copy remembers nothing about its origin, so it restores
	// to the base root
	require.NoError(t, svc.RestoreItems(ctx, trashed))

	restored, err := st.Items(ctx, common.ParentBase)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, common.ParentBase, restored[0].Parent)

	trashed, err = st.Items(ctx, common.ParentTrash)
	require.NoError(t, err)
	assert.Empty(t, trashed)
}

func TestItemService_FavoritePatchesFlag(t *testing.T) {
	client := &fakeClient{}
	svc, st, _ := setupItemService(t, client)
	ctx := context.Background()

	it := file("f1", "a.txt", common.ParentBase)
	require.NoError(t, st.AddItems(ctx, []*models.Item{it}, common.ParentBase))

	require.NoError(t, svc.FavoriteItems(ctx, []*models.Item{it}, true))

	items, err := st.Items(ctx, common.ParentBase)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Favorited)
}

func TestItemService_ChangeColorSkipsFiles(t *testing.T) {
	client := &fakeClient{}
	svc, st, _ := setupItemService(t, client)
	ctx := context.Background()

	d := folder("d1", "docs", common.ParentBase)
	f := file("f1", "a.txt", common.ParentBase)
	require.NoError(t, st.AddItems(ctx, []*models.Item{d, f}, common.ParentBase))

	require.NoError(t, svc.ChangeColor(ctx, []*models.Item{d, f}, "red"))
	assert.Equal(t, int32(1), client.mutations.Load())

	items, err := st.Items(ctx, common.ParentBase)
	require.NoError(t, err)
	for _, it := range items {
		if it.UUID == "d1" {
			assert.Equal(t, "red", it.Color)
		}
	}
}

func TestItemService_CreateFolderRejectsCollision(t *testing.T) {
	client := &fakeClient{
		folderExists: func(ctx context.Context, parent, nameHash string) (bool, string, error) {
			return true, "existing-uuid", nil
		},
	}
	svc, _, _ := setupItemService(t, client)

	_, err := svc.CreateFolder(context.Background(), "docs", common.ParentBase, make([]byte, 32))
	require.ErrorIs(t, err, ErrFolderExists)
	assert.Equal(t, int32(0), client.mutations.Load())
}

func TestItemService_ListFolderDecodesAndCaches(t *testing.T) {
	masterKey := cryptox.DeriveMasterKey([]byte("password"), cryptox.GenerateSalt(16))

	fileKey, err := cryptox.NewFileKey()
	require.NoError(t, err)
	fileMeta, fileNonce, err := cryptox.EncryptMetadata(&models.FileMetadata{Name: "a.txt", Size: 42, Mime: "text/plain", Key: fileKey}, masterKey)
	require.NoError(t, err)
	folderMeta, folderNonce, err := cryptox.EncryptMetadata(&models.FolderMetadata{Name: "docs"}, masterKey)
	require.NoError(t, err)

	client := &fakeClient{
		listFolder: func(ctx context.Context, parent string) ([]*api.RemoteItem, error) {
			return []*api.RemoteItem{
				{UUID: "f1", Type: "file", Parent: parent, Metadata: fileMeta, Nonce: fileNonce, Chunks: 1},
				{UUID: "d1", Type: "folder", Parent: parent, Metadata: folderMeta, Nonce: folderNonce},
				{UUID: "broken", Type: "file", Parent: parent, Metadata: []byte("garbage"), Nonce: make([]byte, 12)},
			}, nil
		},
	}
	svc, st, _ := setupItemService(t, client)
	ctx := context.Background()

	items, err := svc.ListFolder(ctx, common.ParentBase, masterKey)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byUUID := map[string]*models.Item{}
	for _, it := range items {
		byUUID[it.UUID] = it
	}
	require.Contains(t, byUUID, "f1")
	assert.Equal(t, "a.txt", byUUID["f1"].Name)
	assert.Equal(t, int64(42), byUUID["f1"].Size)
	assert.Equal(t, fileKey, byUUID["f1"].Key)
	require.Contains(t, byUUID, "d1")
	assert.Equal(t, "docs", byUUID["d1"].Name)

	cached, err := st.Items(ctx, common.ParentBase)
	require.NoError(t, err)
	assert.Len(t, cached, 2)

	sidebar, err := st.SidebarItems(ctx, common.ParentBase)
	require.NoError(t, err)
	require.Len(t, sidebar, 1)
	assert.Equal(t, "d1", sidebar[0].UUID)
}

func TestItemService_RestoreFolderCollisionAborts(t *testing.T) {
	client := &fakeClient{
		folderExists: func(ctx context.Context, parent, nameHash string) (bool, string, error) {
			return true, "", nil
		},
	}
	svc, _, _ := setupItemService(t, client)

	d := folder("d1", "docs", common.ParentTrash)
	err := svc.RestoreItems(context.Background(), []*models.Item{d})
	require.ErrorIs(t, err, ErrFolderExists)
	assert.Equal(t, int32(0), client.mutations.Load())
}
