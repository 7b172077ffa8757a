package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/dbx"
	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/dmitrijs2005/drivekeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/drivekeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/drivekeeper/internal/server/repositories/users"
)

// openTestDB provides a handle for dbx.WithTx; the fakes never touch it.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:services_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.UserName]; ok {
		return nil, common.ErrAlreadyExists
	}
	user.ID = "id-" + user.UserName
	r.users[user.UserName] = user
	return user, nil
}

func (r *fakeUserRepo) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[login]
	if !ok {
		return nil, common.ErrNotFound
	}
	return user, nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: map[string]*models.RefreshToken{}}
}

func (r *fakeTokenRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (r *fakeTokenRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rt, nil
}

func (r *fakeTokenRepo) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

type fakeItemRepo struct {
	mu      sync.Mutex
	items   map[string]*models.Item
	uploads map[string]*models.Upload
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: map[string]*models.Item{}, uploads: map[string]*models.Upload{}}
}

func (r *fakeItemRepo) Create(ctx context.Context, item *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.UUID]; ok {
		return common.ErrAlreadyExists
	}
	item.UpdatedAt = time.Now()
	r.items[item.UUID] = item
	return nil
}

func (r *fakeItemRepo) Get(ctx context.Context, userID, uuid string) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[uuid]
	if !ok || item.UserID != userID {
		return nil, common.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (r *fakeItemRepo) FindByNameHash(ctx context.Context, userID, parent, nameHash string) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.UserID == userID && item.Parent == parent && item.NameHash == nameHash && item.Type == common.ItemTypeFolder {
			return item, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeItemRepo) ListFolder(ctx context.Context, userID, parent string) ([]*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Item
	for _, item := range r.items {
		if item.UserID == userID && item.Parent == parent {
			result = append(result, item)
		}
	}
	return result, nil
}

func (r *fakeItemRepo) UsedBytes(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var used int64
	for _, item := range r.items {
		if item.UserID == userID && item.Type == common.ItemTypeFile {
			used += item.Size
		}
	}
	return used, nil
}

func (r *fakeItemRepo) SetParent(ctx context.Context, userID, uuid, parent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[uuid]
	if !ok || item.UserID != userID {
		return common.ErrNotFound
	}
	item.Parent = parent
	return nil
}

func (r *fakeItemRepo) SetFavorited(ctx context.Context, userID, uuid string, value bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[uuid]
	if !ok || item.UserID != userID {
		return common.ErrNotFound
	}
	item.Favorited = value
	return nil
}

func (r *fakeItemRepo) SetColor(ctx context.Context, userID, uuid, color string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[uuid]
	if !ok || item.UserID != userID || item.Type != common.ItemTypeFolder {
		return common.ErrNotFound
	}
	item.Color = color
	return nil
}

func (r *fakeItemRepo) RecordChunk(ctx context.Context, upload *models.Upload, index int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.uploads[upload.UUID]
	if !ok {
		upload.Chunks = index + 1
		r.uploads[upload.UUID] = upload
		return nil
	}
	if existing.UserID != upload.UserID || existing.UploadKey != upload.UploadKey {
		return common.ErrUnauthorized
	}
	if index+1 > existing.Chunks {
		existing.Chunks = index + 1
	}
	return nil
}

func (r *fakeItemRepo) GetUpload(ctx context.Context, userID, uuid string) (*models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.uploads[uuid]
	if !ok || u.UserID != userID {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (r *fakeItemRepo) DeleteUpload(ctx context.Context, userID, uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.uploads, uuid)
	return nil
}

type fakeRepoManager struct {
	userRepo  *fakeUserRepo
	tokenRepo *fakeTokenRepo
	itemRepo  *fakeItemRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		userRepo:  newFakeUserRepo(),
		tokenRepo: newFakeTokenRepo(),
		itemRepo:  newFakeItemRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository { return m.userRepo }

func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository { return m.tokenRepo }

func (m *fakeRepoManager) Items(db dbx.DBTX) items.Repository { return m.itemRepo }

type fakeNotifier struct {
	mu     sync.Mutex
	events []*ItemEvent
}

func (n *fakeNotifier) Notify(userID string, event *ItemEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) all() []*ItemEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*ItemEvent(nil), n.events...)
}
