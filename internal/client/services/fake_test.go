package services

import (
	"context"
	"sync/atomic"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
)

// fakeClient implements api.Client with overridable function fields and a
// counter of mutating calls. Calls without an override succeed.
type fakeClient struct {
	mutations atomic.Int32

	register     func(ctx context.Context, username string, salt, verifier []byte) error
	getSalt      func(ctx context.Context, username string) ([]byte, error)
	login        func(ctx context.Context, username string, verifier []byte) error
	createFolder func(ctx context.Context, req *api.CreateFolderRequest) error
	folderExists func(ctx context.Context, parent, nameHash string) (bool, string, error)
	listFolder   func(ctx context.Context, parent string) ([]*api.RemoteItem, error)
	moveFile     func(ctx context.Context, uuid, parent string) error
	moveFolder   func(ctx context.Context, uuid, parent string) error
	trashItem    func(ctx context.Context, uuid, itemType string) error
	restoreItem  func(ctx context.Context, uuid, itemType, parent string) error
	favoriteItem func(ctx context.Context, uuid, itemType string, value bool) error
	changeColor  func(ctx context.Context, uuid, color string) error
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) Register(ctx context.Context, username string, salt, verifier []byte) error {
	if f.register != nil {
		return f.register(ctx, username, salt, verifier)
	}
	return nil
}

func (f *fakeClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	if f.getSalt != nil {
		return f.getSalt(ctx, username)
	}
	return nil, nil
}

func (f *fakeClient) Login(ctx context.Context, username string, verifier []byte) error {
	if f.login != nil {
		return f.login(ctx, username, verifier)
	}
	return nil
}

func (f *fakeClient) GetQuota(ctx context.Context) (*api.Quota, error) {
	return &api.Quota{}, nil
}

func (f *fakeClient) CreateFolder(ctx context.Context, req *api.CreateFolderRequest) error {
	f.mutations.Add(1)
	if f.createFolder != nil {
		return f.createFolder(ctx, req)
	}
	return nil
}

func (f *fakeClient) FolderExists(ctx context.Context, parent, nameHash string) (bool, string, error) {
	if f.folderExists != nil {
		return f.folderExists(ctx, parent, nameHash)
	}
	return false, "", nil
}

func (f *fakeClient) ListFolder(ctx context.Context, parent string) ([]*api.RemoteItem, error) {
	if f.listFolder != nil {
		return f.listFolder(ctx, parent)
	}
	return nil, nil
}

func (f *fakeClient) UploadChunkURL(ctx context.Context, uuid string, index int64, parent, uploadKey string) (string, error) {
	return "", nil
}

func (f *fakeClient) DownloadChunkURL(ctx context.Context, uuid string, index int64) (string, error) {
	return "", nil
}

func (f *fakeClient) UploadChunk(ctx context.Context, url string, data []byte) error { return nil }

func (f *fakeClient) DownloadChunk(ctx context.Context, url string) ([]byte, error) {
	return nil, nil
}

func (f *fakeClient) MarkUploadDone(ctx context.Context, req *api.MarkUploadDoneRequest) (*api.MarkUploadDoneResult, error) {
	f.mutations.Add(1)
	return &api.MarkUploadDoneResult{Chunks: req.Chunks}, nil
}

func (f *fakeClient) MoveFile(ctx context.Context, uuid, parent string) error {
	f.mutations.Add(1)
	if f.moveFile != nil {
		return f.moveFile(ctx, uuid, parent)
	}
	return nil
}

func (f *fakeClient) MoveFolder(ctx context.Context, uuid, parent string) error {
	f.mutations.Add(1)
	if f.moveFolder != nil {
		return f.moveFolder(ctx, uuid, parent)
	}
	return nil
}

func (f *fakeClient) TrashItem(ctx context.Context, uuid, itemType string) error {
	f.mutations.Add(1)
	if f.trashItem != nil {
		return f.trashItem(ctx, uuid, itemType)
	}
	return nil
}

func (f *fakeClient) RestoreItem(ctx context.Context, uuid, itemType, parent string) error {
	f.mutations.Add(1)
	if f.restoreItem != nil {
		return f.restoreItem(ctx, uuid, itemType, parent)
	}
	return nil
}

func (f *fakeClient) FavoriteItem(ctx context.Context, uuid, itemType string, value bool) error {
	f.mutations.Add(1)
	if f.favoriteItem != nil {
		return f.favoriteItem(ctx, uuid, itemType, value)
	}
	return nil
}

func (f *fakeClient) ChangeColor(ctx context.Context, uuid, color string) error {
	f.mutations.Add(1)
	if f.changeColor != nil {
		return f.changeColor(ctx, uuid, color)
	}
	return nil
}
