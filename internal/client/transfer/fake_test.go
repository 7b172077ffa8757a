package transfer

import (
	"context"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
)

// fakeClient implements api.Client with overridable function fields. Calls
// without an override succeed with zero values.
type fakeClient struct {
	getQuota         func(ctx context.Context) (*api.Quota, error)
	uploadChunkURL   func(ctx context.Context, uuid string, index int64, parent, uploadKey string) (string, error)
	downloadChunkURL func(ctx context.Context, uuid string, index int64) (string, error)
	uploadChunk      func(ctx context.Context, url string, data []byte) error
	downloadChunk    func(ctx context.Context, url string) ([]byte, error)
	markUploadDone   func(ctx context.Context, req *api.MarkUploadDoneRequest) (*api.MarkUploadDoneResult, error)
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) Register(ctx context.Context, username string, salt, verifier []byte) error {
	return nil
}

func (f *fakeClient) GetSalt(ctx context.Context, username string) ([]byte, error) { return nil, nil }

func (f *fakeClient) Login(ctx context.Context, username string, verifier []byte) error { return nil }

func (f *fakeClient) GetQuota(ctx context.Context) (*api.Quota, error) {
	if f.getQuota != nil {
		return f.getQuota(ctx)
	}
	return &api.Quota{Used: 0, Max: 1 << 40}, nil
}

func (f *fakeClient) CreateFolder(ctx context.Context, req *api.CreateFolderRequest) error {
	return nil
}

func (f *fakeClient) FolderExists(ctx context.Context, parent, nameHash string) (bool, string, error) {
	return false, "", nil
}

func (f *fakeClient) ListFolder(ctx context.Context, parent string) ([]*api.RemoteItem, error) {
	return nil, nil
}

func (f *fakeClient) UploadChunkURL(ctx context.Context, uuid string, index int64, parent, uploadKey string) (string, error) {
	if f.uploadChunkURL != nil {
		return f.uploadChunkURL(ctx, uuid, index, parent, uploadKey)
	}
	return "http://chunks.local/put", nil
}

func (f *fakeClient) DownloadChunkURL(ctx context.Context, uuid string, index int64) (string, error) {
	if f.downloadChunkURL != nil {
		return f.downloadChunkURL(ctx, uuid, index)
	}
	return "http://chunks.local/get", nil
}

func (f *fakeClient) UploadChunk(ctx context.Context, url string, data []byte) error {
	if f.uploadChunk != nil {
		return f.uploadChunk(ctx, url, data)
	}
	return nil
}

func (f *fakeClient) DownloadChunk(ctx context.Context, url string) ([]byte, error) {
	if f.downloadChunk != nil {
		return f.downloadChunk(ctx, url)
	}
	return nil, nil
}

func (f *fakeClient) MarkUploadDone(ctx context.Context, req *api.MarkUploadDoneRequest) (*api.MarkUploadDoneResult, error) {
	if f.markUploadDone != nil {
		return f.markUploadDone(ctx, req)
	}
	return &api.MarkUploadDoneResult{Chunks: req.Chunks, Bucket: "b1", Region: "r1"}, nil
}

func (f *fakeClient) MoveFile(ctx context.Context, uuid, parent string) error   { return nil }
func (f *fakeClient) MoveFolder(ctx context.Context, uuid, parent string) error { return nil }
func (f *fakeClient) TrashItem(ctx context.Context, uuid, itemType string) error {
	return nil
}
func (f *fakeClient) RestoreItem(ctx context.Context, uuid, itemType, parent string) error {
	return nil
}
func (f *fakeClient) FavoriteItem(ctx context.Context, uuid, itemType string, value bool) error {
	return nil
}
func (f *fakeClient) ChangeColor(ctx context.Context, uuid, color string) error { return nil }
