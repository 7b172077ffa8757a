package api

import "context"

// RemoteItem is an item as the server returns it: metadata still sealed.
type RemoteItem struct {
	UUID      string `json:"uuid"`
	Type      string `json:"type"`
	Parent    string `json:"parent"`
	Metadata  []byte `json:"metadata"`
	Nonce     []byte `json:"nonce"`
	NameHash  string `json:"nameHash"`
	Size      int64  `json:"size"`
	Chunks    int64  `json:"chunks"`
	Bucket    string `json:"bucket,omitempty"`
	Region    string `json:"region,omitempty"`
	Color     string `json:"color,omitempty"`
	Favorited bool   `json:"favorited"`
	Timestamp int64  `json:"timestamp"`
}

// CreateFolderRequest registers a new folder.
type CreateFolderRequest struct {
	UUID     string `json:"uuid"`
	Parent   string `json:"parent"`
	Metadata []byte `json:"metadata"`
	Nonce    []byte `json:"nonce"`
	NameHash string `json:"nameHash"`
}

// MarkUploadDoneRequest finalizes a chunked upload. Metadata carries the
// sealed models.FileMetadata envelope; NameHash the lowercased-name digest.
type MarkUploadDoneRequest struct {
	UUID      string `json:"uuid"`
	Parent    string `json:"parent"`
	Metadata  []byte `json:"metadata"`
	Nonce     []byte `json:"nonce"`
	NameHash  string `json:"nameHash"`
	Size      int64  `json:"size"`
	Chunks    int64  `json:"chunks"`
	Mime      string `json:"mime"`
	UploadKey string `json:"uploadKey"`
}

// MarkUploadDoneResult reports the server-adopted values. Chunks is
// authoritative and may differ from the client's estimate.
type MarkUploadDoneResult struct {
	Chunks int64  `json:"chunks"`
	Bucket string `json:"bucket"`
	Region string `json:"region"`
}

// Quota is the cached account storage usage.
type Quota struct {
	Used int64 `json:"used"`
	Max  int64 `json:"max"`
}

// Client is the transport-agnostic contract for the DriveKeeper backend.
// Implementations map transport failures onto the package sentinel errors so
// callers can match with errors.Is.
type Client interface {
	Close() error

	Register(ctx context.Context, username string, salt, verifier []byte) error
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) error

	GetQuota(ctx context.Context) (*Quota, error)

	CreateFolder(ctx context.Context, req *CreateFolderRequest) error
	FolderExists(ctx context.Context, parent, nameHash string) (bool, string, error)
	ListFolder(ctx context.Context, parent string) ([]*RemoteItem, error)

	// UploadChunkURL returns a presigned PUT URL for one chunk of an upload
	// in progress; uploadKey authorizes the chunk stream.
	UploadChunkURL(ctx context.Context, uuid string, index int64, parent, uploadKey string) (string, error)
	// DownloadChunkURL returns a presigned GET URL for one stored chunk.
	DownloadChunkURL(ctx context.Context, uuid string, index int64) (string, error)
	UploadChunk(ctx context.Context, url string, data []byte) error
	DownloadChunk(ctx context.Context, url string) ([]byte, error)
	MarkUploadDone(ctx context.Context, req *MarkUploadDoneRequest) (*MarkUploadDoneResult, error)

	MoveFile(ctx context.Context, uuid, parent string) error
	MoveFolder(ctx context.Context, uuid, parent string) error
	TrashItem(ctx context.Context, uuid, itemType string) error
	RestoreItem(ctx context.Context, uuid, itemType, parent string) error
	FavoriteItem(ctx context.Context, uuid, itemType string, value bool) error
	ChangeColor(ctx context.Context, uuid, color string) error
}
