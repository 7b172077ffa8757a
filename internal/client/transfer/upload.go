package transfer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
	"github.com/dmitrijs2005/drivekeeper/internal/client/events"
	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
	"github.com/dmitrijs2005/drivekeeper/internal/filex"
)

var (
	ErrEmptyKey = errors.New("missing key material")
)

// Upload encrypts and uploads the file at path into the folder parent,
// returning the stored item record. The caller's master key seals the
// metadata envelope; every chunk is sealed with a fresh per-file key.
//
// Errors follow the engine taxonomy: a stopped transfer returns
// common.ErrStopped and is reported silently, quota exhaustion raises the
// storage-full prompt, a name collision returns api.ErrAlreadyExists, and
// everything else is published as a per-item transfer error.
func (e *Engine) Upload(ctx context.Context, path, parent string, masterKey []byte) (*models.Item, error) {
	if len(masterKey) == 0 {
		return nil, ErrEmptyKey
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	name := filepath.Base(path)
	size := info.Size()

	if err := e.checkQuota(ctx, size); err != nil {
		e.bus.Publish(events.Event{Topic: events.TopicStorageFull, Err: err})
		return nil, err
	}

	fileKey, err := cryptox.NewFileKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate file key: %w", err)
	}

	id := uuid.NewString()
	uploadKey, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload key: %w", err)
	}
	chunks := filex.ChunkCount(size, e.cfg.ChunkSize)

	e.ctrl.Register(id)
	defer e.ctrl.Unregister(id)

	m := NewMeter(id, name, size)
	e.bus.Publish(events.Event{Topic: events.TopicTransferQueued, UUID: id, Transfer: m.Snapshot(models.TransferQueued)})

	item, err := e.runUpload(ctx, f, &uploadState{
		id:        id,
		name:      name,
		parent:    parent,
		size:      size,
		chunks:    chunks,
		fileKey:   fileKey,
		uploadKey: uploadKey,
		masterKey: masterKey,
		modTime:   info.ModTime(),
		meter:     m,
	})
	if err != nil {
		err = e.classify(id, err)
		e.report(id, m, err)
		return nil, err
	}

	if err := e.store.AddItems(ctx, []*models.Item{item}, parent); err != nil {
		e.logger.Error(ctx, "failed to cache uploaded item", "uuid", id, "error", err)
	}
	e.bus.Publish(events.Event{Topic: events.TopicItemUploaded, UUID: id, Parent: parent, Item: item})
	e.bus.Publish(events.Event{Topic: events.TopicTransferDone, UUID: id, Transfer: m.Snapshot(models.TransferDone)})

	if strings.HasPrefix(item.Mime, "image/") && !isSVG(item.Name, item.Mime) {
		e.makeThumbnail(ctx, f, item)
	}

	return item, nil
}

type uploadState struct {
	id        string
	name      string
	parent    string
	size      int64
	chunks    int64
	fileKey   []byte
	uploadKey string
	masterKey []byte
	modTime   time.Time
	meter     *Meter
}

func (e *Engine) runUpload(ctx context.Context, f *os.File, st *uploadState) (*models.Item, error) {
	tctx, cancel := e.transferContext(ctx, st.id)
	defer cancel()

	if err := e.limits.Transfers.Acquire(tctx); err != nil {
		return nil, err
	}
	defer e.limits.Transfers.Release()

	e.bus.Publish(events.Event{Topic: events.TopicTransferStarted, UUID: st.id, Transfer: st.meter.Snapshot(models.TransferRunning)})

	var done atomic.Int64
	g, gctx := errgroup.WithContext(tctx)
	for index := int64(0); index < st.chunks; index++ {
		index := index
		g.Go(func() error {
			if err := e.ctrl.Wait(gctx, st.id); err != nil {
				return err
			}
			if err := e.limits.Threads.Acquire(gctx); err != nil {
				return err
			}
			defer e.limits.Threads.Release()

			if err := e.uploadChunk(gctx, f, st, index); err != nil {
				return fmt.Errorf("chunk %d: %w", index, err)
			}
			done.Add(1)
			e.bus.Publish(events.Event{Topic: events.TopicTransferProgress, UUID: st.id, Transfer: st.meter.Snapshot(models.TransferRunning)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := e.ctrl.Wait(tctx, st.id); err != nil {
		return nil, err
	}

	return e.finalizeUpload(tctx, st)
}

func (e *Engine) uploadChunk(ctx context.Context, f *os.File, st *uploadState, index int64) error {
	plain, err := filex.ReadChunkAt(f, index, e.cfg.ChunkSize, st.size)
	if err != nil {
		return err
	}
	sealed, err := cryptox.EncryptChunk(plain, st.fileKey)
	if err != nil {
		return err
	}

	err = e.withRetry(ctx, e.cfg.MaxUploadRetries, func(ctx context.Context) error {
		if err := e.ctrl.Wait(ctx, st.id); err != nil {
			return err
		}
		url, err := e.api.UploadChunkURL(ctx, st.id, index, st.parent, st.uploadKey)
		if err != nil {
			return retryable(err)
		}
		return retryable(e.api.UploadChunk(ctx, url, sealed))
	})
	if err != nil {
		return err
	}

	st.meter.Add(len(plain))
	return nil
}

func (e *Engine) finalizeUpload(ctx context.Context, st *uploadState) (*models.Item, error) {
	mimeType := mime.TypeByExtension(filepath.Ext(st.name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	meta := &models.FileMetadata{
		Name:         st.name,
		Size:         st.size,
		Mime:         mimeType,
		Key:          st.fileKey,
		LastModified: st.modTime.UnixMilli(),
	}
	sealed, nonce, err := cryptox.EncryptMetadata(meta, st.masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to seal metadata: %w", err)
	}

	res, err := e.api.MarkUploadDone(ctx, &api.MarkUploadDoneRequest{
		UUID:      st.id,
		Parent:    st.parent,
		Metadata:  sealed,
		Nonce:     nonce,
		NameHash:  cryptox.NameHash(st.name),
		Size:      st.size,
		Chunks:    st.chunks,
		Mime:      mimeType,
		UploadKey: st.uploadKey,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &models.Item{
		UUID:             st.id,
		Name:             st.name,
		Type:             models.ItemTypeFile,
		Size:             st.size,
		Mime:             mimeType,
		LastModified:     st.modTime,
		LastModifiedSort: st.modTime.UnixMilli(),
		Timestamp:        now.Unix(),
		Parent:           st.parent,
		Key:              st.fileKey,
		// the server may correct the chunk estimate
		Chunks: res.Chunks,
		Bucket: res.Bucket,
		Region: res.Region,
	}, nil
}

// checkQuota is a best-effort guard against starting an upload that cannot
// fit. The server enforces the quota authoritatively at mark-upload-done.
func (e *Engine) checkQuota(ctx context.Context, size int64) error {
	q, err := e.api.GetQuota(ctx)
	if err != nil {
		e.logger.Warn(ctx, "quota check skipped", "error", err)
		return nil
	}
	if q.Max > 0 && q.Used+size > q.Max {
		return api.ErrStorageFull
	}
	return nil
}
