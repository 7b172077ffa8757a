package transfer

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/drivekeeper/internal/client/events"
	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
)

// DownloadToFile streams the decrypted file into path. A stopped or failed
// download aborts the sink, so no partial file is left behind.
func (e *Engine) DownloadToFile(ctx context.Context, item *models.Item, path string) error {
	sink, err := NewFileSink(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return e.Download(ctx, item, sink)
}

// DownloadBytes returns the whole decrypted payload in memory, for previews.
// SVG content is sanitized before it is handed to the caller.
func (e *Engine) DownloadBytes(ctx context.Context, item *models.Item) ([]byte, error) {
	sink := NewBufferSink()
	if err := e.Download(ctx, item, sink); err != nil {
		return nil, err
	}
	data := sink.Bytes()
	if isSVG(item.Name, item.Mime) {
		data = sanitizeSVG(data)
	}
	return data, nil
}

// Download fetches, decrypts and reassembles the file into sink. Chunks are
// fetched concurrently under the shared pools; writes are strictly ordered
// by chunk index.
func (e *Engine) Download(ctx context.Context, item *models.Item, sink Sink) error {
	e.ctrl.Register(item.UUID)
	defer e.ctrl.Unregister(item.UUID)

	m := NewMeter(item.UUID, item.Name, item.Size)
	e.bus.Publish(events.Event{Topic: events.TopicTransferQueued, UUID: item.UUID, Transfer: m.Snapshot(models.TransferQueued)})

	tctx, cancel := e.transferContext(ctx, item.UUID)
	defer cancel()

	err := func() error {
		if err := e.limits.Transfers.Acquire(tctx); err != nil {
			return err
		}
		defer e.limits.Transfers.Release()

		e.bus.Publish(events.Event{Topic: events.TopicTransferStarted, UUID: item.UUID, Transfer: m.Snapshot(models.TransferRunning)})

		ow := NewOrderedWriter(sink)
		return e.streamChunks(tctx, item, item.UUID, ow, m)
	}()
	if err != nil {
		err = e.classify(item.UUID, err)
		e.report(item.UUID, m, err)
		if aerr := sink.Abort(); aerr != nil {
			e.logger.Warn(ctx, "failed to abort download sink", "uuid", item.UUID, "error", aerr)
		}
		return err
	}

	if err := sink.Close(); err != nil {
		e.report(item.UUID, m, err)
		return fmt.Errorf("failed to close sink: %w", err)
	}
	e.bus.Publish(events.Event{Topic: events.TopicTransferDone, UUID: item.UUID, Transfer: m.Snapshot(models.TransferDone)})
	return nil
}

// streamChunks fetches all chunks of item concurrently and feeds them to ow
// in index order. ctrlID addresses the pause/stop gate, which is the item's
// own UUID for single-file downloads and the archive's UUID inside a zip
// assembly. The caller holds the active-transfer slot.
func (e *Engine) streamChunks(ctx context.Context, item *models.Item, ctrlID string, ow *OrderedWriter, m *Meter) error {
	g, gctx := errgroup.WithContext(ctx)
	for index := int64(0); index < item.Chunks; index++ {
		index := index
		g.Go(func() error {
			if err := e.ctrl.Wait(gctx, ctrlID); err != nil {
				return err
			}
			// Admission bounds how many fetched chunks this transfer can
			// buffer ahead of the write cursor.
			if err := ow.Admit(gctx, index, e.limits.Writers.Cap()); err != nil {
				return err
			}

			if err := e.limits.Threads.Acquire(gctx); err != nil {
				return err
			}
			sealed, err := e.fetchChunk(gctx, item, ctrlID, index)
			e.limits.Threads.Release()
			if err != nil {
				return fmt.Errorf("chunk %d: %w", index, err)
			}

			// The writer slot is taken only once this chunk is next in
			// line, so a held slot never waits on another chunk.
			if err := ow.WaitTurn(gctx, index); err != nil {
				return err
			}
			if err := e.limits.Writers.Acquire(gctx); err != nil {
				return err
			}

			plain, err := cryptox.DecryptChunk(sealed, item.Key)
			if err != nil {
				e.limits.Writers.Release()
				return fmt.Errorf("chunk %d: %w", index, err)
			}

			err = ow.WriteChunk(gctx, index, plain)
			e.limits.Writers.Release()
			if err != nil {
				return err
			}
			if m != nil {
				m.Add(len(plain))
				e.bus.Publish(events.Event{Topic: events.TopicTransferProgress, UUID: ctrlID, Transfer: m.Snapshot(models.TransferRunning)})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ow.Fail(err)
		return err
	}
	return nil
}

func (e *Engine) fetchChunk(ctx context.Context, item *models.Item, ctrlID string, index int64) ([]byte, error) {
	var sealed []byte
	err := e.withRetry(ctx, e.cfg.MaxDownloadRetries, func(ctx context.Context) error {
		if err := e.ctrl.Wait(ctx, ctrlID); err != nil {
			return err
		}
		url, err := e.api.DownloadChunkURL(ctx, item.UUID, index)
		if err != nil {
			return retryable(err)
		}
		data, err := e.api.DownloadChunk(ctx, url)
		if err != nil {
			return retryable(err)
		}
		sealed = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sealed, nil
}

func isSVG(name, mimeType string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".svg") ||
		strings.Contains(strings.ToLower(mimeType), "svg")
}
