package transfer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/drivekeeper/internal/client/events"
	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
)

// zipEntry is one file scheduled for the archive, with its full path inside
// the archive.
type zipEntry struct {
	path string
	item *models.Item
}

// writerSink adapts an archive entry writer to the Sink contract. Lifecycle
// belongs to the surrounding zip writer.
type writerSink struct{ w io.Writer }

func (s writerSink) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s writerSink) Close() error                { return nil }
func (s writerSink) Abort() error                { return nil }

// Zip streams the selected files and folders into dest as a single zip
// archive, without buffering the archive in memory. Folders are expanded to
// their full file trees; two entries resolving to the same archive path keep
// the first occurrence only. The assembly is one pausable transfer,
// addressable by the returned archive UUID via the archive name events.
func (e *Engine) Zip(ctx context.Context, items []*models.Item, name string, dest Sink) error {
	id := uuid.NewString()
	e.ctrl.Register(id)
	defer e.ctrl.Unregister(id)

	entries, err := e.expandZipEntries(ctx, items)
	if err != nil {
		return fmt.Errorf("failed to expand selection: %w", err)
	}

	var total int64
	for _, en := range entries {
		total += en.item.Size
	}
	m := NewMeter(id, name, total)
	e.bus.Publish(events.Event{Topic: events.TopicTransferQueued, UUID: id, Transfer: m.Snapshot(models.TransferQueued)})

	tctx, cancel := e.transferContext(ctx, id)
	defer cancel()

	err = func() error {
		if err := e.limits.Transfers.Acquire(tctx); err != nil {
			return err
		}
		defer e.limits.Transfers.Release()

		e.bus.Publish(events.Event{Topic: events.TopicTransferStarted, UUID: id, Transfer: m.Snapshot(models.TransferRunning)})

		zw := zip.NewWriter(dest)
		for i, en := range entries {
			if err := e.ctrl.Wait(tctx, id); err != nil {
				e.abortZipEntries(entries[i:], err)
				return err
			}
			w, err := zw.CreateHeader(&zip.FileHeader{
				Name:     en.path,
				Method:   zip.Deflate,
				Modified: en.item.LastModified,
			})
			if err != nil {
				e.abortZipEntries(entries[i:], err)
				return err
			}
			ow := NewOrderedWriter(writerSink{w: w})
			if err := e.streamChunks(tctx, en.item, id, ow, m); err != nil {
				e.abortZipEntries(entries[i:], err)
				return err
			}
		}
		return zw.Close()
	}()
	if err != nil {
		err = e.classify(id, err)
		e.report(id, m, err)
		if aerr := dest.Abort(); aerr != nil {
			e.logger.Warn(ctx, "failed to abort archive sink", "uuid", id, "error", aerr)
		}
		return err
	}

	if err := dest.Close(); err != nil {
		e.report(id, m, err)
		return fmt.Errorf("failed to close archive sink: %w", err)
	}
	e.bus.Publish(events.Event{Topic: events.TopicTransferDone, UUID: id, Transfer: m.Snapshot(models.TransferDone)})
	return nil
}

// abortZipEntries emits a per-item error event for every entry that will not
// make it into the archive, so the transfer list shows no stuck entries.
// Stops stay silent; the archive-level stop event covers them.
func (e *Engine) abortZipEntries(pending []zipEntry, cause error) {
	cause = fmt.Errorf("archive stream stopped: %w", cause)
	for _, en := range pending {
		e.bus.Publish(events.Event{Topic: events.TopicTransferError, UUID: en.item.UUID, Item: en.item, Err: cause})
	}
}

// expandZipEntries resolves the selection into a flat, ordered entry list.
// Folders expand concurrently; selection order is preserved and the first
// entry claiming an archive path wins.
func (e *Engine) expandZipEntries(ctx context.Context, items []*models.Item) ([]zipEntry, error) {
	lists := make([][]zipEntry, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			if it.IsFolder() {
				l, err := e.expandFolder(gctx, it, it.Name)
				if err != nil {
					return err
				}
				lists[i] = l
				return nil
			}
			lists[i] = []zipEntry{{path: it.Name, item: it}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var entries []zipEntry
	for _, l := range lists {
		for _, en := range l {
			if _, dup := seen[en.path]; dup {
				continue
			}
			seen[en.path] = struct{}{}
			entries = append(entries, en)
		}
	}
	return entries, nil
}

func (e *Engine) expandFolder(ctx context.Context, folder *models.Item, prefix string) ([]zipEntry, error) {
	children, err := e.store.Items(ctx, folder.UUID)
	if err != nil {
		return nil, err
	}
	var entries []zipEntry
	for _, child := range children {
		if child.IsFolder() {
			sub, err := e.expandFolder(ctx, child, prefix+"/"+child.Name)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sub...)
			continue
		}
		entries = append(entries, zipEntry{path: prefix + "/" + child.Name, item: child})
	}
	return entries, nil
}
