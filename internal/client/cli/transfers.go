package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/drivekeeper/internal/client/events"
	"github.com/dmitrijs2005/drivekeeper/internal/client/transfer"
)

// Put uploads local files into the current folder.
func (a *App) Put(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if len(args) == 0 {
		return errors.New("usage: put <file> [file...]")
	}

	done := a.watchProgress()
	defer done()

	for _, path := range args {
		item, err := a.engine.Upload(ctx, path, a.cwd, a.masterKey)
		if err != nil {
			printlnFn("Error:", fmt.Sprintf("upload %s: %s", filepath.Base(path), err.Error()))
			continue
		}
		printlnFn("Uploaded", item.Name)
	}
	return nil
}

// Get downloads an item from the current listing into the working directory.
func (a *App) Get(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if len(args) == 0 {
		return errors.New("usage: get <item> [item...]")
	}
	items, err := a.resolveAll(args)
	if err != nil {
		return err
	}

	done := a.watchProgress()
	defer done()

	for _, item := range items {
		if item.IsFolder() {
			printlnFn("Skipping folder", item.Name, "(use zip)")
			continue
		}
		if err := a.engine.DownloadToFile(ctx, item, item.Name); err != nil {
			printlnFn("Error:", fmt.Sprintf("download %s: %s", item.Name, err.Error()))
			continue
		}
		printlnFn("Downloaded", item.Name)
	}
	return nil
}

// ZipSelection streams the selected items into one local zip archive. The
// first argument is the archive file name.
func (a *App) ZipSelection(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if len(args) < 2 {
		return errors.New("usage: zip <archive.zip> <item> [item...]")
	}
	items, err := a.resolveAll(args[1:])
	if err != nil {
		return err
	}

	dest, err := transfer.NewFileSink(args[0])
	if err != nil {
		return err
	}

	done := a.watchProgress()
	defer done()

	if err := a.engine.Zip(ctx, items, args[0], dest); err != nil {
		return err
	}
	printlnFn("Wrote", args[0])
	return nil
}

func (a *App) Pause(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: pause <transfer-uuid>")
	}
	a.engine.Pause(args[0])
	return nil
}

func (a *App) Resume(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: resume <transfer-uuid>")
	}
	a.engine.Resume(args[0])
	return nil
}

func (a *App) Stop(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: stop <transfer-uuid>")
	}
	a.engine.Stop(args[0])
	return nil
}

// watchProgress prints transfer lifecycle events until the returned cancel
// function is called. Stops are not printed; they are deliberate.
func (a *App) watchProgress() func() {
	ch, cancel := a.bus.Subscribe(
		events.TopicTransferStarted,
		events.TopicTransferDone,
		events.TopicTransferError,
		events.TopicStorageFull,
	)
	go func() {
		for ev := range ch {
			switch ev.Topic {
			case events.TopicTransferStarted:
				printlnFn(fmt.Sprintf("[%s] started %s (%d bytes)", ev.UUID, ev.Transfer.Name, ev.Transfer.Total))
			case events.TopicTransferDone:
				printlnFn(fmt.Sprintf("[%s] done %s", ev.UUID, ev.Transfer.Name))
			case events.TopicTransferError:
				printlnFn(fmt.Sprintf("[%s] failed: %s", ev.UUID, ev.Err.Error()))
			case events.TopicStorageFull:
				printlnFn("Storage quota exceeded. Free space or upgrade your plan.")
			}
		}
	}()
	return cancel
}
