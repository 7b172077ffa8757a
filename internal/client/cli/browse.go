package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
)

var ErrNotLoggedIn = errors.New("not logged in")

// List refreshes and prints the current folder.
func (a *App) List(ctx context.Context) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}

	items, err := a.items.ListFolder(ctx, a.cwd, a.masterKey)
	if err != nil {
		return err
	}
	a.listing = items

	if len(items) == 0 {
		printlnFn("(empty)")
		return nil
	}
	for i, item := range items {
		marker := " "
		if item.Favorited {
			marker = "*"
		}
		if item.IsFolder() {
			printlnFn(fmt.Sprintf("%3d %s d %-30s %s", i+1, marker, item.Name, item.Color))
			continue
		}
		printlnFn(fmt.Sprintf("%3d %s f %-30s %10d %s", i+1, marker, item.Name, item.Size, item.Mime))
	}
	return nil
}

// ChangeDir moves into a subfolder by name or listing index. "cd .." is not
// tracked; use "cd base" or "cd trash" to jump to a root.
func (a *App) ChangeDir(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if len(args) == 0 {
		return errors.New("usage: cd <folder>|base|trash")
	}

	switch args[0] {
	case common.ParentBase:
		a.cwd = common.ParentBase
	case common.ParentTrash:
		a.cwd = common.ParentTrash
	default:
		item, err := a.resolve(args[0])
		if err != nil {
			return err
		}
		if !item.IsFolder() {
			return fmt.Errorf("%s is not a folder", item.Name)
		}
		a.cwd = item.UUID
	}
	a.listing = nil
	return a.List(ctx)
}

// MakeDir creates a folder in the current directory.
func (a *App) MakeDir(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if len(args) == 0 {
		return errors.New("usage: mkdir <name>")
	}

	item, err := a.items.CreateFolder(ctx, args[0], a.cwd, a.masterKey)
	if err != nil {
		return err
	}
	printlnFn("Created folder", item.Name)
	return nil
}

// resolve maps a listing index ("3") or an item name to the item itself.
// Requires a previous ls in the current folder.
func (a *App) resolve(ref string) (*models.Item, error) {
	if len(a.listing) == 0 {
		return nil, errors.New("run ls first")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(a.listing) {
			return nil, fmt.Errorf("no item %d in listing", n)
		}
		return a.listing[n-1], nil
	}
	for _, item := range a.listing {
		if item.Name == ref {
			return item, nil
		}
	}
	return nil, fmt.Errorf("no item named %q", ref)
}

func (a *App) resolveAll(refs []string) ([]*models.Item, error) {
	items := make([]*models.Item, 0, len(refs))
	for _, ref := range refs {
		item, err := a.resolve(ref)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
