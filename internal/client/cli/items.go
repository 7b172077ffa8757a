package cli

import (
	"context"
	"errors"
)

// Move sends the selected items into a destination folder. The destination
// is the last argument, resolved like any other item reference (or "base").
func (a *App) Move(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if len(args) < 2 {
		return errors.New("usage: mv <item> [item...] <dest-folder>")
	}

	destRef := args[len(args)-1]
	dest := destRef
	if destRef != "base" {
		folder, err := a.resolve(destRef)
		if err != nil {
			return err
		}
		dest = folder.UUID
	}

	items, err := a.resolveAll(args[:len(args)-1])
	if err != nil {
		return err
	}
	return a.items.MoveItems(ctx, items, dest)
}

// Trash moves the selected items into the trash root.
func (a *App) Trash(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if len(args) == 0 {
		return errors.New("usage: trash <item> [item...]")
	}
	items, err := a.resolveAll(args)
	if err != nil {
		return err
	}
	return a.items.TrashItems(ctx, items)
}

// Restore puts trashed items back. Run it from the trash listing (cd trash).
func (a *App) Restore(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if len(args) == 0 {
		return errors.New("usage: restore <item> [item...]")
	}
	items, err := a.resolveAll(args)
	if err != nil {
		return err
	}
	return a.items.RestoreItems(ctx, items)
}

// Favorite toggles the favorite flag on the selected items.
func (a *App) Favorite(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if len(args) == 0 {
		return errors.New("usage: fav <item> [item...]")
	}
	items, err := a.resolveAll(args)
	if err != nil {
		return err
	}
	value := true
	if len(items) > 0 && items[0].Favorited {
		value = false
	}
	return a.items.FavoriteItems(ctx, items, value)
}

// Color tags the selected folders with a color.
func (a *App) Color(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if len(args) < 2 {
		return errors.New("usage: color <color> <folder> [folder...]")
	}
	items, err := a.resolveAll(args[1:])
	if err != nil {
		return err
	}
	return a.items.ChangeColor(ctx, items, args[0])
}
