package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
)

const folderNamesKey = "folderNames"

func itemsKey(parent string) string   { return "items:" + parent }
func sidebarKey(parent string) string { return "sidebar:" + parent }

// Store is the local metadata cache of item listings keyed by parent. Each
// parent owns two listings: the flat list (files and folders, browser view)
// and the sidebar list (folders only, navigation tree). A global folder-name
// index maps folder UUID to display name for breadcrumb/sidebar labels.
//
// All mutations run under one process-wide mutex, so read-modify-write
// cycles never interleave. The three structures are persisted as separate
// keys; a crash between writes can leave them inconsistent, which is
// acceptable because the cache is advisory and always refreshable from the
// server listing.
type Store struct {
	mu    sync.Mutex
	kv    KV
	names map[string]string // in-memory folder-name cache, lazily loaded
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// AddItems appends items to the parent's flat bucket and folder items to the
// sidebar bucket, and records folder names in the global index. Items whose
// UUID is already present in the bucket are skipped, so replayed socket
// events do not duplicate listings.
func (s *Store) AddItems(ctx context.Context, items []*models.Item, parent string) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	flat, err := s.loadBucket(ctx, itemsKey(parent))
	if err != nil {
		return err
	}
	side, err := s.loadBucket(ctx, sidebarKey(parent))
	if err != nil {
		return err
	}
	names, err := s.loadNames(ctx)
	if err != nil {
		return err
	}

	present := make(map[string]struct{}, len(flat))
	for _, it := range flat {
		present[it.UUID] = struct{}{}
	}

	for _, it := range items {
		if _, ok := present[it.UUID]; !ok {
			flat = append(flat, it)
			present[it.UUID] = struct{}{}
		}
		if it.IsFolder() {
			if !containsUUID(side, it.UUID) {
				side = append(side, it)
			}
			names[it.UUID] = it.Name
		}
	}

	return s.persist(ctx, parent, flat, side, names)
}

// RemoveItems deletes matching UUIDs from both of the parent's buckets.
// UUIDs that are not present are ignored, so the operation is idempotent.
func (s *Store) RemoveItems(ctx context.Context, items []*models.Item, parent string) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	flat, err := s.loadBucket(ctx, itemsKey(parent))
	if err != nil {
		return err
	}
	side, err := s.loadBucket(ctx, sidebarKey(parent))
	if err != nil {
		return err
	}

	drop := make(map[string]struct{}, len(items))
	for _, it := range items {
		drop[it.UUID] = struct{}{}
	}

	flat = filterOut(flat, drop)
	side = filterOut(side, drop)

	return s.persist(ctx, parent, flat, side, nil)
}

// ChangeItems replaces matching UUID entries in both buckets with the
// updated item records and refreshes the folder-name index.
func (s *Store) ChangeItems(ctx context.Context, items []*models.Item, parent string) error {
	if len(items) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	flat, err := s.loadBucket(ctx, itemsKey(parent))
	if err != nil {
		return err
	}
	side, err := s.loadBucket(ctx, sidebarKey(parent))
	if err != nil {
		return err
	}
	names, err := s.loadNames(ctx)
	if err != nil {
		return err
	}

	byUUID := make(map[string]*models.Item, len(items))
	for _, it := range items {
		byUUID[it.UUID] = it
	}

	for i, it := range flat {
		if repl, ok := byUUID[it.UUID]; ok {
			flat[i] = repl
		}
	}
	for i, it := range side {
		if repl, ok := byUUID[it.UUID]; ok {
			side[i] = repl
		}
	}
	for _, it := range items {
		if it.IsFolder() {
			names[it.UUID] = it.Name
		}
	}

	return s.persist(ctx, parent, flat, side, names)
}

// ChangeItem patches a single field ("name" or "color") of one folder entry
// across both buckets. A name change also refreshes the folder-name index.
func (s *Store) ChangeItem(ctx context.Context, uuid, parent, prop, value string) error {
	if prop != "name" && prop != "color" {
		return fmt.Errorf("unsupported item property %q", prop)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	flat, err := s.loadBucket(ctx, itemsKey(parent))
	if err != nil {
		return err
	}
	side, err := s.loadBucket(ctx, sidebarKey(parent))
	if err != nil {
		return err
	}

	patch := func(list []*models.Item) {
		for _, it := range list {
			if it.UUID != uuid {
				continue
			}
			switch prop {
			case "name":
				it.Name = value
			case "color":
				it.Color = value
			}
		}
	}
	patch(flat)
	patch(side)

	var names map[string]string
	if prop == "name" {
		names, err = s.loadNames(ctx)
		if err != nil {
			return err
		}
		names[uuid] = value
	}

	return s.persist(ctx, parent, flat, side, names)
}

// ClearItems resets both of the parent's buckets to empty listings.
func (s *Store) ClearItems(ctx context.Context, parent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx, parent, []*models.Item{}, []*models.Item{}, nil)
}

// Items returns the parent's flat listing; an absent bucket reads as empty.
func (s *Store) Items(ctx context.Context, parent string) ([]*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadBucket(ctx, itemsKey(parent))
}

// SidebarItems returns the parent's folders-only listing.
func (s *Store) SidebarItems(ctx context.Context, parent string) ([]*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadBucket(ctx, sidebarKey(parent))
}

// FolderName resolves a folder UUID via the global name index.
func (s *Store) FolderName(ctx context.Context, uuid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names, err := s.loadNames(ctx)
	if err != nil {
		return "", err
	}
	name, ok := names[uuid]
	if !ok {
		return "", common.ErrNotFound
	}
	return name, nil
}

// loadBucket reads one listing; missing keys read as an empty listing.
// Caller must hold mu.
func (s *Store) loadBucket(ctx context.Context, key string) ([]*models.Item, error) {
	raw, err := s.kv.Get(ctx, key, BucketMetadata)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return []*models.Item{}, nil
		}
		return nil, err
	}
	var items []*models.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("corrupt bucket %q: %w", key, err)
	}
	return items, nil
}

// loadNames reads the folder-name index, preferring the in-memory cache.
// Caller must hold mu.
func (s *Store) loadNames(ctx context.Context) (map[string]string, error) {
	if s.names != nil {
		return s.names, nil
	}
	names := map[string]string{}
	raw, err := s.kv.Get(ctx, folderNamesKey, BucketMetadata)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("corrupt folder-name index: %w", err)
		}
	}
	s.names = names
	return names, nil
}

// persist writes the mutated structures back. names may be nil when the
// operation did not touch the index. Writes are sequential and individually
// atomic; see the Store doc comment for the consistency tradeoff.
// Caller must hold mu.
func (s *Store) persist(ctx context.Context, parent string, flat, side []*models.Item, names map[string]string) error {
	b, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, itemsKey(parent), b, BucketMetadata); err != nil {
		return err
	}

	b, err = json.Marshal(side)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, sidebarKey(parent), b, BucketMetadata); err != nil {
		return err
	}

	if names != nil {
		b, err = json.Marshal(names)
		if err != nil {
			return err
		}
		if err := s.kv.Set(ctx, folderNamesKey, b, BucketMetadata); err != nil {
			return err
		}
	}
	return nil
}

func containsUUID(list []*models.Item, uuid string) bool {
	for _, it := range list {
		if it.UUID == uuid {
			return true
		}
	}
	return false
}

func filterOut(list []*models.Item, drop map[string]struct{}) []*models.Item {
	out := list[:0]
	for _, it := range list {
		if _, ok := drop[it.UUID]; !ok {
			out = append(out, it)
		}
	}
	return out
}
