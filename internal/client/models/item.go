// Package models defines client-side data models used by the DriveKeeper
// engine and CLI.
package models

import "time"

// ItemType classifies an item as a file or folder.
type ItemType string

const (
	ItemTypeFile   ItemType = "file"
	ItemTypeFolder ItemType = "folder"
)

// Item is a file or folder as held in the local metadata store and shown in
// listings. UUID is globally unique and stable across moves; Parent always
// references a valid container or one of the virtual roots ("base", "trash",
// "links").
type Item struct {
	// UUID identifies the item.
	UUID string `json:"uuid"`

	// Name is the decrypted display name.
	Name string `json:"name"`

	// Type is "file" or "folder".
	Type ItemType `json:"type"`

	// Size in bytes. Zero for folders.
	Size int64 `json:"size"`

	// Mime is the MIME/type tag reported at upload time.
	Mime string `json:"mime,omitempty"`

	// LastModified is the client-reported modification time.
	LastModified time.Time `json:"lastModified"`

	// LastModifiedSort is a monotonic value used only for ordering listings.
	LastModifiedSort int64 `json:"lastModifiedSort"`

	// Timestamp is the coarse creation time (seconds).
	Timestamp int64 `json:"timestamp"`

	// Parent is the UUID of the containing folder or a virtual root.
	Parent string `json:"parent"`

	// Key is the per-item symmetric key. Files only.
	Key []byte `json:"key,omitempty"`

	// Chunks is the number of fixed-size chunks the file occupies. The value
	// reported by the server's mark-upload-done call is authoritative.
	Chunks int64 `json:"chunks,omitempty"`

	// Bucket and Region locate the file's chunk storage. Files only.
	Bucket string `json:"bucket,omitempty"`
	Region string `json:"region,omitempty"`

	// Color is the folder color tag. Folders only.
	Color string `json:"color,omitempty"`

	// Favorited marks the item as a favorite.
	Favorited bool `json:"favorited"`

	// Selected is UI state only and is never persisted remotely.
	Selected bool `json:"-"`
}

// IsFolder reports whether the item is a folder.
func (i *Item) IsFolder() bool { return i.Type == ItemTypeFolder }

// FileMetadata is the plaintext payload encrypted into a file's metadata
// envelope before the mark-upload-done call.
type FileMetadata struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Mime         string `json:"mime"`
	Key          []byte `json:"key"`
	LastModified int64  `json:"lastModified"`
}

// FolderMetadata is the plaintext payload encrypted into a folder's name
// envelope.
type FolderMetadata struct {
	Name string `json:"name"`
}
