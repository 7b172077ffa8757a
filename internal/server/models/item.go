package models

import "time"

// Item is a stored drive entry, file or folder. Metadata and Nonce hold the
// client-sealed envelope; the server never sees plaintext names. NameHash is
// the keyed digest of the lowercased name used for collision checks inside a
// parent.
type Item struct {
	UUID      string
	UserID    string
	Type      string
	Parent    string
	Metadata  []byte
	Nonce     []byte
	NameHash  string
	Size      int64
	Chunks    int64
	Mime      string
	Bucket    string
	Region    string
	Color     string
	Favorited bool
	UpdatedAt time.Time
}

// Upload tracks a chunked upload in progress. Chunks is the highest chunk
// index the server has issued a put URL for, plus one; it becomes the
// authoritative chunk count when the upload is finalized.
type Upload struct {
	UUID      string
	UserID    string
	Parent    string
	UploadKey string
	Chunks    int64
	CreatedAt time.Time
}
