// Package filex contains small filesystem helpers shared by the transfer
// engine and the CLI.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureSubDir creates (if needed) and returns a subdirectory of the current
// working directory.
func EnsureSubDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// ChunkCount returns ceil(size/chunkSize), the number of fixed-size chunks a
// file of the given size occupies. Zero-byte files still occupy one chunk so
// a record exists remotely.
func ChunkCount(size, chunkSize int64) int64 {
	if chunkSize <= 0 {
		return 0
	}
	n := (size + chunkSize - 1) / chunkSize
	if n == 0 {
		n = 1
	}
	return n
}

// ReadChunkAt reads chunk number index of the file at the given chunk size.
// The final chunk may be shorter than chunkSize. Reading a chunk that starts
// at or past EOF returns an empty slice and no error.
func ReadChunkAt(r io.ReaderAt, index, chunkSize, fileSize int64) ([]byte, error) {
	offset := index * chunkSize
	if offset >= fileSize {
		return nil, nil
	}
	n := chunkSize
	if offset+n > fileSize {
		n = fileSize - offset
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read chunk %d: %w", index, err)
	}
	return buf, nil
}
