package api

import "errors"

var (
	ErrUnavailable   = errors.New("server unavailable")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAlreadyExists = errors.New("already exists")
	ErrStorageFull   = errors.New("storage quota exceeded")
	ErrNotFound      = errors.New("not found")
)
