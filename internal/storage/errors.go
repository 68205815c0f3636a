package storage

import "errors"

var (
	// ErrKeyNotFound is returned when a key has never been written or was deleted
	ErrKeyNotFound = errors.New("key not found")

	// ErrUnknownBackend is returned by Open for unsupported backend names
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrStoreClosed is returned when operating on a closed store
	ErrStoreClosed = errors.New("store is closed")
)
