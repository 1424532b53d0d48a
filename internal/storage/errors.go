package storage

import "errors"

// Sentinel errors returned by every store implementation. Callers match them
// with errors.Is; adapters may wrap them with driver detail.
var (
	ErrNotFound     = errors.New("storage: record not found")
	ErrDuplicateKey = errors.New("storage: key already recorded")
	ErrInvalidInput = errors.New("storage: invalid input")
)
