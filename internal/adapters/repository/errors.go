package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidLimit    = errors.New("invalid limit")
	ErrClosed          = errors.New("store closed")
)
