package repository

import "errors"

// Sentinel errors surfaced by repositories. ErrDuplicateKey and
// ErrVersionConflict are transient contention signals consumed by the rating
// service; they never reach HTTP callers.
var (
	ErrNotFound        = errors.New("repository: not found")
	ErrDuplicateKey    = errors.New("repository: duplicate key")
	ErrVersionConflict = errors.New("repository: version conflict")
)
