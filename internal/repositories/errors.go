package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist. Wrapped
	// foreign key violations (23503) also surface as ErrNotFound since the
	// referenced row is the thing that is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness
	// constraint, including a self-follow.
	ErrConflict = errors.New("record conflict")
)
