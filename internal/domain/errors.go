package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict indicates a conditional write lost against a newer revision.
	ErrVersionConflict = errors.New("version conflict")
)
