package index

import "errors"

var (
	// ErrInvalidState indicates an operation against a version in the
	// wrong lifecycle state.
	ErrInvalidState = errors.New("invalid version state")

	// ErrNotFound indicates the referenced version does not exist or is
	// not queryable.
	ErrNotFound = errors.New("version not found")

	// ErrUninitialized indicates no version has ever been activated.
	ErrUninitialized = errors.New("no live version")
)
