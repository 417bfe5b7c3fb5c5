package vector

import "errors"

var (
	// ErrNotFound is returned when a collection is not found in the vector store.
	ErrNotFound = errors.New("collection not found")

	// ErrExists is returned when creating a collection whose name is taken.
	ErrExists = errors.New("collection already exists")

	// ErrDimension is returned when an embedding's dimensionality does not
	// match the collection's.
	ErrDimension = errors.New("embedding dimensionality mismatch")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
