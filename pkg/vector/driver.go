// Package vector provides interfaces and implementations for vector storage
// and similarity search over named collections.
package vector

import "context"

// Record is a stored chunk with its embedding and citation metadata.
type Record struct {
	// ID is the unique chunk identifier within its collection
	// (typically "<document id>:<sequence>").
	ID string

	// DocumentID identifies the source document.
	DocumentID string

	// Source is the human-readable source label (e.g. a filename).
	Source string

	// Seq is the chunk's sequence index within its document.
	Seq int

	// Start and End are rune offsets of the chunk within its document.
	Start int
	End   int

	// Text is the chunk text.
	Text string

	// Embedding is the vector representation of Text.
	Embedding []float32
}

// Result is a search hit with its similarity score (higher = more similar).
type Result struct {
	Record

	Score float32
}

// Driver handles storage and retrieval of vector embeddings grouped into
// named collections. Collections are created once, appended to, queried,
// and eventually dropped as a whole; individual records are never mutated.
type Driver interface {
	// CreateCollection allocates a new empty collection with the given
	// fixed embedding dimensionality. Fails if the name is already taken.
	CreateCollection(ctx context.Context, name string, dimensions int) error

	// DropCollection removes a collection and all of its records.
	// Returns ErrNotFound if the collection does not exist.
	DropCollection(ctx context.Context, name string) error

	// Add appends records to a collection. Record embeddings must match
	// the collection's dimensionality.
	Add(ctx context.Context, collection string, records []Record) error

	// Query finds the topK most similar records to the given embedding,
	// ordered by descending score.
	Query(ctx context.Context, collection string, embedding []float32, topK int) ([]Result, error)

	// Count returns the number of records in a collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
