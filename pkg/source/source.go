// Package source supplies raw documents to the ingestion pipeline.
package source

import "context"

// Document is a named piece of source text. Documents are read-only once
// ingested.
type Document struct {
	// ID is a stable identifier derived from the document's origin.
	ID string

	// Source is a human-readable label, e.g. a relative file path.
	Source string

	// Text is the raw content.
	Text string
}

// Source yields a batch of documents for ingestion.
type Source interface {
	// Documents returns the documents in a stable order.
	Documents(ctx context.Context) ([]Document, error)
}
