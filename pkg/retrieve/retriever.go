// Package retrieve answers similarity queries against the live version.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inkwellco/corpus/pkg/embeddings"
	"github.com/inkwellco/corpus/pkg/index"
	"github.com/inkwellco/corpus/pkg/vector"
)

// ErrRetrievalUnavailable indicates no live version has ever been activated.
// Callers decide how to degrade, e.g. answer without retrieved context.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// DefaultTopK is used when the caller passes a non-positive k.
const DefaultTopK = 5

// Retriever embeds query text and searches the live version.
type Retriever struct {
	store    *index.Store
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// Opts configures a Retriever.
type Opts struct {
	Store    *index.Store
	Embedder embeddings.Embedder
	Logger   *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(o Opts) (*Retriever, error) {
	if o.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if o.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	return &Retriever{
		store:    o.Store,
		embedder: o.Embedder,
		logger:   o.Logger,
	}, nil
}

// Retrieve returns the topK most similar chunks to the query text, ordered
// by descending score. The live pointer is read once, so the whole query
// runs against a single version even if a swap lands mid-flight.
//
// Embedding failures are not retried here: a live query fails fast and the
// consumer chooses its fallback.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, topK int) ([]vector.Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	versionID, err := r.store.Current()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	embedding, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.store.Query(ctx, versionID, embedding, topK)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("retrieved chunks",
		"version", versionID,
		"top_k", topK,
		"results", len(results),
	)

	return results, nil
}
