// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/inkwellco/corpus/pkg/embeddings"
	"github.com/inkwellco/corpus/pkg/embeddings/ollama"
	"github.com/inkwellco/corpus/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		return openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}

// Memoized returns a factory that constructs the embedder once and reuses
// it on every call. Construction errors are cached too, so a misconfigured
// provider fails fast instead of retrying on each request.
func Memoized(o *NewEmbedderOpts) func() (embeddings.Embedder, error) {
	var (
		once     sync.Once
		embedder embeddings.Embedder
		err      error
	)
	return func() (embeddings.Embedder, error) {
		once.Do(func() {
			embedder, err = NewEmbedder(o)
		})
		return embedder, err
	}
}

// Lazy wraps Memoized in the Embedder interface so callers can defer
// provider construction to the first Embed call. A construction failure
// surfaces on every call without retrying.
func Lazy(o *NewEmbedderOpts) embeddings.Embedder {
	return &lazyEmbedder{construct: Memoized(o)}
}

type lazyEmbedder struct {
	construct func() (embeddings.Embedder, error)
	built     atomic.Bool
}

func (l *lazyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embedder, err := l.construct()
	if err != nil {
		return nil, err
	}
	l.built.Store(true)
	return embedder.Embed(ctx, text)
}

func (l *lazyEmbedder) Close() error {
	if !l.built.Load() {
		return nil
	}
	embedder, err := l.construct()
	if err != nil {
		return nil
	}
	return embedder.Close()
}

var _ embeddings.Embedder = (*lazyEmbedder)(nil)
