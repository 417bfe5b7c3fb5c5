package testutils

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// FailFirst causes the first N calls to fail regardless of input,
	// for exercising retry paths.
	FailFirst int32

	calls atomic.Int32
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	call := m.calls.Add(1)

	if call <= m.FailFirst {
		return nil, fmt.Errorf("mock embedding failure on call %d", call)
	}

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Return a default embedding for any text
	return []float32{0.1, 0.2, 0.3}, nil
}

// Calls reports how many times Embed has been invoked.
func (m *MockEmbedder) Calls() int {
	return int(m.calls.Load())
}

func (m *MockEmbedder) Close() error {
	return nil
}
