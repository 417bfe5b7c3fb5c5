// Package memory provides an in-process vector driver using brute-force
// cosine similarity. It is the default for development and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/inkwellco/corpus/pkg/vector"
)

type collection struct {
	dimensions int
	records    []vector.Record
}

// Driver implements vector.Driver backed by process memory.
// Collections are append-only; concurrent readers and writers are safe.
type Driver struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewDriver creates an empty in-memory vector driver.
func NewDriver() *Driver {
	return &Driver{
		collections: make(map[string]*collection),
	}
}

// CreateCollection allocates a new empty collection.
func (d *Driver) CreateCollection(_ context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", vector.ErrDimension, dimensions)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collections[name]; ok {
		return fmt.Errorf("%w: %s", vector.ErrExists, name)
	}

	d.collections[name] = &collection{dimensions: dimensions}
	return nil
}

// DropCollection removes a collection and its records.
func (d *Driver) DropCollection(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collections[name]; !ok {
		return fmt.Errorf("%w: %s", vector.ErrNotFound, name)
	}

	delete(d.collections, name)
	return nil
}

// Add appends records to a collection.
func (d *Driver) Add(_ context.Context, name string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", vector.ErrNotFound, name)
	}

	for _, r := range records {
		if len(r.Embedding) != c.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, collection %s has %d",
				vector.ErrDimension, r.ID, len(r.Embedding), name, c.dimensions)
		}
	}

	c.records = append(c.records, records...)
	return nil
}

// Query scores every record by cosine similarity and returns the topK,
// ordered by descending score. Ties preserve insertion order so results
// are deterministic.
func (d *Driver) Query(_ context.Context, name string, embedding []float32, topK int) ([]vector.Result, error) {
	if topK <= 0 {
		topK = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vector.ErrNotFound, name)
	}

	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %s has %d",
			vector.ErrDimension, len(embedding), name, c.dimensions)
	}

	results := make([]vector.Result, 0, len(c.records))
	for _, r := range c.records {
		results = append(results, vector.Result{
			Record: r,
			Score:  cosine(embedding, r.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

// Count returns the number of records in a collection.
func (d *Driver) Count(_ context.Context, name string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.collections[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", vector.ErrNotFound, name)
	}

	return len(c.records), nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}

// cosine computes the cosine similarity between two equal-length vectors.
// Zero vectors score zero.
func cosine(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

var _ vector.Driver = (*Driver)(nil)
