// Package index tracks immutable ingestion versions and the live pointer.
//
// Version bookkeeping lives in a TOML manifest in the index directory;
// the embedding records themselves live in a vector.Driver collection per
// version. Versions are write-once: they accept records while BUILDING and
// become immutable once READY.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkwellco/corpus/pkg/vector"
)

// Store manages versions on top of a vector driver.
type Store struct {
	driver     vector.Driver
	logger     *slog.Logger
	dir        string
	dimensions int

	mu       sync.RWMutex
	manifest *manifest

	// live is read lock-free by retrieval; writes are serialized by mu.
	live atomic.Pointer[string]
}

// Opts configures a Store.
type Opts struct {
	// Driver stores and queries embedding records.
	Driver vector.Driver

	// Dir is the index directory holding the manifest.
	Dir string

	// Dimensions is the embedding dimensionality for new versions.
	Dimensions int

	Logger *slog.Logger
}

// NewStore opens the index at o.Dir, creating it if needed. A previously
// activated live version is restored from the manifest.
func NewStore(o Opts) (*Store, error) {
	if o.Driver == nil {
		return nil, fmt.Errorf("vector driver is required")
	}
	if o.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", vector.ErrDimension, o.Dimensions)
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	m, err := loadManifest(o.Dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		driver:     o.Driver,
		logger:     o.Logger,
		dir:        o.Dir,
		dimensions: o.Dimensions,
		manifest:   m,
	}

	if m.Live != "" {
		if v := m.find(m.Live); v != nil && v.Status == StatusReady {
			id := m.Live
			s.live.Store(&id)
		} else {
			s.logger.Warn("manifest live pointer targets an unusable version, ignoring",
				"version", m.Live,
			)
		}
	}

	s.logger.Debug("opened index",
		"dir", o.Dir,
		"versions", len(m.Versions),
		"live", m.Live,
	)

	return s, nil
}

// Dimensions returns the embedding dimensionality enforced for new versions.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// CreateVersion allocates a new version in BUILDING status and its backing
// collection.
func (s *Store) CreateVersion(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.manifest.Seq + 1
	id := versionID(seq)
	collection := collectionName(id)

	if err := s.driver.CreateCollection(ctx, collection, s.dimensions); err != nil {
		return "", fmt.Errorf("creating collection for %s: %w", id, err)
	}

	s.manifest.Seq = seq
	s.manifest.Versions = append(s.manifest.Versions, &Version{
		ID:         id,
		Collection: collection,
		Status:     StatusBuilding,
		Dimensions: s.dimensions,
		CreatedAt:  time.Now().UTC(),
	})

	if err := saveManifest(s.dir, s.manifest); err != nil {
		return "", err
	}

	s.logger.Info("created version", "version", id)

	return id, nil
}

// Append adds embedding records to a BUILDING version.
func (s *Store) Append(ctx context.Context, id string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	v := s.manifest.find(id)
	if v == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if v.Status != StatusBuilding {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot append to %s version %s", ErrInvalidState, v.Status, id)
	}
	for _, r := range records {
		if len(r.Embedding) != v.Dimensions {
			s.mu.Unlock()
			return fmt.Errorf("%w: record %s has %d dimensions, version %s has %d",
				vector.ErrDimension, r.ID, len(r.Embedding), id, v.Dimensions)
		}
	}
	collection := v.Collection
	s.mu.Unlock()

	// Concurrent appenders for one batch are safe: the driver serializes
	// writes and the count below is re-locked.
	if err := s.driver.Add(ctx, collection, records); err != nil {
		return fmt.Errorf("appending records to %s: %w", id, err)
	}

	s.mu.Lock()
	v.Records += len(records)
	s.mu.Unlock()

	return nil
}

// Finalize transitions a version BUILDING -> READY. A version with no
// records cannot be finalized.
func (s *Store) Finalize(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.manifest.find(id)
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if v.Status != StatusBuilding {
		return fmt.Errorf("%w: cannot finalize %s version %s", ErrInvalidState, v.Status, id)
	}
	if v.Records == 0 {
		return fmt.Errorf("%w: version %s has no records", ErrInvalidState, id)
	}

	v.Status = StatusReady
	v.FinalizedAt = time.Now().UTC()

	if err := saveManifest(s.dir, s.manifest); err != nil {
		return err
	}

	s.logger.Info("finalized version",
		"version", id,
		"records", v.Records,
	)

	return nil
}

// MarkFailed transitions a version to FAILED. Terminal; repeated calls are
// a no-op so cancellation paths can call it unconditionally.
func (s *Store) MarkFailed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.manifest.find(id)
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if v.Status == StatusFailed {
		return nil
	}
	if v.Status != StatusBuilding {
		return fmt.Errorf("%w: cannot fail %s version %s", ErrInvalidState, v.Status, id)
	}

	v.Status = StatusFailed

	if err := saveManifest(s.dir, s.manifest); err != nil {
		return err
	}

	s.logger.Warn("marked version failed", "version", id)

	return nil
}

// Query returns the topK most similar records from a READY version.
func (s *Store) Query(ctx context.Context, id string, embedding []float32, topK int) ([]vector.Result, error) {
	s.mu.RLock()
	v := s.manifest.find(id)
	if v == nil || v.Status != StatusReady {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: no queryable version %s", ErrNotFound, id)
	}
	collection := v.Collection
	s.mu.RUnlock()

	results, err := s.driver.Query(ctx, collection, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("querying version %s: %w", id, err)
	}

	return results, nil
}

// Delete removes a version and its records. The live version and versions
// still BUILDING cannot be deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.manifest.find(id)
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.manifest.Live == id {
		return fmt.Errorf("%w: version %s is live", ErrInvalidState, id)
	}
	if v.Status == StatusBuilding {
		return fmt.Errorf("%w: version %s is still building", ErrInvalidState, id)
	}

	// Retired versions have already dropped their collection.
	if v.Status != StatusRetired {
		if err := s.driver.DropCollection(ctx, v.Collection); err != nil {
			return fmt.Errorf("dropping collection for %s: %w", id, err)
		}
	}

	kept := s.manifest.Versions[:0]
	for _, entry := range s.manifest.Versions {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	s.manifest.Versions = kept

	if err := saveManifest(s.dir, s.manifest); err != nil {
		return err
	}

	s.logger.Info("deleted version", "version", id)

	return nil
}

// DefaultRetentionKeep is how many non-live READY versions Prune keeps
// when the caller does not say otherwise.
const DefaultRetentionKeep = 3

// Prune retires READY versions beyond the keep most recent, excluding the
// live version. Retired versions drop their records but keep a manifest
// entry for history. Returns the retired ids.
func (s *Store) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []*Version
	for _, v := range s.manifest.Versions {
		if v.Status == StatusReady && v.ID != s.manifest.Live {
			ready = append(ready, v)
		}
	}

	// Version ids are zero-padded, so lexical order is creation order.
	sort.Slice(ready, func(i, j int) bool { return ready[i].ID > ready[j].ID })

	if len(ready) <= keep {
		return nil, nil
	}

	var retired []string
	for _, v := range ready[keep:] {
		if err := s.driver.DropCollection(ctx, v.Collection); err != nil {
			return retired, fmt.Errorf("dropping collection for %s: %w", v.ID, err)
		}
		v.Status = StatusRetired
		retired = append(retired, v.ID)
	}

	if err := saveManifest(s.dir, s.manifest); err != nil {
		return retired, err
	}

	s.logger.Info("pruned versions",
		"retired", len(retired),
		"keep", keep,
	)

	return retired, nil
}

// Versions returns a snapshot of all version entries, oldest first.
func (s *Store) Versions() []Version {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Version, len(s.manifest.Versions))
	for i, v := range s.manifest.Versions {
		out[i] = *v
	}
	return out
}

// Version returns a snapshot of one version entry.
func (s *Store) Version(id string) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.manifest.find(id)
	if v == nil {
		return Version{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *v, nil
}

// Close closes the underlying vector driver.
func (s *Store) Close() error {
	return s.driver.Close()
}
