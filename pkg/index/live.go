package index

import (
	"context"
	"fmt"
)

// Activate atomically repoints the live pointer at a READY version.
// Writers are serialized; concurrent Current readers observe either the
// old or the new pointer, never a partial update.
func (s *Store) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.manifest.find(id)
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if v.Status != StatusReady {
		return fmt.Errorf("%w: cannot activate %s version %s", ErrInvalidState, v.Status, id)
	}

	previous := s.manifest.Live
	s.manifest.Live = id

	if err := saveManifest(s.dir, s.manifest); err != nil {
		s.manifest.Live = previous
		return err
	}

	s.live.Store(&id)

	s.logger.Info("activated version",
		"version", id,
		"previous", previous,
	)

	return nil
}

// Rollback repoints the live pointer at a previously READY version. It is
// Activate under its recovery-path name; callers track which id to return to.
func (s *Store) Rollback(ctx context.Context, id string) error {
	return s.Activate(ctx, id)
}

// Current returns the live version id. Lock-free; safe on every query path.
func (s *Store) Current() (string, error) {
	p := s.live.Load()
	if p == nil {
		return "", ErrUninitialized
	}
	return *p, nil
}
