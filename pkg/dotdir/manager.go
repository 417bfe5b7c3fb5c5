// Package dotdir manages the .corpus/ and ~/.corpus directories.
//
// The dotdir holds everything corpus persists for a project: config.toml,
// the version manifest, and the sqlite-vec database when the sqlite vector
// store is configured. A local ./.corpus directory takes precedence over the
// shared ~/.corpus directory so that each project can carry its own index.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the corpus directory.
	dirName = ".corpus"

	// envDir overrides directory resolution when set.
	envDir = "CORPUS_DIR"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .corpus/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. CORPUS_DIR environment variable (created if missing)
//  3. Local ./.corpus/ dir, if it exists
//  4. Home ~/.corpus/ dir, if it exists
//  5. Empty string when nothing resolves
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir == "" {
		overrideDir = os.Getenv(envDir)
	}

	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating corpus directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	if dir, ok := m.localDir(); ok {
		return filepath.Abs(dir)
	}

	if dir, ok := m.homeDir(); ok {
		return filepath.Abs(dir)
	}

	return "", nil
}

// localDir reports whether a .corpus/ directory exists in the current
// working directory.
func (m *Manager) localDir() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}

	dir := filepath.Join(cwd, dirName)
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}

// homeDir reports whether a .corpus/ directory exists in the user's home
// directory.
func (m *Manager) homeDir() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}

	dir := filepath.Join(home, dirName)
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}
