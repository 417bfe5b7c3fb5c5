package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxFileSize caps individual files; larger files are skipped rather than
// truncated.
const MaxFileSize = 10 * 1024 * 1024

// defaultExtensions are the file types walked by default.
var defaultExtensions = []string{".md", ".txt", ".rst", ".adoc", ".html"}

// Filesystem walks a directory tree and yields one document per text file.
type Filesystem struct {
	root       string
	extensions map[string]bool
	logger     *slog.Logger
}

// FilesystemOpts configures a Filesystem source.
type FilesystemOpts struct {
	// Root is the directory to walk.
	Root string

	// Extensions overrides the default accepted file extensions.
	Extensions []string

	Logger *slog.Logger
}

// NewFilesystem creates a filesystem document source rooted at o.Root.
func NewFilesystem(o FilesystemOpts) (*Filesystem, error) {
	info, err := os.Stat(o.Root)
	if err != nil {
		return nil, fmt.Errorf("stating source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", o.Root)
	}

	exts := o.Extensions
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}

	return &Filesystem{
		root:       o.Root,
		extensions: extSet,
		logger:     o.Logger,
	}, nil
}

// Documents walks the root and reads every accepted file. The result is
// sorted by relative path so repeated walks are deterministic.
func (f *Filesystem) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			// Skip hidden directories like .git and .corpus.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !f.extensions[ext] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stating %s: %w", path, err)
		}
		if info.Size() > MaxFileSize {
			f.logger.Warn("skipping oversized file",
				"path", path,
				"size", info.Size(),
			)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		relPath, err := filepath.Rel(f.root, path)
		if err != nil {
			relPath = path
		}

		docs = append(docs, Document{
			ID:     DocumentID(path),
			Source: relPath,
			Text:   string(content),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source root: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })

	f.logger.Debug("collected documents",
		"root", f.root,
		"count", len(docs),
	)

	return docs, nil
}

// DocumentID derives a stable id from a file path.
func DocumentID(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	hash := sha256.Sum256([]byte(absPath))
	return "file_" + hex.EncodeToString(hash[:16])
}

var _ Source = (*Filesystem)(nil)
