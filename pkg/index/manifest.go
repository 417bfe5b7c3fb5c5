package index

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ManifestFileName is the catalog file kept in the index directory.
const ManifestFileName = "manifest.toml"

// manifest is the on-disk catalog of versions and the live pointer.
// Vector payloads live in the driver; the manifest only tracks bookkeeping.
type manifest struct {
	// Seq is the last allocated version sequence number.
	Seq uint64 `toml:"seq"`

	// Live is the id of the active version, empty until first activation.
	Live string `toml:"live"`

	Versions []*Version `toml:"versions"`
}

// find returns the version entry with the given id, or nil.
func (m *manifest) find(id string) *Version {
	for _, v := range m.Versions {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// loadManifest reads the manifest from dir, returning an empty manifest
// when the file does not exist yet.
func loadManifest(dir string) (*manifest, error) {
	path := filepath.Join(dir, ManifestFileName)

	var m manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if os.IsNotExist(err) {
			return &manifest{}, nil
		}
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	return &m, nil
}

// saveManifest writes the manifest atomically via a temp file and rename,
// so a crash mid-write never leaves a torn catalog.
func saveManifest(dir string, m *manifest) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ManifestFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp manifest: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, ManifestFileName)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming manifest: %w", err)
	}

	return nil
}
