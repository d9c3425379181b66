package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FileStore keeps a mapping in a single indented JSON document.
type FileStore[V any] struct {
	path string
}

// NewFileStore returns a store backed by the JSON file at path. The file and
// its directory are created on first save.
func NewFileStore[V any](path string) *FileStore[V] {
	return &FileStore[V]{path: path}
}

// Path returns the backing file path.
func (s *FileStore[V]) Path() string {
	return s.path
}

func (s *FileStore[V]) Load(_ context.Context) (map[string]V, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]V), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: read %s", s.path)
	}

	entries := make(map[string]V)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "cache: decode %s", s.path)
	}
	return entries, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target, so a crash mid-write leaves the previous document intact.
func (s *FileStore[V]) Save(_ context.Context, entries map[string]V) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "cache: encode")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "cache: mkdir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "cache: create temp")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "cache: write temp")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return eris.Wrap(err, "cache: sync temp")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "cache: close temp")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return eris.Wrapf(err, "cache: rename to %s", s.path)
	}
	return nil
}
