// Package storage is the still-photo sink: encoded images land in a
// library directory on a pluggable filesystem. The core never retries a
// failed save; the caller logs and moves on.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/oselz/viewfinder/internal/logger"
)

// Library writes encoded assets into a single directory.
type Library struct {
	fs  afero.Fs
	dir string
}

// NewLibrary creates a library rooted at dir, creating it if needed.
// Tests pass an afero.NewMemMapFs.
func NewLibrary(fs afero.Fs, dir string) (*Library, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}
	logger.WithComponent("storage").Info().Str("dir", dir).Msg("Photo library ready")
	return &Library{fs: fs, dir: dir}, nil
}

// Save writes one encoded asset under the given file name.
func (l *Library) Save(name string, data []byte) error {
	path := filepath.Join(l.dir, name)
	if err := afero.WriteFile(l.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write asset %s: %w", name, err)
	}
	logger.WithComponent("storage").Debug().
		Str("path", path).
		Int("bytes", len(data)).
		Msg("Asset saved")
	return nil
}

// Dir returns the library directory.
func (l *Library) Dir() string { return l.dir }
