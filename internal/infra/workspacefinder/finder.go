package workspacefinder

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

// ConfigFile marks the root of a Briefcase workspace.
const ConfigFile = "briefcase.yaml"

// Finder walks up from a directory until it meets a workspace marker.
type Finder struct {
	marker  string
	ceiling string
}

type Option func(*Finder)

// WithMarker changes the file that marks a workspace root.
func WithMarker(name string) Option {
	return func(f *Finder) { f.marker = name }
}

// WithCeiling stops the walk at dir; dir itself is still inspected.
func WithCeiling(dir string) Option {
	return func(f *Finder) { f.ceiling = filepath.Clean(dir) }
}

func NewFinder(opts ...Option) *Finder {
	f := &Finder{marker: ConfigFile}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FindRoot returns the closest directory at or above start holding the
// marker. A file path starts the walk from its directory.
func (f *Finder) FindRoot(start string) (string, error) {
	if start == "" {
		return "", f.fail(domain.KindInvalidConfig, "", errors.New("start directory is empty"))
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", f.fail(domain.KindExecution, start, err)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for dir = filepath.Clean(dir); ; {
		if isFile(filepath.Join(dir, f.marker)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir || dir == f.ceiling {
			return "", f.fail(domain.KindNotFound, start, domain.ErrNotFound)
		}
		dir = parent
	}
}

func (f *Finder) fail(kind domain.ErrorKind, path string, err error) error {
	return &domain.OpError{Op: "workspacefinder.findroot", Kind: kind, Path: path, Err: err}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
