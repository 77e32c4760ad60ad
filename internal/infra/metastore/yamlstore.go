// Package metastore keeps one YAML document per form with its metadata and
// the last committed cursor.
package metastore

import (
	"bytes"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/config"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

const defaultDir = ".metadata"

type YAMLStore struct {
	dir string
	mu  sync.Mutex
}

// NewYAMLStore keeps metadata under <storageRoot>/.metadata.
func NewYAMLStore(storageRoot string) *YAMLStore {
	return &YAMLStore{dir: filepath.Join(storageRoot, defaultDir)}
}

var _ ports.FormMetadataStore = (*YAMLStore)(nil)

// path names the file <id>@<version>.yaml. Both parts are query-escaped so
// '@' never appears inside either of them.
func (s *YAMLStore) path(key domain.FormKey) string {
	name := url.QueryEscape(key.ID)
	if key.Version != "" {
		name += "@" + url.QueryEscape(key.Version)
	}
	return filepath.Join(s.dir, name+".yaml")
}

func (s *YAMLStore) Get(key domain.FormKey) (domain.FormMetadata, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := config.LoadFormMetadata(s.path(key))
	if domain.IsKind(err, domain.KindNotFound) {
		return domain.FormMetadata{}, false, nil
	}
	if err != nil {
		return domain.FormMetadata{}, false, err
	}
	return meta, true, nil
}

// Put stores meta. The stored cursor never moves backwards: a cursor older
// than the one on disk is replaced by the stored one. An unchanged record is
// not rewritten.
func (s *YAMLStore) Put(meta domain.FormMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(meta.Key)
	if prev, err := config.LoadFormMetadata(path); err == nil {
		meta = meta.WithCursor(prev.Cursor)
	}

	dto, err := config.ToYAMLFormMetadata(meta)
	if err != nil {
		return err
	}
	b, err := config.Marshal(dto)
	if err != nil {
		return err
	}

	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, b) {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &domain.OpError{
			Op:   "metastore.mkdir",
			Kind: domain.KindExecution,
			Path: s.dir,
			Err:  err,
		}
	}

	// Atomic-ish write: tmp then rename.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return &domain.OpError{
			Op:   "metastore.write",
			Kind: domain.KindExecution,
			Path: tmp,
			Err:  err,
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &domain.OpError{
			Op:   "metastore.rename",
			Kind: domain.KindExecution,
			Path: path,
			Err:  err,
		}
	}
	return nil
}

// List returns every stored form sorted by key.
func (s *YAMLStore) List() ([]domain.FormMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.OpError{Op: "metastore.list", Kind: domain.KindExecution, Path: s.dir, Err: err}
	}

	out := make([]domain.FormMetadata, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		meta, err := config.LoadFormMetadata(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ID != out[j].Key.ID {
			return out[i].Key.ID < out[j].Key.ID
		}
		return out[i].Key.Version < out[j].Key.Version
	})
	return out, nil
}
