// Package credstore remembers the chosen pull source and push target in a
// private YAML file. Usernames and Central tokens are kept; passwords are
// not and must be supplied again on every run.
package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/config"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// DefaultPath is $XDG_CONFIG_HOME/briefcase/endpoints.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "briefcase", "endpoints.yaml")
}

type Store struct {
	path string
	mu   sync.Mutex
}

// New opens the store at path, or at DefaultPath when path is empty.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path}
}

var _ ports.EndpointStore = (*Store)(nil)

func (s *Store) Path() string { return s.path }

func (s *Store) Load(role ports.EndpointRole) (domain.Endpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := config.LoadEndpoints(s.path)
	if err != nil {
		return nil, false, err
	}
	rec, err := slot(&doc, role)
	if err != nil {
		return nil, false, err
	}

	e, err := config.MapEndpoint(s.path, *rec)
	if err != nil || e == nil {
		return nil, false, err
	}
	return e, true, nil
}

func (s *Store) Save(role ports.EndpointRole, e domain.Endpoint) error {
	rec, err := config.ToYAMLEndpoint(e)
	if err != nil {
		return err
	}
	return s.update(role, rec)
}

func (s *Store) Clear(role ports.EndpointRole) error {
	return s.update(role, nil)
}

func (s *Store) update(role ports.EndpointRole, rec config.YAMLEndpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := config.LoadEndpoints(s.path)
	if err != nil {
		return err
	}
	dst, err := slot(&doc, role)
	if err != nil {
		return err
	}
	*dst = rec

	b, err := config.Marshal(doc)
	if err != nil {
		return err
	}
	return writePrivate(s.path, b)
}

func slot(doc *config.YAMLEndpoints, role ports.EndpointRole) (*config.YAMLEndpoint, error) {
	switch role {
	case ports.RolePullSource:
		return &doc.PullSource, nil
	case ports.RolePushTarget:
		return &doc.PushTarget, nil
	default:
		return nil, &domain.OpError{Op: "credstore.role", Kind: domain.KindInvalidConfig, Err: fmt.Errorf("unknown endpoint role %q", role)}
	}
}

// writePrivate writes b with owner-only permissions through tmp then rename.
func writePrivate(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &domain.OpError{Op: "credstore.mkdir", Kind: domain.KindExecution, Path: dir, Err: err}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return &domain.OpError{Op: "credstore.write", Kind: domain.KindExecution, Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &domain.OpError{Op: "credstore.rename", Kind: domain.KindExecution, Path: path, Err: err}
	}
	return nil
}
