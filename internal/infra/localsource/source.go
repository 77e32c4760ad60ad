// Package localsource reads forms and submissions from local endpoints: a
// Collect "odk" directory or a single form definition file.
package localsource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/xform"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// Source serves one local endpoint.
type Source struct {
	fs billy.Filesystem

	// formGlob selects form definitions; instances are only read from
	// Collect directories.
	formGlob      string
	withInstances bool
}

var _ ports.LocalSource = (*Source)(nil)

// Open returns a Source for a local endpoint.
func Open(e domain.Endpoint) (*Source, error) {
	switch v := e.(type) {
	case domain.CollectDirectory:
		return NewCollectDir(osfs.New(v.Path)), nil
	case domain.FormFile:
		return NewFormFile(osfs.New(filepath.Dir(v.Path)), filepath.Base(v.Path)), nil
	default:
		return nil, &domain.OpError{
			Op:   "localsource.open",
			Kind: domain.KindInvalidConfig,
			Err:  fmt.Errorf("%w: %s is not a local endpoint", domain.ErrUnsupportedTransfer, e.Describe()),
		}
	}
}

// NewCollectDir serves a Collect directory with forms/ and instances/.
func NewCollectDir(fs billy.Filesystem) *Source {
	return &Source{fs: fs, formGlob: "forms/*.xml", withInstances: true}
}

// NewFormFile serves the definition name inside fs and its sibling
// <base>-media directory.
func NewFormFile(fs billy.Filesystem, name string) *Source {
	return &Source{fs: fs, formGlob: name}
}

func (s *Source) ListForms(ctx context.Context) ([]ports.LocalForm, error) {
	matches, err := util.Glob(s.fs, s.formGlob)
	if err != nil {
		return nil, &domain.OpError{Op: "localsource.forms", Kind: domain.KindExecution, Path: s.formGlob, Err: err}
	}
	if len(matches) == 0 && !s.withInstances {
		return nil, &domain.OpError{Op: "localsource.forms", Kind: domain.KindNotFound, Path: s.formGlob, Err: domain.ErrNotFound}
	}
	sort.Strings(matches)

	out := make([]ports.LocalForm, 0, len(matches))
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		def, err := s.ReadFile(m)
		if err != nil {
			return nil, err
		}
		info, err := xform.ParseForm(def)
		if err != nil {
			return nil, err
		}

		media := strings.TrimSuffix(m, path.Ext(m)) + "-media"
		if fi, err := s.fs.Stat(media); err != nil || !fi.IsDir() {
			media = ""
		}

		out = append(out, ports.LocalForm{Info: info, File: m, MediaDir: media})
	}
	return out, nil
}

// ListInstances returns the instances whose document belongs to key.
func (s *Source) ListInstances(ctx context.Context, key domain.FormKey) ([]ports.LocalInstance, error) {
	if !s.withInstances {
		return nil, nil
	}

	dirs, err := s.fs.ReadDir("instances")
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.OpError{Op: "localsource.instances", Kind: domain.KindExecution, Path: "instances", Err: err}
	}

	var out []ports.LocalInstance
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !d.IsDir() {
			continue
		}

		inst, ok, err := s.readInstance(path.Join("instances", d.Name()), key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, inst)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Source) readInstance(dir string, key domain.FormKey) (ports.LocalInstance, bool, error) {
	files, err := s.fs.ReadDir(dir)
	if err != nil {
		return ports.LocalInstance{}, false, &domain.OpError{Op: "localsource.instances", Kind: domain.KindExecution, Path: dir, Err: err}
	}

	inst := ports.LocalInstance{Name: path.Base(dir)}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		p := path.Join(dir, f.Name())
		if inst.File == "" && strings.EqualFold(path.Ext(f.Name()), ".xml") {
			inst.File = p
			continue
		}
		inst.Attachments = append(inst.Attachments, p)
	}
	if inst.File == "" {
		return ports.LocalInstance{}, false, nil
	}

	doc, err := s.ReadFile(inst.File)
	if err != nil {
		return ports.LocalInstance{}, false, err
	}
	info, err := xform.ParseSubmission(doc)
	if err != nil {
		// Unreadable documents belong to no form.
		return ports.LocalInstance{}, false, nil
	}
	if info.Key != key {
		return ports.LocalInstance{}, false, nil
	}

	inst.InstanceID = info.InstanceID
	sort.Strings(inst.Attachments)
	return inst, true, nil
}

// ListFiles returns the paths of the regular files directly inside dir.
func (s *Source) ListFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := s.fs.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.OpError{Op: "localsource.list", Kind: domain.KindExecution, Path: dir, Err: err}
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Source) ReadFile(p string) ([]byte, error) {
	b, err := util.ReadFile(s.fs, p)
	if err != nil {
		kind := domain.KindExecution
		if errors.Is(err, os.ErrNotExist) {
			kind = domain.KindNotFound
		}
		return nil, &domain.OpError{Op: "localsource.read", Kind: kind, Path: p, Err: err}
	}
	return b, nil
}
