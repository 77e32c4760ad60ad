package fsworkspace

import (
	"bytes"
	"errors"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/xform"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

// Storage keeps forms and submissions under one storage root.
type Storage struct {
	Layout
	fs billy.Filesystem
}

// NewStorage serves the storage root fs.
func NewStorage(fs billy.Filesystem) *Storage {
	return &Storage{fs: fs}
}

// OpenStorage serves dir on the local filesystem.
func OpenStorage(dir string) *Storage {
	return NewStorage(osfs.New(dir))
}

var _ ports.FormStorage = (*Storage)(nil)

// Root returns the storage root as seen by the underlying filesystem.
func (s *Storage) Root() string { return s.fs.Root() }

// WriteFile writes data through a temporary file renamed into place. When
// path already holds data it is left untouched and false is returned.
func (s *Storage) WriteFile(p string, data []byte) (bool, error) {
	if current, err := util.ReadFile(s.fs, p); err == nil && bytes.Equal(current, data) {
		return false, nil
	}

	dir := path.Dir(p)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return false, &domain.OpError{Op: "workspace.mkdir", Kind: domain.KindExecution, Path: dir, Err: err}
	}

	tmp, err := util.TempFile(s.fs, dir, ".tmp-")
	if err != nil {
		return false, &domain.OpError{Op: "workspace.write", Kind: domain.KindExecution, Path: p, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return false, &domain.OpError{Op: "workspace.write", Kind: domain.KindExecution, Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return false, &domain.OpError{Op: "workspace.write", Kind: domain.KindExecution, Path: tmpName, Err: err}
	}

	if err := s.fs.Rename(tmpName, p); err != nil {
		_ = s.fs.Remove(tmpName)
		return false, &domain.OpError{Op: "workspace.rename", Kind: domain.KindExecution, Path: p, Err: err}
	}
	return true, nil
}

func (s *Storage) ReadFile(p string) ([]byte, error) {
	b, err := util.ReadFile(s.fs, p)
	if err != nil {
		kind := domain.KindExecution
		if errors.Is(err, os.ErrNotExist) {
			kind = domain.KindNotFound
		}
		return nil, &domain.OpError{Op: "workspace.read", Kind: kind, Path: p, Err: err}
	}
	return b, nil
}

func (s *Storage) Exists(p string) bool {
	_, err := s.fs.Stat(p)
	return err == nil
}

// HasSubmission reports whether the submission document is on disk. It is
// written last, so its presence means the submission is complete.
func (s *Storage) HasSubmission(key domain.FormKey, name, instanceID string) bool {
	return s.Exists(s.SubmissionFile(key, name, instanceID))
}

// ListSubmissions returns the stored submissions sorted by directory name.
// Directories without a submission document are incomplete and skipped.
func (s *Storage) ListSubmissions(key domain.FormKey, name string) ([]domain.LocalSubmission, error) {
	root := s.InstancesDir(key, name)
	entries, err := s.fs.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.OpError{Op: "workspace.list_submissions", Kind: domain.KindExecution, Path: root, Err: err}
	}

	out := make([]domain.LocalSubmission, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := path.Join(root, e.Name())
		file := path.Join(dir, submissionXML)
		if !s.Exists(file) {
			continue
		}

		files, err := s.fs.ReadDir(dir)
		if err != nil {
			return nil, &domain.OpError{Op: "workspace.list_submissions", Kind: domain.KindExecution, Path: dir, Err: err}
		}
		var atts []string
		for _, f := range files {
			if f.IsDir() || f.Name() == submissionXML || strings.HasPrefix(f.Name(), ".tmp-") {
				continue
			}
			atts = append(atts, f.Name())
		}
		sort.Strings(atts)

		out = append(out, domain.LocalSubmission{
			InstanceID:  s.instanceID(file, e.Name()),
			Dir:         dir,
			File:        file,
			Attachments: atts,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out, nil
}

// instanceID reads the instance id recorded in the submission document. The
// directory name only stands in when the document carries none.
func (s *Storage) instanceID(file, dirName string) string {
	b, err := util.ReadFile(s.fs, file)
	if err != nil {
		return dirName
	}
	info, err := xform.ParseSubmission(b)
	if err != nil || info.InstanceID == "" {
		return dirName
	}
	return info.InstanceID
}

// ListMedia returns the file names inside the form's media directory.
func (s *Storage) ListMedia(key domain.FormKey, name string) ([]string, error) {
	dir := s.MediaDir(key, name)
	entries, err := s.fs.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.OpError{Op: "workspace.list_media", Kind: domain.KindExecution, Path: dir, Err: err}
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}
