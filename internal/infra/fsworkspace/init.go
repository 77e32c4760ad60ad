package fsworkspace

import (
	"errors"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

const configTemplate = `briefcase:
  storage_dir: %STORAGE%
  pull:
    batch_size: 100
    include_incomplete: false
    parallel: 1
  push:
    force: false
    parallel: 1
  http:
    timeout: 30s
    max_idle_conns_per_host: 20
`

type Initializer struct {
	storageDir string
	open       func(root string) billy.Filesystem
}

type InitOption func(*Initializer)

// WithFilesystem replaces the local filesystem, mainly for tests.
func WithFilesystem(open func(root string) billy.Filesystem) InitOption {
	return func(i *Initializer) { i.open = open }
}

func WithStorageDir(dir string) InitOption {
	return func(i *Initializer) {
		if strings.TrimSpace(dir) != "" {
			i.storageDir = dir
		}
	}
}

func NewInitializer(opts ...InitOption) *Initializer {
	i := &Initializer{
		storageDir: domain.DefaultConfig().StorageDir,
		open:       func(root string) billy.Filesystem { return osfs.New(root) },
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

var _ ports.WorkspaceInitializer = (*Initializer)(nil)

// Init lays out a workspace: briefcase.yaml, the storage forms directory,
// the log directory and .gitignore entries. An existing briefcase.yaml is
// kept unless force is set.
func (i *Initializer) Init(spec domain.WorkspaceSpec, force bool) error {
	fs := i.open(spec.Root)

	dirs := []string{
		path.Join(i.storageDir, formsDir),
		path.Join(".briefcase", "logs"),
	}
	for _, d := range dirs {
		if err := fs.MkdirAll(d, 0o755); err != nil {
			return &domain.OpError{Op: "workspace.init", Kind: domain.KindExecution, Path: d, Err: err}
		}
	}

	if err := ensureGitignore(fs); err != nil {
		return &domain.OpError{Op: "workspace.gitignore", Kind: domain.KindExecution, Path: ".gitignore", Err: err}
	}

	const cfg = "briefcase.yaml"
	if !force {
		if _, err := fs.Stat(cfg); err == nil {
			return nil
		}
	}
	body := strings.ReplaceAll(configTemplate, "%STORAGE%", i.storageDir)
	if err := util.WriteFile(fs, cfg, []byte(body), 0o644); err != nil {
		return &domain.OpError{Op: "workspace.init", Kind: domain.KindExecution, Path: cfg, Err: err}
	}
	return nil
}

func ensureGitignore(fs billy.Filesystem) error {
	const header = "# Briefcase"
	entries := []string{
		".briefcase/",
		"*.tmp-*",
	}

	const name = ".gitignore"
	b, err := util.ReadFile(fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			lines := append([]string{header}, entries...)
			lines = append(lines, "")
			return util.WriteFile(fs, name, []byte(strings.Join(lines, "\n")), 0o644)
		}
		return err
	}

	existing := string(b)
	present := map[string]bool{}
	for _, line := range strings.Split(existing, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		present[trimmed] = true
	}

	var missing []string
	for _, e := range entries {
		if !present[e] {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var out strings.Builder
	out.Grow(len(existing) + 64)

	out.WriteString(existing)
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		out.WriteByte('\n')
	}
	out.WriteByte('\n')
	if !present[header] {
		out.WriteString(header)
		out.WriteByte('\n')
	}
	for _, e := range missing {
		out.WriteString(e)
		out.WriteByte('\n')
	}

	return util.WriteFile(fs, name, []byte(out.String()), 0o644)
}
