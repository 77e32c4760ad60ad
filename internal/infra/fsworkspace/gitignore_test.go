package fsworkspace

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func TestEnsureGitignore_CreatesFile(t *testing.T) {
	fs := memfs.New()

	if err := ensureGitignore(fs); err != nil {
		t.Fatalf("ensureGitignore error: %v", err)
	}

	b, err := util.ReadFile(fs, ".gitignore")
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}

	s := string(b)
	for _, w := range []string{"# Briefcase", ".briefcase/", "*.tmp-*"} {
		if !strings.Contains(s, w) {
			t.Fatalf("expected .gitignore to contain %q, got:\n%s", w, s)
		}
	}
}

func TestEnsureGitignore_AppendsMissingEntries(t *testing.T) {
	fs := memfs.New()

	existing := "node_modules/\n# Briefcase\n.briefcase/\n"
	if err := util.WriteFile(fs, ".gitignore", []byte(existing), 0o644); err != nil {
		t.Fatalf("write .gitignore: %v", err)
	}

	if err := ensureGitignore(fs); err != nil {
		t.Fatalf("ensureGitignore error: %v", err)
	}

	b, err := util.ReadFile(fs, ".gitignore")
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	s := string(b)

	if !strings.Contains(s, "node_modules/") {
		t.Fatalf("expected existing content preserved, got:\n%s", s)
	}
	if strings.Count(s, "# Briefcase") != 1 {
		t.Fatalf("expected 1 header, got:\n%s", s)
	}
	if strings.Count(s, ".briefcase/") != 1 {
		t.Fatalf("expected .briefcase/ not duplicated, got:\n%s", s)
	}
	if !strings.Contains(s, "*.tmp-*") {
		t.Fatalf("expected missing entry appended, got:\n%s", s)
	}
}
