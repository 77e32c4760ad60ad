package workspacefinder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "ws")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "briefcase.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return root
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	// Partial config (no pull/http sections)
	root := writeConfig(t, "briefcase:\n  push:\n    force: true\n")

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if !cfg.Push.Force {
		t.Fatalf("expected push.force=true")
	}
	if cfg.StorageDir != "ODK Briefcase Storage" {
		t.Fatalf("expected default storage dir, got=%s", cfg.StorageDir)
	}
	if cfg.Pull.BatchSize != 100 {
		t.Fatalf("expected batch size=100, got=%d", cfg.Pull.BatchSize)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Fatalf("expected timeout=30s, got=%s", cfg.HTTP.Timeout)
	}
}

func TestLoadConfig_OverridesEverySection(t *testing.T) {
	root := writeConfig(t, `briefcase:
  storage_dir: data
  pull:
    batch_size: 25
    include_incomplete: true
    parallel: 4
  push:
    parallel: 2
  http:
    timeout: 5s
    max_idle_conns_per_host: 3
`)

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.StorageDir != "data" || cfg.Pull.BatchSize != 25 || !cfg.Pull.IncludeIncomplete || cfg.Pull.Parallel != 4 {
		t.Fatalf("unexpected pull config: %+v", cfg)
	}
	if cfg.Push.Parallel != 2 || cfg.HTTP.Timeout != 5*time.Second || cfg.HTTP.MaxIdleConnsPerHost != 3 {
		t.Fatalf("unexpected push/http config: %+v", cfg)
	}
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	cases := []string{
		"briefcase:\n  pull:\n    batch_size: 0\n",
		"briefcase:\n  http:\n    timeout: soon\n",
		"briefcase: [",
	}
	for _, c := range cases {
		root := writeConfig(t, c)
		_, err := LoadConfig(root)
		if !domain.IsKind(err, domain.KindInvalidConfig) {
			t.Fatalf("config %q: expected KindInvalidConfig, got %v", c, err)
		}
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}
