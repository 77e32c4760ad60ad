package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

func TestLoadFormMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "household.yaml")
	content := `id: household
version: "3"
name: Household
pull_source:
  type: aggregate
  url: https://aggregate.example.org
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	meta, err := LoadFormMetadata(path)
	if err != nil {
		t.Fatalf("LoadFormMetadata error: %v", err)
	}
	if meta.Key != domain.NewFormKey("household", "3") {
		t.Fatalf("unexpected key: %v", meta.Key)
	}
	if _, ok := meta.PullSource.(domain.AggregateServer); !ok {
		t.Fatalf("expected aggregate pull source, got %#v", meta.PullSource)
	}
	if !meta.Cursor.IsEmpty() {
		t.Fatalf("expected empty cursor")
	}
}

func TestLoadEndpoints_MissingFileIsEmpty(t *testing.T) {
	doc, err := LoadEndpoints(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("LoadEndpoints error: %v", err)
	}
	if doc.PullSource != nil || doc.PushTarget != nil {
		t.Fatalf("expected empty store, got %+v", doc)
	}
}

func TestLoadEndpoints_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	if err := os.WriteFile(path, []byte("pull_source: ["), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadEndpoints(path)
	if !domain.IsKind(err, domain.KindInvalidConfig) {
		t.Fatalf("expected KindInvalidConfig, got %v", err)
	}
}
