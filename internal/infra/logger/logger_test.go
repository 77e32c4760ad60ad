package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetup_WritesUnderWorkspace(t *testing.T) {
	root := t.TempDir()

	cleanup, err := Setup(Config{Root: root})
	if err != nil {
		t.Fatalf("Setup error: %v", err)
	}

	want := filepath.Join(root, ".briefcase", "logs", "briefcase.log")
	if Path() != want {
		t.Fatalf("expected log path %s, got %s", want, Path())
	}

	L().Info("pull.started", "form", "household")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup error: %v", err)
	}

	b, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"pull.started"`) {
		t.Fatalf("expected event in log, got:\n%s", b)
	}
	if Path() != "" {
		t.Fatalf("expected path reset after cleanup")
	}
}

func TestHandler_MasksCredentials(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, false))

	l.Info("central.session", "password", "secret", "token", "abc", "url", "https://x")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["password"] != maskValue || rec["token"] != maskValue {
		t.Fatalf("expected credentials masked, got %v", rec)
	}
	if rec["url"] != "https://x" {
		t.Fatalf("expected url kept, got %v", rec["url"])
	}
}

func TestHandler_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, false)).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug suppressed, got %s", buf.String())
	}

	slog.New(NewHandler(&buf, true)).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug event, got %s", buf.String())
	}
}
