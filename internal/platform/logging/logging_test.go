package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_JSONLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "warn", Format: "json", Out: &buf})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	defer closer.Close()

	log.Info().Msg("dropped")
	log.Warn().Str("receipt_id", "r-1").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["message"] != "kept" || entry["receipt_id"] != "r-1" || entry["service"] != "receipt-processor" {
		t.Fatalf("entry=%v", entry)
	}
}

func TestNew_AlsoWritesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	var buf bytes.Buffer
	log, closer, err := New(Options{Format: "console", File: path, Out: &buf})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	log.Info().Int("points", 28).Msg("stored receipt score")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}

	if !strings.Contains(buf.String(), "stored receipt score") {
		t.Fatalf("console output=%q", buf.String())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(b), `"points":28`) {
		t.Fatalf("file output=%q", string(b))
	}
}

func TestNew_BadLevel(t *testing.T) {
	t.Parallel()

	if _, _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatalf("New() err=nil, want error")
	}
}
