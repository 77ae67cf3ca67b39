package store

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type record struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name"`
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "records.json")
	s, err := NewFileStore[record](p)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	initial, err := s.Load()
	if err != nil {
		t.Fatalf("load fresh: %v", err)
	}
	if len(initial) != 0 {
		t.Fatalf("fresh store should be empty, got %d", len(initial))
	}

	want := []record{{ChatID: "a", Name: "Alice"}, {ChatID: "b", Name: "Bob"}}
	if err := s.ReplaceAll(want); err != nil {
		t.Fatalf("replace: %v", err)
	}

	// Reload through a brand-new store on the same path.
	s2, err := NewFileStore[record](p)
	if err != nil {
		t.Fatalf("reinit: %v", err)
	}
	got, err := s2.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestFileStore_ReplaceOverwrites(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore[record](filepath.Join(dir, "records.json"))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.ReplaceAll([]record{{ChatID: "a"}, {ChatID: "b"}, {ChatID: "c"}}); err != nil {
		t.Fatalf("replace1: %v", err)
	}
	if err := s.ReplaceAll([]record{{ChatID: "only"}}); err != nil {
		t.Fatalf("replace2: %v", err)
	}
	got, _ := s.Load()
	if len(got) != 1 || got[0].ChatID != "only" {
		t.Fatalf("second snapshot should fully replace the first: %+v", got)
	}
}

func TestFileStore_MalformedFileStartsFreshAndLogs(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "records.json")
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s, err := NewFileStore[record](p)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(os.Stderr)

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("malformed file should load as empty, got %+v", got)
	}
	// Starting fresh discards the file's contents on the next flush, so it
	// must never happen silently.
	if !strings.Contains(logged.String(), p) {
		t.Fatalf("malformed file must be logged, got: %q", logged.String())
	}
}
