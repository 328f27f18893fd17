package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"prdeck/internal/types"
)

func TestFileUpdateCheckpointStoreLoadMissing(t *testing.T) {
	s := NewFileUpdateCheckpointStore(filepath.Join(t.TempDir(), "update-state.json"))
	cp, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cp.HasPending() || cp.LastCheck != nil {
		t.Fatalf("expected empty checkpoint, got %#v", cp)
	}
}

func TestFileUpdateCheckpointStoreSaveAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "update-state.json")
	s := NewFileUpdateCheckpointStore(path)
	ctx := context.Background()
	checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cp := &types.UpdateCheckpoint{
		LastCheck:      &checked,
		PendingPath:    "/tmp/prdeck-1.2.0",
		PendingVersion: "1.2.0",
		PendingSHA256:  "abc",
	}
	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.HasPending() || loaded.PendingVersion != "1.2.0" {
		t.Fatalf("unexpected checkpoint: %#v", loaded)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	cleared, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load after clear: %v", err)
	}
	if cleared.HasPending() || cleared.PendingPath != "" {
		t.Fatalf("expected pending fields cleared: %#v", cleared)
	}
	if cleared.LastCheck == nil || !cleared.LastCheck.Equal(checked) {
		t.Fatalf("expected last check preserved, got %v", cleared.LastCheck)
	}
}

func TestFileUpdateCheckpointStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update-state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := NewFileUpdateCheckpointStore(path)
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("Clear on corrupt file: %v", err)
	}
	if cp, err := s.Load(context.Background()); err != nil || cp.HasPending() {
		t.Fatalf("expected clean checkpoint after clear, got %#v, %v", cp, err)
	}
}

func TestUpdateCheckpointPartialIsNotPending(t *testing.T) {
	cp := &types.UpdateCheckpoint{PendingPath: "/x", PendingSHA256: "abc", PartialDownload: true}
	if cp.HasPending() {
		t.Fatalf("partial download must not count as pending")
	}
}

func TestFileUpdateCheckpointStoreEmptyFileAndNoTempLeftovers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	path := filepath.Join(dir, "update-state.json")
	s := NewFileUpdateCheckpointStore(path)
	if err := s.Save(context.Background(), &types.UpdateCheckpoint{PendingVersion: "2.0.0"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "update-state.json" {
		t.Fatalf("expected only the checkpoint file, got %v", entries)
	}

	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected error for empty checkpoint file")
	}
}
