package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherNotifiesOnNewJSONLFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	if err := w.AddDir(dir); err != nil {
		t.Fatalf("AddDir: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notified := make(chan string, 1)
	go w.Run(ctx, func(path string) {
		select {
		case notified <- path:
		default:
		}
	})

	target := filepath.Join(dir, "sess.jsonl")
	if err := os.WriteFile(target, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case path := <-notified:
		if path != target {
			t.Fatalf("notified path = %q, want %q", path, target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a watch notification on the new .jsonl file")
	}
}

func TestWatcherIgnoresNonJSONLFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	if err := w.AddDir(dir); err != nil {
		t.Fatalf("AddDir: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notified := make(chan string, 1)
	go w.Run(ctx, func(path string) { notified <- path })

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case path := <-notified:
		t.Fatalf("expected no notification for a non-.jsonl file, got %q", path)
	case <-time.After(200 * time.Millisecond):
	}
}
