package ironvar

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForValue(t *testing.T, ch <-chan Value, want Value) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatal("subscription closed")
			}
			if v == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %+v", want)
		}
	}
}

func TestStore_WatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status")
	if err := os.WriteFile(path, []byte("idle\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "status")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := s.WatchFile(ctx, "status", path); err != nil {
		t.Fatalf("WatchFile failed: %v", err)
	}
	waitForValue(t, ch, Some("idle"))

	if err := os.WriteFile(path, []byte("busy\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForValue(t, ch, Some("busy"))

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitForValue(t, ch, None)
}

func TestStore_WatchFileMissingAtStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "later")

	s := NewStore(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.WatchFile(ctx, "later", path); err != nil {
		t.Fatalf("WatchFile failed: %v", err)
	}
	if _, ok := s.Get("later"); ok {
		t.Fatal("expected variable to be unset")
	}

	ch, _ := s.Subscribe(ctx, "later")
	if err := os.WriteFile(path, []byte("created"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForValue(t, ch, Some("created"))
}

func TestStore_WatchFileInvalidName(t *testing.T) {
	s := NewStore(Options{})
	if err := s.WatchFile(context.Background(), "bad name", "/tmp/x"); err == nil {
		t.Fatal("expected error for invalid name")
	}
}
