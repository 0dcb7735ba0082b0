package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestArtifactWatcher_ReloadOnArtifactWrite(t *testing.T) {
	dir := t.TempDir()
	vec := filepath.Join(dir, "products.vec")
	db := filepath.Join(dir, "catalog.db")

	var reloads int32
	w := NewArtifactWatcher([]string{vec, db}, func() {
		atomic.AddInt32(&reloads, 1)
	}, WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(vec, []byte("v1"), 0600); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&reloads) == 1 }) {
		t.Fatalf("reloads = %d, want 1", atomic.LoadInt32(&reloads))
	}
}

func TestArtifactWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	vec := filepath.Join(dir, "products.vec")
	db := filepath.Join(dir, "catalog.db")

	var reloads int32
	w := NewArtifactWatcher([]string{vec, db}, func() {
		atomic.AddInt32(&reloads, 1)
	}, WithDebounce(100*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// A rebuild touches both artifacts in quick succession.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(vec, []byte("v"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(db, []byte("d"), 0600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&reloads) >= 1 }) {
		t.Fatal("reload never fired")
	}
	time.Sleep(200 * time.Millisecond)
	if n := atomic.LoadInt32(&reloads); n != 1 {
		t.Errorf("reloads = %d, want 1 (debounced)", n)
	}
}

func TestArtifactWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	vec := filepath.Join(dir, "products.vec")

	var reloads int32
	w := NewArtifactWatcher([]string{vec}, func() {
		atomic.AddInt32(&reloads, 1)
	}, WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := atomic.LoadInt32(&reloads); n != 0 {
		t.Errorf("reloads = %d, want 0", n)
	}
}

func TestArtifactWatcher_SidecarMatches(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "catalog.db")
	w := NewArtifactWatcher([]string{db}, func() {})
	if !w.matches(db + "-wal") {
		t.Error("wal sidecar should match")
	}
	if !w.matches(db + "-journal") {
		t.Error("journal sidecar should match")
	}
	if w.matches(filepath.Join(dir, "other.db")) {
		t.Error("unrelated file should not match")
	}
}

func TestArtifactWatcher_StopTwice(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWatcher([]string{filepath.Join(dir, "a")}, func() {})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
