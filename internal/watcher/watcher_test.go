package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHashFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "events.txt")
	content := []byte("100\tMotion\t1\t2\n")

	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	hash1, size1, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if size1 != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), size1)
	}

	hash2, _, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("second HashFile failed: %v", err)
	}
	if hash1 != hash2 {
		t.Error("same file should produce same hash")
	}

	if err := os.WriteFile(testFile, []byte("200\tMotion\t1\t2\n"), 0600); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}
	hash3, _, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("third HashFile failed: %v", err)
	}
	if hash1 == hash3 {
		t.Error("different content should produce different hash")
	}
}

func TestHashFileNotFound(t *testing.T) {
	_, _, err := HashFile("/nonexistent/file.txt")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestStartRejectsDirectory(t *testing.T) {
	w, err := New([]string{t.TempDir()}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); !errors.Is(err, ErrNotFile) {
		t.Errorf("expected ErrNotFile, got %v", err)
	}
}

func TestStartMissingFile(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "missing.txt")}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err == nil {
		t.Error("expected error for missing file")
	}
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestInitialAndChangeEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.txt")
	if err := os.WriteFile(path, []byte("one\n"), 0600); err != nil {
		t.Fatal(err)
	}

	w, err := New([]string{path}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	first := waitEvent(t, w)
	abs, _ := filepath.Abs(path)
	if first.Path != abs {
		t.Errorf("path = %s, want %s", first.Path, abs)
	}
	if first.Size != 4 {
		t.Errorf("size = %d", first.Size)
	}

	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0600); err != nil {
		t.Fatal(err)
	}
	second := waitEvent(t, w)
	if second.Hash == first.Hash {
		t.Error("changed content should have a new hash")
	}
	if len(second.Digest()) != 64 {
		t.Errorf("digest = %s", second.Digest())
	}
}

func TestUnchangedContentNotReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.txt")
	if err := os.WriteFile(path, []byte("same\n"), 0600); err != nil {
		t.Fatal(err)
	}

	w, err := New([]string{path}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	waitEvent(t, w)

	if err := os.WriteFile(path, []byte("same\n"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-w.Events():
		t.Errorf("unexpected event for identical content: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCheckStableFilesDebounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.txt")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	w, err := New([]string{path}, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.fsWatcher.Close()

	now := time.Now()
	w.pending[path] = now

	w.checkStableFiles(now.Add(500 * time.Millisecond))
	if len(w.events) != 0 {
		t.Fatal("file reported before debounce elapsed")
	}
	if w.pendingCount() != 1 {
		t.Fatalf("pending = %d", w.pendingCount())
	}

	w.checkStableFiles(now.Add(2 * time.Second))
	if len(w.events) != 1 {
		t.Fatal("settled file not reported")
	}
	if w.pendingCount() != 0 {
		t.Errorf("pending = %d after report", w.pendingCount())
	}
}

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.txt")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	w, err := New([]string{path}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stop := errors.New("stop")
	calls := 0
	err = w.Run(context.Background(), func(ev Event) error {
		calls++
		return stop
	}, nil)
	if !errors.Is(err, stop) {
		t.Errorf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.txt")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	w, err := New([]string{path}, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx, func(Event) error { return nil }, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
