package manager

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFileWatcher_Directory(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "a.yaml", nationalCatalog)

	l := NewLoader(nil, 0, nil)
	fw, err := NewFileWatcher(dir, 20*time.Millisecond, l.IsCatalogFile, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v, want nil", err)
	}

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fw.Watch(ctx, func() error {
			calls.Add(1)
			return nil
		})
	}()
	time.Sleep(100 * time.Millisecond)

	writeCatalog(t, dir, "notes.txt", "ignored")
	writeCatalog(t, dir, ".swap.yaml", "ignored")
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("calls after irrelevant changes = %d, want 0", n)
	}

	writeCatalog(t, dir, "a.yaml", nationalCatalog+"\n")
	waitFor(t, func() bool { return calls.Load() == 1 })

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() error = %v, want nil", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v, want nil", err)
	}
	if err := fw.Stop(); err != nil {
		t.Errorf("second Stop() error = %v, want nil", err)
	}
}

func TestFileWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWatcher(dir, 20*time.Millisecond, nil, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v, want nil", err)
	}
	defer fw.Stop()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fw.Watch(ctx, func() error {
		calls.Add(1)
		return nil
	})
	time.Sleep(100 * time.Millisecond)

	writeCatalog(t, dir, filepath.Join("tier3", "placeholder"), "")
	time.Sleep(100 * time.Millisecond)
	before := calls.Load()
	writeCatalog(t, dir, filepath.Join("tier3", "rules.yaml"), nationalCatalog)
	waitFor(t, func() bool { return calls.Load() > before })
}

func TestFileWatcher_MissingPath(t *testing.T) {
	fw, err := NewFileWatcher(filepath.Join(t.TempDir(), "missing"), time.Millisecond, nil, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v, want nil", err)
	}
	defer fw.Stop()

	if err := fw.Watch(context.Background(), func() error { return nil }); err == nil {
		t.Error("Watch() on missing path should error")
	}
}

func TestDebouncer_CollapsesTriggers(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var last atomic.Int32
	var calls atomic.Int32
	for i := int32(1); i <= 5; i++ {
		n := i
		d.Trigger(func() {
			calls.Add(1)
			last.Store(n)
		})
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, func() bool { return calls.Load() == 1 })
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if last.Load() != 5 {
		t.Errorf("last callback = %d, want 5", last.Load())
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("calls after Stop() = %d, want 0", calls.Load())
	}
}
