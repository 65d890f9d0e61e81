package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveFetchesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("image bytes"))
	}))
	defer srv.Close()

	c := New(t.TempDir(), 1<<20)
	ctx := context.Background()

	path, err := c.Resolve(ctx, srv.URL+"/avatar.png")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "image bytes" {
		t.Fatalf("cached content = %q", data)
	}

	// Second resolve hits the in-memory index.
	again, err := c.Resolve(ctx, srv.URL+"/avatar.png")
	if err != nil {
		t.Fatal(err)
	}
	if again != path {
		t.Fatalf("paths differ: %q vs %q", again, path)
	}
	if hits.Load() != 1 {
		t.Fatalf("origin hits = %d, want 1", hits.Load())
	}
}

func TestResolveReusesDiskAcrossRestart(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	ctx := context.Background()
	url := srv.URL + "/a.png"

	if _, err := New(dir, 1<<20).Resolve(ctx, url); err != nil {
		t.Fatal(err)
	}
	// Fresh cache over the same directory: disk hit, no refetch.
	if _, err := New(dir, 1<<20).Resolve(ctx, url); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Fatalf("origin hits = %d, want 1", hits.Load())
	}
}

func TestResolveUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(t.TempDir(), 1<<20)
	if _, err := c.Resolve(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for 404")
	}
	// Nothing persisted.
	files, _ := os.ReadDir(c.Dir())
	if len(files) != 0 {
		t.Fatalf("files persisted on error: %d", len(files))
	}
}

func TestManageSizeEvictsOldestToHalf(t *testing.T) {
	dir := t.TempDir()
	// Ten 100-byte files with ascending mtimes; ceiling 500 bytes.
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		path := filepath.Join(dir, fileName(string(rune('a'+i))))
		if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
			t.Fatal(err)
		}
		mt := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mt, mt); err != nil {
			t.Fatal(err)
		}
	}

	c := New(dir, 500)
	c.ManageSize()

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	// 1000 bytes over a 500 ceiling: evict oldest-first down to 250, which
	// removes the 8 oldest files and leaves the 2 newest (200 bytes).
	var total int64
	for _, f := range files {
		info, _ := f.Info()
		total += info.Size()
	}
	if total > 250 {
		t.Fatalf("total after sweep = %d, want <= 250", total)
	}

	// The survivors must be the newest files.
	for _, f := range files {
		info, _ := f.Info()
		if info.ModTime().Before(base.Add(7 * time.Minute)) {
			t.Fatalf("old file survived: %s (%s)", f.Name(), info.ModTime())
		}
	}
}

func TestManageSizeUnderCeilingIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f"), make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(dir, 1000)
	c.ManageSize()

	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Fatalf("files = %d, want 1", len(files))
	}
}

func TestClear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	c := New(t.TempDir(), 1<<20)
	if _, err := c.Resolve(context.Background(), srv.URL+"/a.png"); err != nil {
		t.Fatal(err)
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	files, err := os.ReadDir(c.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Fatalf("files after clear = %d", len(files))
	}

	// Clearing twice is fine.
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
}
