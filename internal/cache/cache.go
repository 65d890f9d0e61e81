// Package cache stores fetched binary assets (avatar and world images) on
// disk, keyed by origin URL. The disk is the source of truth; the in-memory
// url -> path map is a process-lifetime index only.
package cache

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

type Cache struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	http     *http.Client

	resolved map[string]string // url -> on-disk path
}

// New creates a cache rooted at dir with the given size ceiling in bytes.
func New(dir string, maxBytes int64) *Cache {
	_ = os.MkdirAll(dir, 0o755)
	return &Cache{
		dir:      dir,
		maxBytes: maxBytes,
		http:     &http.Client{Timeout: 30 * time.Second},
		resolved: make(map[string]string),
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// fileName derives a stable filesystem-safe name from a URL.
func fileName(url string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(url))
}

// Resolve returns a local path for the asset at url, fetching and persisting
// it on first sight. The returned path is cached in memory for the life of
// the process.
func (c *Cache) Resolve(ctx context.Context, url string) (string, error) {
	c.mu.Lock()
	if path, ok := c.resolved[url]; ok {
		c.mu.Unlock()
		return path, nil
	}
	c.mu.Unlock()

	path := filepath.Join(c.dir, fileName(url))

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		if err := c.fetch(ctx, url, path); err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	c.resolved[url] = path
	c.mu.Unlock()
	return path, nil
}

func (c *Cache) fetch(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

type entry struct {
	path     string
	size     int64
	modified time.Time
}

// ManageSize runs the startup sweep: if the directory's total size exceeds
// the ceiling, the least-recently-modified files are removed until the total
// drops to half the ceiling. Per-file failures are logged and skipped.
func (c *Cache) ManageSize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, total, err := c.scan()
	if err != nil {
		log.Printf("CACHE: scan failed: %v", err)
		return
	}

	if total <= c.maxBytes {
		return
	}

	target := c.maxBytes / 2
	log.Printf("CACHE: %d bytes exceeds ceiling %d, evicting to %d", total, c.maxBytes, target)

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modified.Before(entries[j].modified)
	})

	for _, e := range entries {
		if total <= target {
			break
		}
		if err := os.Remove(e.path); err != nil {
			log.Printf("CACHE: failed to remove %s: %v", e.path, err)
			continue
		}
		total -= e.size
	}
}

func (c *Cache) scan() ([]entry, int64, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, 0, err
	}

	var entries []entry
	var total int64
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil {
			log.Printf("CACHE: stat %s: %v", f.Name(), err)
			continue
		}
		entries = append(entries, entry{
			path:     filepath.Join(c.dir, f.Name()),
			size:     info.Size(),
			modified: info.ModTime(),
		})
		total += info.Size()
	}
	return entries, total, nil
}

// Clear deletes the entire cache directory tree and recreates an empty one.
// The in-memory index is dropped with it. Idempotent.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.dir); err != nil {
		return err
	}
	c.resolved = make(map[string]string)
	return os.MkdirAll(c.dir, 0o755)
}
