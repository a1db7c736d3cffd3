// Package cache stores unified results on disk, keyed by source file
// identity. A key covers path, size, and mtime, so edits to the source file
// invalidate its entry without any explicit eviction.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docufuse/docufuse/internal/fusion"
)

// Cache is a directory of JSON result files.
type Cache struct {
	dir string
}

// New opens (and creates if needed) the cache directory.
func New(dir string) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Key derives the cache key for a source file from its path, size, and
// mtime. Returns an error if the file cannot be stat'd.
func (c *Cache) Key(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	sum := md5.Sum(fmt.Appendf(nil, "%s|%d|%d", path, info.Size(), info.ModTime().UnixNano()))
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the cached result for a key, or ok=false on a miss. Corrupt
// entries count as misses and are removed.
func (c *Cache) Get(key string) (fusion.UnifiedResult, bool) {
	var res fusion.UnifiedResult
	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return res, false
	}
	if err := json.Unmarshal(data, &res); err != nil {
		_ = os.Remove(c.entryPath(key))
		return fusion.UnifiedResult{}, false
	}
	return res, true
}

// Put writes the result under the key. The write goes through a temp file
// and rename so a concurrent reader never sees a partial entry.
func (c *Cache) Put(key string, res fusion.UnifiedResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, key+".tmp*")
	if err != nil {
		return fmt.Errorf("create cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.entryPath(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("list cache: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("remove cache entry: %w", err)
		}
	}
	return nil
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}
