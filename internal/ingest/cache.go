package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"paperlens/internal/util"
)

// TextCache stores extracted document text on disk, keyed by the
// content hash of the source file. Re-uploads of the same bytes skip
// re-parsing entirely.
type TextCache struct {
	root string
}

func NewTextCache(dataRoot string) *TextCache {
	return &TextCache{root: filepath.Join(dataRoot, "texts")}
}

// HashFile computes the cache key for a source file.
func (c *TextCache) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()
	return util.SHA256HexFromReader(f)
}

func (c *TextCache) path(hash string) string {
	return util.SafeJoin(c.root, hash+".txt")
}

// Get returns the cached text for a content hash, or ok=false on a miss.
func (c *TextCache) Get(hash string) (string, bool, error) {
	data, err := os.ReadFile(c.path(hash))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read cached text: %w", err)
	}
	return string(data), true, nil
}

func (c *TextCache) Put(hash, text string) error {
	if err := util.EnsureDir(c.root); err != nil {
		return err
	}
	if err := util.WriteTextAtomic(c.path(hash), text); err != nil {
		return fmt.Errorf("write cached text: %w", err)
	}
	return nil
}
