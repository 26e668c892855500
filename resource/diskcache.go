package resource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/s2"
	"github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"
)

// ErrNotFound is returned by Get for keys that were never stored or
// have been deleted.
var ErrNotFound = errors.New("resource: key not found in disk cache")

// DiskCache is a key-addressed spill store. Values are s2-compressed on
// disk; entries are addressed by the hash of their key so arbitrary key
// strings never reach the filesystem. One cache owns one directory and
// removes it on Close.
type DiskCache struct {
	dir      string
	ownedDir bool
	logger   logrus.FieldLogger
}

// NewDiskCache creates a cache rooted at dir. An empty dir creates a
// fresh directory under the platform temp root, which is removed on
// Close. A nil logger selects the standard logger.
func NewDiskCache(dir string, logger logrus.FieldLogger) (*DiskCache, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	owned := false
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", fmt.Sprintf("streamkit_cache_%d_", os.Getpid()))
		if err != nil {
			return nil, err
		}
		owned = true
	} else if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir, ownedDir: owned, logger: logger}, nil
}

// Dir returns the cache's backing directory.
func (c *DiskCache) Dir() string {
	return c.dir
}

func (c *DiskCache) path(key string) string {
	h1, h2 := murmur3.Sum128([]byte(key))
	return filepath.Join(c.dir, fmt.Sprintf("%016x%016x.s2", h1, h2))
}

// Put stores value under key, replacing any previous value.
func (c *DiskCache) Put(key string, value []byte) error {
	return os.WriteFile(c.path(key), s2.Encode(nil, value), 0o600)
}

// Get returns the value stored under key, or ErrNotFound.
func (c *DiskCache) Get(key string) ([]byte, error) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s2.Decode(nil, raw)
}

// Has reports whether key is present.
func (c *DiskCache) Has(key string) bool {
	_, err := os.Stat(c.path(key))
	return err == nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes every entry but keeps the cache usable.
func (c *DiskCache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Close removes the cache contents, and the directory itself when the
// cache created it. Removal failures are logged, never returned, so a
// failing cleanup cannot mask the caller's primary error.
func (c *DiskCache) Close() error {
	var err error
	if c.ownedDir {
		err = os.RemoveAll(c.dir)
	} else {
		err = c.Clear()
	}
	if err != nil {
		c.logger.WithError(err).WithField("dir", c.dir).
			Warn("disk cache cleanup failed")
	}
	return nil
}
