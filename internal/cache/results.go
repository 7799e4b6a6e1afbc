package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry records the outcome of processing one archive. It is stored as
// <key>.json where key covers the archive bytes and the settings used.
type Entry struct {
	Key        string    `json:"key"`
	Archive    string    `json:"archive"`
	Modified   bool      `json:"modified"`
	Candidates int       `json:"candidates"`
	Wraps      int       `json:"wraps"`
	SavedAt    time.Time `json:"saved_at"`
}

// ResultCache remembers per-archive outcomes across runs so that archives
// already known to need no change can be skipped. No eviction policy is
// included; see PurgeByAge.
type ResultCache struct {
	Dir string
	// StrictPerms, when true, enforces 0700 on the cache directory and 0600
	// on files.
	StrictPerms bool
}

func (c *ResultCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	// Tighten a directory that existed before StrictPerms was turned on.
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

// KeyFrom builds a cache key from the archive content and a fingerprint of
// the settings that influence the rewrite.
func KeyFrom(archive []byte, settings string) string {
	h := sha256.New()
	h.Write(archive)
	h.Write([]byte("\n\n" + settings))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *ResultCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns the entry for key if present. A missing or unreadable entry is
// a miss, not an error.
func (c *ResultCache) Get(_ context.Context, key string) (*Entry, bool, error) {
	if err := c.ensureDir(); err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		return nil, false, nil
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil || e.Key != key {
		return nil, false, nil
	}
	return &e, true, nil
}

// Save writes e under e.Key, replacing any previous entry atomically.
func (c *ResultCache) Save(_ context.Context, e Entry) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	if e.Key == "" {
		return errors.New("cache entry without key")
	}
	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	tmp := c.pathFor(e.Key) + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return os.Rename(tmp, c.pathFor(e.Key))
}
