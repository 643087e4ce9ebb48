package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/raymyers/ralph-bindgen/pkg/config"
	"github.com/raymyers/ralph-bindgen/pkg/diag"
	"github.com/raymyers/ralph-bindgen/pkg/gogen"
)

// cacheSchema is bumped whenever the payload layout changes.
const cacheSchema uint16 = 1

// Key identifies one run: the generator version, the configuration and the
// inputs.
type Key [sha256.Size]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// CacheKey hashes the version, the msgpack encoding of cfg, and every
// input's name and text in order.
func CacheKey(inputs []Input, cfg config.Config) (Key, error) {
	h := sha256.New()
	enc := msgpack.NewEncoder(h)
	if err := enc.Encode(Version); err != nil {
		return Key{}, err
	}
	if err := enc.Encode(cacheSchema); err != nil {
		return Key{}, err
	}
	cfg.CacheDir = ""
	cfg.Jobs = 0
	if err := enc.Encode(cfg); err != nil {
		return Key{}, fmt.Errorf("hashing config: %w", err)
	}
	for _, in := range inputs {
		if err := enc.Encode(in.Name); err != nil {
			return Key{}, err
		}
		if err := enc.Encode(in.Text); err != nil {
			return Key{}, err
		}
	}
	var k Key
	copy(k[:], h.Sum(nil))
	return k, nil
}

// Cache stores results on disk, one msgpack file per key. Entries are
// written to a temporary file and renamed into place, so readers never
// see a partial entry.
type Cache struct {
	dir string
}

type cachePayload struct {
	Schema      uint16
	Files       []gogen.File
	Diagnostics []diag.Diagnostic
}

// OpenCache returns a cache rooted at dir. The directory is created on the
// first Put.
func OpenCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) pathFor(k Key) string {
	return filepath.Join(c.dir, k.String()+".mp")
}

// Get returns the stored result for k. A missing, unreadable or outdated
// entry is a miss.
func (c *Cache) Get(k Key) (*Result, bool) {
	f, err := os.Open(c.pathFor(k))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var p cachePayload
	if err := msgpack.NewDecoder(f).Decode(&p); err != nil || p.Schema != cacheSchema {
		return nil, false
	}
	return &Result{Files: p.Files, Diagnostics: p.Diagnostics, Cached: true}, true
}

// Put stores res under k.
func (c *Cache) Put(k Key, res *Result) (err error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	f, err := os.CreateTemp(c.dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = fmt.Errorf("cache: %w", rmErr)
		}
	}()

	p := cachePayload{Schema: cacheSchema, Files: res.Files, Diagnostics: res.Diagnostics}
	if err := msgpack.NewEncoder(f).Encode(&p); err != nil {
		f.Close()
		return fmt.Errorf("cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := os.Rename(f.Name(), c.pathFor(k)); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}
