// Package parsecache is the persistent, incremental .desktop parse
// cache: a path -> (size, mtime_ns, Entry) mapping serialized to a
// single versioned file and saved atomically via natefinch/atomic,
// grounded on calvinalkan-agent-task's cache_binary.go (magic+version
// header, atomic.WriteFile). The records after the header are a
// gob-encoded map, so their byte order is not stable across saves.
package parsecache

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/dskidx/dskidx/internal/model"
)

// FileName is the cache's on-disk file name; the version is the suffix.
const FileName = "parse-cache.v1"

const magic = "DIPC" // Desktop Indexer Parse Cache
const version = 1

// record is one cached parse result, keyed externally by path.
type record struct {
	Size    int64
	MtimeNS int64
	Entry   model.Entry
}

// Cache is an in-memory, lock-protected view of the parse cache,
// loaded once at build start and saved once at build end.
type Cache struct {
	mu      sync.RWMutex
	path    string
	records map[string]record
	touched map[string]struct{} // paths confirmed live by the current build; GC'd at Save
}

// Load reads the cache file at dir/FileName. A missing, malformed or
// version-mismatched file is treated as an empty cache rather than an
// error, per SPEC_FULL.md §4.3.
func Load(dir string) *Cache {
	c := &Cache{
		path:    filepath.Join(dir, FileName),
		records: make(map[string]record),
		touched: make(map[string]struct{}),
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return c
	}
	if len(data) < len(magic)+4 || string(data[:len(magic)]) != magic {
		return c
	}
	ver := int(data[len(magic)])
	if ver != version {
		return c
	}

	dec := gob.NewDecoder(bytes.NewReader(data[len(magic)+4:]))
	var records map[string]record
	if err := dec.Decode(&records); err != nil {
		return &Cache{path: c.path, records: make(map[string]record), touched: make(map[string]struct{})}
	}
	c.records = records
	return c
}

// Get looks up path, requiring exact equality on size and mtime_ns. A
// hit is also marked as touched (reachable), protecting it from GC at
// the next Save even if the caller never calls Put for it again.
func (c *Cache) Get(path string, size, mtimeNS int64) (model.Entry, bool) {
	c.mu.RLock()
	rec, ok := c.records[path]
	c.mu.RUnlock()
	if !ok || rec.Size != size || rec.MtimeNS != mtimeNS {
		return model.Entry{}, false
	}

	c.mu.Lock()
	c.touched[path] = struct{}{}
	c.mu.Unlock()
	return rec.Entry, true
}

// Put inserts or replaces the cached entry for path after a fresh parse.
func (c *Cache) Put(path string, size, mtimeNS int64, entry model.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[path] = record{Size: size, MtimeNS: mtimeNS, Entry: entry}
	c.touched[path] = struct{}{}
}

// Save persists the cache, evicting any record not touched since Load
// (garbage collection by reachability from the current build, per
// SPEC_FULL.md §4.3), and writes it atomically via natefinch/atomic so a
// crash mid-write leaves the previous file intact.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := make(map[string]record, len(c.touched))
	for path := range c.touched {
		if rec, ok := c.records[path]; ok {
			live[path] = rec
		}
	}
	c.records = live

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(byte(version))
	buf.Write([]byte{0, 0, 0}) // reserved

	if err := gob.NewEncoder(&buf).Encode(live); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		return err
	}
	return atomic.WriteFile(c.path, bytes.NewReader(buf.Bytes()))
}
