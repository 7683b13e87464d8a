// Package registry is the in-daemon Index Registry: a map from IndexKey
// to a shared, immutable Index, with at-most-one concurrent build per
// key. Grounded on the teacher's Indexer struct (sync.RWMutex guarding a
// running flag plus a cancel/wait-group pair in
// internal/indexer/indexer.go), generalized from "one global index" to
// "many keyed indexes," per SPEC_FULL.md §4.7/§9.
package registry

import (
	"sync"

	"github.com/dskidx/dskidx/internal/model"
	"github.com/dskidx/dskidx/internal/parsecache"
)

// BuildFunc builds a fresh Index for key, sharing the given parse cache.
type BuildFunc func(key model.IndexKey, cache *parsecache.Cache) (*model.Index, error)

// Registry holds published indexes and in-flight build latches.
type Registry struct {
	mu      sync.Mutex
	indexes map[string]*model.Index
	latches map[string]*latch
	cache   *parsecache.Cache
	build   BuildFunc
}

type latch struct {
	done  chan struct{}
	index *model.Index
	err   error
}

// New creates a registry that shares a single parse cache across all
// keys and builds via fn.
func New(cache *parsecache.Cache, fn BuildFunc) *Registry {
	return &Registry{
		indexes: make(map[string]*model.Index),
		latches: make(map[string]*latch),
		cache:   cache,
		build:   fn,
	}
}

// GetOrBuild returns the published Index for key, building it if
// necessary. Concurrent callers for the same key share one build; calls
// for distinct keys proceed in parallel.
func (r *Registry) GetOrBuild(key model.IndexKey) (*model.Index, error) {
	k := key.String()

	r.mu.Lock()
	if idx, ok := r.indexes[k]; ok {
		r.mu.Unlock()
		return idx, nil
	}
	if l, building := r.latches[k]; building {
		r.mu.Unlock()
		<-l.done
		return l.index, l.err
	}

	l := &latch{done: make(chan struct{})}
	r.latches[k] = l
	r.mu.Unlock()

	idx, err := r.build(key, r.cache)

	r.mu.Lock()
	delete(r.latches, k)
	if err == nil {
		r.indexes[k] = idx
	}
	r.mu.Unlock()

	l.index, l.err = idx, err
	close(l.done)
	return idx, err
}

// Warmup pre-populates the registry for key, discarding the result if
// already published or already building.
func (r *Registry) Warmup(key model.IndexKey) error {
	_, err := r.GetOrBuild(key)
	return err
}

// Status reports the number of currently-published indexes.
func (r *Registry) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.indexes)
}

// Invalidate drops the published index for key, forcing the next
// GetOrBuild to rebuild it. Not part of the public IPC surface; useful
// for tests and for a future explicit-refresh command.
func (r *Registry) Invalidate(key model.IndexKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, key.String())
}
