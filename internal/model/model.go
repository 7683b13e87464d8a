// Package model defines the data types shared across the indexer, cache,
// ranker and IPC layers: Entry, Index, IndexKey and UsageRecord.
package model

import "time"

// Action is a single `[Desktop Action <id>]` group referenced by the
// primary group's Actions key.
type Action struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Exec string `json:"exec"`
	Icon string `json:"icon"`
}

// Entry is a normalized, immutable view of a single .desktop file.
type Entry struct {
	DesktopID   string   `json:"id"`
	Path        string   `json:"-"`
	Name        string   `json:"name"`
	GenericName string   `json:"generic_name"`
	Comment     string   `json:"comment"`
	Categories  []string `json:"categories"`
	Keywords    []string `json:"keywords"`
	MimeTypes   []string `json:"mime_types"`
	Exec        string   `json:"exec"`
	TryExec     string   `json:"-"`
	Icon        string   `json:"icon"`
	WorkingDir  string   `json:"-"`
	NoDisplay   bool     `json:"no_display"`
	Hidden      bool     `json:"-"`
	Terminal    bool     `json:"terminal"`
	Actions     []Action `json:"actions"`

	SourceMtimeNS int64 `json:"-"`
	SourceSize    int64 `json:"-"`

	// Haystacks holds precomputed lowercase search fields; built by the
	// index builder and never serialized to clients.
	Haystacks SearchHaystacks `json:"-"`
}

// SearchHaystacks is the lowercase, precomputed set of fields the ranker
// matches a query token against.
type SearchHaystacks struct {
	Name        string
	GenericName string
	DesktopID   string
	Keywords    string
	Categories  string
	Comment     string
}

// ScoredEntry pairs an Entry with the score it received for a particular
// query; Score is only meaningful on search responses.
type ScoredEntry struct {
	Entry Entry
	Score float64
}

// IndexKey identifies one cacheable, independently-built Index: an
// ordered list of root directories plus whether TryExec resolution is
// enforced. Order is significant. Roots are compared exactly as given;
// they are not made absolute or symlink-resolved, so two spellings of the
// same directory form different keys.
type IndexKey struct {
	Roots          []string
	RespectTryExec bool
}

// String renders a stable, comparable form of the key, used as a map key
// by the registry and as a cache-scoping prefix.
func (k IndexKey) String() string {
	s := ""
	for _, r := range k.Roots {
		s += r + "\x00"
	}
	if k.RespectTryExec {
		s += "\x01try-exec"
	}
	return s
}

// Index is an immutable, published snapshot of entries for one IndexKey.
type Index struct {
	Key     IndexKey
	Entries []Entry
	BuiltAt time.Time
	Stats   BuildStats
}

// BuildStats carries the per-build diagnostics the status RPC surfaces:
// how many descriptors were parsed from cache vs. freshly parsed, and how
// many were dropped for parse errors or filters.
type BuildStats struct {
	Scanned      int
	CacheHits    int
	CacheMisses  int
	ParseErrors  int
	Hidden       int
	TryExecFails int
	Duplicates   int
}

// UsageRecord is the persisted launch-frequency/recency counter for one
// desktop-id.
type UsageRecord struct {
	DesktopID    string `json:"desktop_id"`
	Count        uint64 `json:"count"`
	LastLaunchNS int64  `json:"last_launch_ns"`
}

// EmptyMode selects the ordering applied when a search query is empty.
type EmptyMode string

const (
	EmptyModeRecency   EmptyMode = "recency"
	EmptyModeFrequency EmptyMode = "frequency"
)
