// Package indexbuild composes the scanner, parse cache and desktop
// parser into an immutable model.Index, grounded on the teacher's
// Indexer.runIndexing fan-in shape (internal/indexer/indexer.go) but
// restructured around a single synchronous pass per SPEC_FULL.md §4.4:
// scan, dedupe, parse-or-cache, filter, precompute haystacks, persist.
package indexbuild

import (
	"os/exec"
	"strings"
	"time"

	"github.com/dskidx/dskidx/internal/desktopentry"
	"github.com/dskidx/dskidx/internal/model"
	"github.com/dskidx/dskidx/internal/parsecache"
	"github.com/dskidx/dskidx/internal/scanner"
)

// Build scans key.Roots, consults cache for each survivor, parses
// misses, applies the Hidden/TryExec filters and returns the resulting
// Index. The cache is saved (with GC of unreached entries) before Build
// returns.
func Build(key model.IndexKey, cache *parsecache.Cache, localeChain []string) (*model.Index, error) {
	scanned := scanner.Scan(key.Roots)
	survivors := scanner.DedupeByID(scanned)

	stats := model.BuildStats{
		Scanned:    len(survivors),
		Duplicates: len(scanned) - len(survivors),
	}

	entries := make([]model.Entry, 0, len(survivors))
	for _, s := range survivors {
		entry, ok := cache.Get(s.Path, s.Size, s.MtimeNS)
		if ok {
			stats.CacheHits++
		} else {
			stats.CacheMisses++
			parsed, err := desktopentry.ParseFile(s.Path, s.DesktopID, s.Size, s.MtimeNS, localeChain)
			if err != nil {
				stats.ParseErrors++
				continue
			}
			entry = *parsed
			cache.Put(s.Path, s.Size, s.MtimeNS, entry)
		}

		if entry.Hidden {
			stats.Hidden++
			continue
		}
		if key.RespectTryExec && entry.TryExec != "" && !resolvesOnPath(entry.TryExec) {
			stats.TryExecFails++
			continue
		}

		entry.Haystacks = buildHaystacks(entry)
		entries = append(entries, entry)
	}

	if err := cache.Save(); err != nil {
		// Cache I/O errors on save are logged by the caller and do not
		// fail the build, per SPEC_FULL.md §7.
		return &model.Index{Key: key, Entries: entries, BuiltAt: now(), Stats: stats}, SaveError{err}
	}

	return &model.Index{Key: key, Entries: entries, BuiltAt: now(), Stats: stats}, nil
}

// SaveError wraps a non-fatal parse-cache save failure. The returned
// *model.Index is already valid; callers that only care about the index
// strip this via errors.As and log it instead of failing the build.
type SaveError struct{ err error }

func (e SaveError) Error() string { return "saving parse cache: " + e.err.Error() }
func (e SaveError) Unwrap() error { return e.err }

func resolvesOnPath(tryExec string) bool {
	if strings.ContainsRune(tryExec, '/') {
		_, err := exec.LookPath(tryExec)
		return err == nil
	}
	_, err := exec.LookPath(tryExec)
	return err == nil
}

func buildHaystacks(e model.Entry) model.SearchHaystacks {
	return model.SearchHaystacks{
		Name:        strings.ToLower(e.Name),
		GenericName: strings.ToLower(e.GenericName),
		DesktopID:   strings.ToLower(e.DesktopID),
		Keywords:    strings.ToLower(strings.Join(e.Keywords, " ")),
		Categories:  strings.ToLower(strings.Join(e.Categories, " ")),
		Comment:     strings.ToLower(e.Comment),
	}
}

// now is a var so tests can pin a deterministic build timestamp.
var now = time.Now
