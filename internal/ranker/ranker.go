// Package ranker implements the query engine: prefix/substring matching
// against a model.Index with personalized frequency+recency boosts, per
// SPEC_FULL.md §4.5. This is new code (the teacher's Filters type is a
// substring/category/path include-filter with no scoring); it is written
// in the teacher's plain, unadorned function style rather than pulled
// from any single example.
package ranker

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/dskidx/dskidx/internal/model"
)

const (
	maxFrequencyBoost   = 200.0
	frequencyLogBase    = 40.0
	maxRecencyBoost     = 150.0
	recencyHalfLifeDays = 7.0
)

type fieldWeights struct {
	Exact, Prefix, WordPrefix, Substring float64
}

// weights mirrors the table in SPEC_FULL.md §4.5 (spec.md §4.5); a zero
// tier is simply absent from that field ("—" in the spec table) and is
// skipped in favor of the next-weaker tier that does apply.
var weights = []struct {
	field   func(model.SearchHaystacks) string
	weights fieldWeights
}{
	{func(h model.SearchHaystacks) string { return h.Name }, fieldWeights{1000, 600, 400, 200}},
	{func(h model.SearchHaystacks) string { return h.DesktopID }, fieldWeights{900, 500, 0, 150}},
	{func(h model.SearchHaystacks) string { return h.GenericName }, fieldWeights{0, 300, 200, 100}},
	{func(h model.SearchHaystacks) string { return h.Keywords }, fieldWeights{400, 250, 200, 80}},
	{func(h model.SearchHaystacks) string { return h.Categories }, fieldWeights{0, 150, 100, 60}},
	{func(h model.SearchHaystacks) string { return h.Comment }, fieldWeights{0, 80, 60, 30}},
}

// Search matches query against index, applying personalized boosts from
// usage and returning at most limit results ordered by descending score
// then ascending name/desktop-id. An empty query instead orders by
// emptyMode.
func Search(index *model.Index, query string, limit int, emptyMode model.EmptyMode, usage map[string]model.UsageRecord, nowNS int64) []model.ScoredEntry {
	query = strings.TrimSpace(strings.ToLower(query))

	var scored []model.ScoredEntry
	if query == "" {
		scored = rankEmpty(index.Entries, emptyMode, usage)
	} else {
		scored = rankQuery(index.Entries, query, usage, nowNS)
	}

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// List returns all non-hidden, non-suppressed entries sorted by name
// (case-insensitive), desktop-id as tie-break.
func List(index *model.Index) []model.Entry {
	out := make([]model.Entry, 0, len(index.Entries))
	for _, e := range index.Entries {
		if e.NoDisplay {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessByNameThenID(out[i], out[j])
	})
	return out
}

func rankEmpty(entries []model.Entry, mode model.EmptyMode, usage map[string]model.UsageRecord) []model.ScoredEntry {
	visible := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if e.NoDisplay {
			continue
		}
		visible = append(visible, e)
	}

	sort.Slice(visible, func(i, j int) bool {
		ri, oki := usage[visible[i].DesktopID]
		rj, okj := usage[visible[j].DesktopID]

		if mode == model.EmptyModeFrequency {
			if ri.Count != rj.Count {
				return ri.Count > rj.Count
			}
			if ri.LastLaunchNS != rj.LastLaunchNS {
				return ri.LastLaunchNS > rj.LastLaunchNS
			}
			return lessByNameThenID(visible[i], visible[j])
		}

		// recency (default): entries with no record sort last.
		if oki != okj {
			return oki
		}
		if ri.LastLaunchNS != rj.LastLaunchNS {
			return ri.LastLaunchNS > rj.LastLaunchNS
		}
		return lessByNameThenID(visible[i], visible[j])
	})

	out := make([]model.ScoredEntry, len(visible))
	for i, e := range visible {
		out[i] = model.ScoredEntry{Entry: e}
	}
	return out
}

func rankQuery(entries []model.Entry, query string, usage map[string]model.UsageRecord, nowNS int64) []model.ScoredEntry {
	tokens := strings.Fields(query)

	var out []model.ScoredEntry
	for _, e := range entries {
		if e.NoDisplay && query != strings.ToLower(e.DesktopID) {
			continue
		}

		base, ok := baseScore(tokens, e.Haystacks)
		if !ok || base <= 0 {
			continue
		}

		rec := usage[e.DesktopID]
		total := base + frequencyBoost(rec.Count) + recencyBoost(rec.LastLaunchNS, nowNS)
		out = append(out, model.ScoredEntry{Entry: e, Score: total})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return lessByNameThenID(out[i].Entry, out[j].Entry)
	})
	return out
}

// baseScore sums, over every token, the strongest field-specific weight
// at which that token hits; ok is false if any token fails to match at
// all (the "must match all tokens" filter).
func baseScore(tokens []string, h model.SearchHaystacks) (float64, bool) {
	var total float64
	for _, token := range tokens {
		best := 0.0
		for _, fw := range weights {
			best = math.Max(best, fieldScore(token, fw.field(h), fw.weights))
		}
		if best <= 0 {
			return 0, false
		}
		total += best
	}
	return total, true
}

func fieldScore(token, haystack string, w fieldWeights) float64 {
	if haystack == "" || !strings.Contains(haystack, token) {
		return 0
	}
	if w.Exact > 0 && haystack == token {
		return w.Exact
	}
	if w.Prefix > 0 && strings.HasPrefix(haystack, token) {
		return w.Prefix
	}
	if w.WordPrefix > 0 && hasWordPrefix(haystack, token) {
		return w.WordPrefix
	}
	return w.Substring
}

// hasWordPrefix reports whether token is a prefix of some
// whitespace/punctuation-delimited word within haystack.
func hasWordPrefix(haystack, token string) bool {
	words := strings.FieldsFunc(haystack, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		if strings.HasPrefix(w, token) {
			return true
		}
	}
	return false
}

func frequencyBoost(count uint64) float64 {
	if count == 0 {
		return 0
	}
	return math.Min(maxFrequencyBoost, frequencyLogBase*math.Log2(1+float64(count)))
}

func recencyBoost(lastLaunchNS, nowNS int64) float64 {
	if lastLaunchNS == 0 {
		return 0
	}
	ageDays := float64(nowNS-lastLaunchNS) / float64(24*60*60*1_000_000_000)
	if ageDays < 0 {
		ageDays = 0
	}
	decay := math.Pow(0.5, ageDays/recencyHalfLifeDays)
	if decay < 0 {
		decay = 0
	}
	if decay > 1 {
		decay = 1
	}
	return maxRecencyBoost * decay
}

func lessByNameThenID(a, b model.Entry) bool {
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	return a.DesktopID < b.DesktopID
}
