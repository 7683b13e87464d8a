// Package desktopentry parses a single .desktop file's bytes into a
// normalized model.Entry. Parsing is a pure function of the file bytes
// plus a locale specificity chain; it never touches the filesystem
// itself (see ParseFile for the thin I/O wrapper the scanner/index
// builder actually call).
package desktopentry

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dskidx/dskidx/internal/direrr"
	"github.com/dskidx/dskidx/internal/model"
)

const primaryGroup = "Desktop Entry"
const actionGroupPrefix = "Desktop Action "

// maxInvalidUTF8Ratio bounds how much of a file may be non-UTF-8 before a
// lossy decode is abandoned in favor of reporting a ParseError.
const maxInvalidUTF8Ratio = 0.05

// rawGroup preserves key -> (suffix -> value) so locale lookup can walk
// the specificity chain.
type rawGroup map[string]map[string]string // baseKey -> localeSuffix("" = unsuffixed) -> value

// ParseFile reads path and parses it, wrapping read failures as an
// IoError per SPEC_FULL.md §7.
func ParseFile(path, desktopID string, size, mtimeNS int64, localeChain []string) (*model.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, direrr.Wrap(direrr.KindIO, "reading desktop file "+path, err)
	}
	entry, err := Parse(data, desktopID, path, localeChain)
	if err != nil {
		return nil, err
	}
	entry.SourceSize = size
	entry.SourceMtimeNS = mtimeNS
	return entry, nil
}

// Parse parses raw .desktop bytes into a normalized Entry.
func Parse(data []byte, desktopID, path string, localeChain []string) (*model.Entry, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	groups, order, err := parseGroups(text)
	if err != nil {
		return nil, err
	}

	primary, ok := groups[primaryGroup]
	if !ok {
		return nil, direrr.New(direrr.KindParse, "missing [Desktop Entry] group in "+path)
	}

	entry := &model.Entry{
		DesktopID: desktopID,
		Path:      path,
	}

	entry.Name = localizedString(primary, "Name", localeChain)
	entry.GenericName = localizedString(primary, "GenericName", localeChain)
	entry.Comment = localizedString(primary, "Comment", localeChain)
	entry.Exec = unsuffixed(primary, "Exec")
	entry.TryExec = unsuffixed(primary, "TryExec")
	entry.Icon = unsuffixed(primary, "Icon")
	entry.WorkingDir = unsuffixed(primary, "Path")
	entry.NoDisplay = parseBool(unsuffixed(primary, "NoDisplay"), false)
	entry.Hidden = parseBool(unsuffixed(primary, "Hidden"), false)
	entry.Terminal = parseBool(unsuffixed(primary, "Terminal"), false)

	entry.Categories = dedupe(parseList(unsuffixed(primary, "Categories")))
	entry.Keywords = dedupe(parseList(localizedString(primary, "Keywords", localeChain)))
	entry.MimeTypes = dedupe(parseList(unsuffixed(primary, "MimeType")))

	actionIDs := parseList(unsuffixed(primary, "Actions"))
	for _, id := range actionIDs {
		g, ok := groups[actionGroupPrefix+id]
		if !ok {
			continue
		}
		entry.Actions = append(entry.Actions, model.Action{
			ID:   id,
			Name: localizedString(g, "Name", localeChain),
			Exec: unsuffixed(g, "Exec"),
			Icon: unsuffixed(g, "Icon"),
		})
	}

	_ = order // group declaration order isn't semantically significant beyond Actions membership
	return entry, nil
}

// parseGroups splits the INI-like grammar into an ordered map of group
// name to rawGroup (key -> locale suffix -> value).
func parseGroups(text string) (map[string]rawGroup, []string, error) {
	groups := make(map[string]rawGroup)
	var order []string
	var current string

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			current = trimmed[1 : len(trimmed)-1]
			if _, ok := groups[current]; !ok {
				groups[current] = make(rawGroup)
				order = append(order, current)
			}
			continue
		}
		if current == "" {
			// Stray key=value before any group header; ignore per the
			// freedesktop grammar (only [Desktop Entry] is mandatory).
			continue
		}
		key, value, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		base, suffix := splitLocaleSuffix(key)
		g := groups[current]
		if g[base] == nil {
			g[base] = make(map[string]string)
		}
		g[base][suffix] = value
	}

	return groups, order, nil
}

// splitLocaleSuffix splits "Key[locale]" into ("Key", "locale"), or
// returns (key, "") for an unsuffixed key.
func splitLocaleSuffix(key string) (string, string) {
	start := strings.IndexByte(key, '[')
	if start < 0 || !strings.HasSuffix(key, "]") {
		return key, ""
	}
	return key[:start], key[start+1 : len(key)-1]
}

func unsuffixed(g rawGroup, key string) string {
	return g[key][""]
}

// localizedString resolves Key against the locale specificity chain,
// falling back to the unsuffixed value.
func localizedString(g rawGroup, key string, localeChain []string) string {
	values, ok := g[key]
	if !ok {
		return ""
	}
	for _, candidate := range localeChain {
		if v, ok := values[candidate]; ok {
			return v
		}
	}
	return values[""]
}

// parseList splits a semicolon-delimited list field, honoring "\;" as an
// escaped literal semicolon and dropping trailing empty segments.
func parseList(value string) []string {
	if value == "" {
		return nil
	}
	var items []string
	var cur strings.Builder
	runes := []rune(value)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+1 < len(runes) && runes[i+1] == ';' {
			cur.WriteRune(';')
			i++
			continue
		}
		if runes[i] == ';' {
			items = append(items, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(runes[i])
	}
	if cur.Len() > 0 {
		items = append(items, cur.String())
	}
	// Drop trailing empty segments (a trailing unescaped ';' is common
	// and intentional in the wild).
	for len(items) > 0 && items[len(items)-1] == "" {
		items = items[:len(items)-1]
	}
	return items
}

// dedupe removes repeated values, preserving first occurrence order.
func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// parseBool accepts case-insensitive true/false; any other value (or
// absence) falls back to def without being treated as an error.
func parseBool(value string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true":
		return true
	case "false":
		return false
	default:
		return def
	}
}

// decodeText validates data as UTF-8, tolerating a small fraction of
// invalid bytes via a lossy decode; a file whose share of invalid bytes
// exceeds maxInvalidUTF8Ratio is reported as a ParseError rather than
// silently mangled.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	invalid := 0
	total := len(data)
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			invalid++
			i++
			continue
		}
		i += size
	}
	if total == 0 || float64(invalid)/float64(total) > maxInvalidUTF8Ratio {
		return "", direrr.New(direrr.KindParse, "file is not valid UTF-8")
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// LocaleChain computes the freedesktop lookup-order specificity chain
// for a raw locale string like "de_DE.UTF-8@euro": lang_COUNTRY@MODIFIER,
// lang_COUNTRY, lang@MODIFIER, lang. The unsuffixed fallback is implicit
// in localizedString and need not appear in the chain.
func LocaleChain(raw string) []string {
	if raw == "" || raw == "C" || raw == "POSIX" {
		return nil
	}
	// Strip encoding: "de_DE.UTF-8@euro" -> "de_DE@euro"
	locale := raw
	if dot := strings.IndexByte(locale, '.'); dot >= 0 {
		if at := strings.IndexByte(locale, '@'); at > dot {
			locale = locale[:dot] + locale[at:]
		} else {
			locale = locale[:dot]
		}
	}

	var lang, country, modifier string
	rest := locale
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		modifier = rest[at+1:]
		rest = rest[:at]
	}
	if us := strings.IndexByte(rest, '_'); us >= 0 {
		lang = rest[:us]
		country = rest[us+1:]
	} else {
		lang = rest
	}
	if lang == "" {
		return nil
	}

	var chain []string
	add := func(s string) {
		if s == "" {
			return
		}
		for _, existing := range chain {
			if existing == s {
				return
			}
		}
		chain = append(chain, s)
	}
	if country != "" && modifier != "" {
		add(lang + "_" + country + "@" + modifier)
	}
	if country != "" {
		add(lang + "_" + country)
	}
	if modifier != "" {
		add(lang + "@" + modifier)
	}
	add(lang)
	return chain
}

// EffectiveLocaleChain resolves the process-wide locale chain from the
// standard environment precedence: LC_MESSAGES, LC_ALL, LANG.
func EffectiveLocaleChain(lcMessages, lcAll, lang string) []string {
	for _, candidate := range []string{lcMessages, lcAll, lang} {
		if candidate != "" {
			return LocaleChain(candidate)
		}
	}
	return nil
}
