package location

import (
	"regexp"
	"strings"
)

// Tag is "<", zero or more lowercase letters or underscores, ">". Empty name
// ("<>") is a valid tag, it just never matches registry id.
var tagRE = regexp.MustCompile(`<[a-z_]*>`)

// occurrence is a single tag occurrence in template text, start and end are
// byte offsets of "<" and one past ">".
type occurrence struct {
	name       string
	start, end int
}

func scanTags(text string) []occurrence {
	locs := tagRE.FindAllStringIndex(text, -1)
	occ := make([]occurrence, 0, len(locs))
	for _, loc := range locs {
		occ = append(occ, occurrence{name: text[loc[0]+1 : loc[1]-1], start: loc[0], end: loc[1]})
	}
	return occ
}

// distinctNames returns tag names in order of their first appearance.
func distinctNames(occ []occurrence) []string {
	seen := make(map[string]struct{}, len(occ))
	names := make([]string, 0, len(occ))
	for _, o := range occ {
		if _, ok := seen[o.name]; ok {
			continue
		}
		seen[o.name] = struct{}{}
		names = append(names, o.name)
	}
	return names
}

// substitute replaces every occurrence in a single pass, text inserted by
// replace is never scanned for tags again. When replace returns false
// occurrence is kept as is.
func substitute(text string, occ []occurrence, replace func(name string) (string, bool)) string {
	var sb strings.Builder
	last := 0
	for _, o := range occ {
		sb.WriteString(text[last:o.start])
		if v, ok := replace(o.name); ok {
			sb.WriteString(v)
		} else {
			sb.WriteString(text[o.start:o.end])
		}
		last = o.end
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// Tags returns distinct tag names found in text in order of first appearance.
func Tags(text string) []string {
	return distinctNames(scanTags(text))
}
