package heuristics

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// bullet or numeral, optional "." or ")", then whitespace
	reListMarker = regexp.MustCompile(`^[\-*•\d]+[.)]?\s+`)
	// bullet or numeral with a mandatory "." or ")" separator
	reStrictListMarker = regexp.MustCompile(`^[\-*•\d]+[.)]\s+`)
	reMarkerPrefix     = regexp.MustCompile(`^[\-*•\d]+[.)]?\s*`)
)

var checklistKeywords = []string{"todo", "task", "☐", "□"}

// StartsTask reports whether a region's text opens a new task: a list marker
// or a checklist keyword anywhere in the text.
func StartsTask(text string) bool {
	if reListMarker.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range checklistKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HasStrictListMarker reports whether text begins with a bullet/numeral
// followed by "." or ")" and whitespace.
func HasStrictListMarker(text string) bool {
	return reStrictListMarker.MatchString(text)
}

// StripListMarker removes a leading bullet/numeral marker.
func StripListMarker(text string) string {
	return reMarkerPrefix.ReplaceAllString(text, "")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
