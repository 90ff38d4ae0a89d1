package source

import "strings"

// edgePunctuation is stripped from keyword boundaries but kept inside.
const edgePunctuation = ".,!?;:#\"' "

// Normalize canonicalizes one keyword: lowercase, trimmed, edge
// punctuation removed. An empty string means the candidate is unusable.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	return strings.Trim(text, edgePunctuation)
}

// Filter applies an exclusion list over normalized keywords.
type Filter struct {
	exclude []string
}

// NewFilter builds a filter from configured exclusion substrings.
func NewFilter(excludeKeywords []string) *Filter {
	exclude := make([]string, 0, len(excludeKeywords))
	for _, kw := range excludeKeywords {
		if n := Normalize(kw); n != "" {
			exclude = append(exclude, n)
		}
	}
	return &Filter{exclude: exclude}
}

// Allow reports whether a normalized keyword passes the exclusion list.
func (f *Filter) Allow(normalized string) bool {
	for _, ex := range f.exclude {
		if strings.Contains(normalized, ex) {
			return false
		}
	}
	return true
}

// Dedupe normalizes candidates, drops empties and exclusions, and
// keeps the first occurrence of each keyword. The returned candidates
// carry the normalized text; order of first observation is preserved.
func Dedupe(candidates []Candidate, filter *Filter) []Candidate {
	seen := make(map[string]bool, len(candidates))
	var out []Candidate

	for _, c := range candidates {
		n := Normalize(c.Text)
		if n == "" || seen[n] {
			continue
		}
		if filter != nil && !filter.Allow(n) {
			continue
		}
		seen[n] = true
		out = append(out, Candidate{Text: n, Source: c.Source})
	}
	return out
}
