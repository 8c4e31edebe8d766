// Package matcher resolves a local mod name against catalog entries.
//
// Tiers are tried in order: exact normalized name, slug, substring and
// finally fuzzy (Levenshtein) similarity. The first three share a single
// pass over the candidates, so the first candidate hitting any of them
// wins. Fuzzy matching only runs when no candidate hit the earlier tiers.
package matcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/blackwell-systems/modsync/internal/catalog"
)

// DefaultFuzzyThreshold is the minimum similarity percentage a fuzzy
// match must reach.
const DefaultFuzzyThreshold = 80

// minLength guards the substring and fuzzy tiers against short names
// ("Me" would be contained in almost everything).
const minLength = 5

// Method tags.
const (
	MethodExact     = "exact"
	MethodSlug      = "slug"
	MethodSubstring = "substring"
	fuzzyPrefix     = "fuzzy:"
)

// Result is a resolved catalog match.
type Result struct {
	URL           string
	Method        string
	LatestVersion string
}

// Matcher holds matching settings.
type Matcher struct {
	threshold int
}

// New returns a Matcher accepting fuzzy matches at or above threshold
// percent. Values outside 1..99 fall back to DefaultFuzzyThreshold.
func New(threshold int) *Matcher {
	if threshold <= 0 || threshold >= 100 {
		threshold = DefaultFuzzyThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the fuzzy acceptance threshold.
func (m *Matcher) Threshold() int {
	return m.threshold
}

// FindBestMatch returns the best candidate for localName, or false when
// no tier matched.
func (m *Matcher) FindBestMatch(localName string, candidates []catalog.Entry) (Result, bool) {
	local := Normalize(localName)
	localSlug := Slugify(localName)

	for _, c := range candidates {
		name := Normalize(c.Name)

		// Names with nothing left after normalization match nothing.
		if local != "" && name == local {
			return newResult(c, MethodExact), true
		}
		if localSlug != "" && c.Slug == localSlug {
			return newResult(c, MethodSlug), true
		}
		if len(name) >= minLength && len(local) >= minLength &&
			(strings.Contains(name, local) || strings.Contains(local, name)) {
			return newResult(c, MethodSubstring), true
		}
	}

	if len(local) < minLength {
		return Result{}, false
	}

	var best Result
	bestSimilarity := m.threshold - 1
	found := false
	for _, c := range candidates {
		name := Normalize(c.Name)
		if len(name) < minLength {
			continue
		}

		// Strictly greater keeps the first candidate on ties.
		sim := Similarity(local, name)
		if sim > bestSimilarity {
			bestSimilarity = sim
			best = newResult(c, fmt.Sprintf("%s%d%%", fuzzyPrefix, sim))
			found = true
		}
	}

	return best, found
}

// IsFuzzy reports whether method is a fuzzy tag.
func IsFuzzy(method string) bool {
	return strings.HasPrefix(method, fuzzyPrefix)
}

func newResult(c catalog.Entry, method string) Result {
	return Result{URL: c.URL, Method: method, LatestVersion: c.LatestVersion}
}

// Normalize lowercases s and drops everything but ASCII letters and digits.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Slugify lowercases s, collapses runs of other characters into a single
// hyphen and trims hyphens at both ends.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range strings.ToLower(s) {
		if isAlnum(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// Similarity is the Levenshtein similarity of a and b as a rounded
// percentage of the longer length. Two empty strings are 100% similar.
func Similarity(a, b string) int {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round((1 - float64(d)/float64(longest)) * 100))
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
