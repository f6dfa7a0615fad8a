// Package fuzzy scores similarity between names and picks best candidates.
package fuzzy

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/kmicac/matchsync/internal/normalize"
)

// Thresholds used by callers. Linking fixtures across sources is
// corroborated by an exact date so it can accept weaker name evidence than a
// standalone name lookup.
const (
	LinkThreshold   = 0.6
	LookupThreshold = 0.85
)

// Ratio returns the difflib similarity 2*M/T, where M counts characters in
// matching blocks and T is the combined rune length. Both empty strings
// compare as identical.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	// fixed operand order keeps the score symmetric
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

// runes splits s into one element per rune so multi-byte letters count once.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Match is the outcome of BestMatch.
type Match struct {
	Index int
	Value string
	Score float64
}

// Matcher compares names after normalization.
type Matcher struct {
	norm *normalize.Normalizer
}

func NewMatcher(n *normalize.Normalizer) *Matcher {
	if n == nil {
		n = normalize.New(nil)
	}
	return &Matcher{norm: n}
}

// Normalizer returns the normalizer shared by this matcher.
func (m *Matcher) Normalizer() *normalize.Normalizer {
	return m.norm
}

// Similarity normalizes both names and returns their Ratio.
func (m *Matcher) Similarity(a, b string) float64 {
	return Ratio(m.norm.Normalize(a), m.norm.Normalize(b))
}

// BestMatch scans pool in order and keeps the highest scoring entry; on a tie
// the first one seen wins. The match is accepted only if its score reaches
// threshold.
func (m *Matcher) BestMatch(candidate string, pool []string, threshold float64) (Match, bool) {
	target := m.norm.Normalize(candidate)
	best := Match{Index: -1}
	for i, entry := range pool {
		score := Ratio(target, m.norm.Normalize(entry))
		if best.Index < 0 || score > best.Score {
			best = Match{Index: i, Value: entry, Score: score}
		}
	}
	if best.Index < 0 || best.Score < threshold {
		return Match{Index: -1}, false
	}
	return best, true
}
