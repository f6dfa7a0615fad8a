// Package normalize canonicalizes free-text team and player names so that
// matching and index lookups compare like with like.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultStopWords are club-type tokens that carry no identity.
// "real" and "atletico" are left out: dropping them makes Real Madrid and
// Atletico Madrid collide.
var DefaultStopWords = []string{"fc", "cf", "afc", "club", "athletic", "cd", "ud", "sc"}

// Normalizer is safe for concurrent use.
type Normalizer struct {
	stopWords map[string]struct{}
}

// New builds a Normalizer. A nil stopWords slice selects DefaultStopWords.
func New(stopWords []string) *Normalizer {
	if stopWords == nil {
		stopWords = DefaultStopWords
	}
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return &Normalizer{stopWords: set}
}

// Normalize lower-cases, strips diacritics, collapses non-alphanumeric runs
// to single spaces and drops stop words. A name made only of stop words keeps
// its tokens so it never normalizes to "".
func (n *Normalizer) Normalize(name string) string {
	tokens := Tokens(cases.Lower(language.Und).String(name))
	if len(tokens) == 0 {
		return ""
	}

	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := n.stopWords[tok]; !stop {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		kept = tokens
	}
	return strings.Join(kept, " ")
}

// StripDiacritics removes combining marks, leaving the base letters.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokens strips diacritics from s, drops any remaining non-ASCII rune and
// splits on every run of characters outside [a-z0-9]. Input is expected to
// be lower-cased already.
func Tokens(s string) []string {
	s = StripDiacritics(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r > unicode.MaxASCII:
			// letters without a decomposition (ø, ł, ß) are dropped
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}
