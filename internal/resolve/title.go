package resolve

import (
	"regexp"
	"strings"
)

var (
	versusRe       = regexp.MustCompile(`(?i)\s+(?:vs\.?|v\.?)\s+`)
	trailingScore  = regexp.MustCompile(`\s+\d+\s*$`)
	leadingScore   = regexp.MustCompile(`^\d+\s+`)
	scoreSeparator = regexp.MustCompile(`\s+\d+\s*[-:]\s*\d+\s+`)
)

// ParseTitle extracts the home and away team names from a highlight title
// such as "HIGHLIGHTS: Arsenal 2-1 Chelsea | Premier League" or
// "Real Madrid vs. Barcelona - Extended".
func ParseTitle(title string) (home, away string, ok bool) {
	t := title
	if i := strings.Index(t, "|"); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSpace(t)

	parts := versusRe.Split(t, 2)
	if len(parts) != 2 {
		parts = scoreSeparator.Split(t, 2)
	}
	if len(parts) != 2 {
		return "", "", false
	}

	home = parts[0]
	if i := strings.LastIndex(home, ":"); i >= 0 {
		home = home[i+1:]
	}
	home = trailingScore.ReplaceAllString(strings.TrimSpace(home), "")

	away = parts[1]
	for _, sep := range []string{" - ", " (", " ["} {
		if i := strings.Index(away, sep); i >= 0 {
			away = away[:i]
		}
	}
	away = leadingScore.ReplaceAllString(strings.TrimSpace(away), "")

	home, away = strings.TrimSpace(home), strings.TrimSpace(away)
	if home == "" || away == "" {
		return "", "", false
	}
	return home, away, true
}
