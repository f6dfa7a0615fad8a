// Package resolve links records from sources that share no identifier,
// using exact dates and fuzzy team-name similarity.
package resolve

import (
	"github.com/kmicac/matchsync/internal/fuzzy"
	"github.com/kmicac/matchsync/internal/models"
)

type Config struct {
	// LinkThreshold is the minimum average home/away similarity for a
	// fixture link. The exact date corroborates the names.
	LinkThreshold float64
	// LookupThreshold is the minimum similarity for a standalone name lookup.
	LookupThreshold float64
	DefaultLeague   string
	DefaultLogo     string
	// Aliases maps colloquial names to canonical ones ("psg" -> "Paris Saint-Germain").
	Aliases map[string]string
}

// Source is one fixture collection that highlights can be linked against.
type Source struct {
	League   string
	Fixtures []models.FixtureRecord
}

// Candidate is a fixture accepted by FindFixture.
type Candidate struct {
	League  string
	Fixture models.FixtureRecord
	Score   float64
}

type Resolver struct {
	cfg     Config
	matcher *fuzzy.Matcher
	aliases map[string]string
	teams   *TeamIndex
	sources []Source
}

func NewResolver(cfg Config, m *fuzzy.Matcher) *Resolver {
	if m == nil {
		m = fuzzy.NewMatcher(nil)
	}
	if cfg.LinkThreshold <= 0 {
		cfg.LinkThreshold = fuzzy.LinkThreshold
	}
	if cfg.LookupThreshold <= 0 {
		cfg.LookupThreshold = fuzzy.LookupThreshold
	}

	aliases := make(map[string]string, len(cfg.Aliases))
	for alias, canonical := range cfg.Aliases {
		if key := m.Normalizer().Normalize(alias); key != "" {
			aliases[key] = canonical
		}
	}

	return &Resolver{
		cfg:     cfg,
		matcher: m,
		aliases: aliases,
		teams:   NewTeamIndex(m.Normalizer(), nil),
	}
}

// SetTeams replaces the team index used by ResolveLogo.
func (r *Resolver) SetTeams(idx *TeamIndex) {
	if idx == nil {
		idx = NewTeamIndex(r.matcher.Normalizer(), nil)
	}
	r.teams = idx
}

// AddSource appends a fixture collection. Sources are searched in the
// order they were added.
func (r *Resolver) AddSource(league string, fixtures []models.FixtureRecord) {
	r.sources = append(r.sources, Source{League: league, Fixtures: fixtures})
}

// Canonical applies the alias table to name.
func (r *Resolver) Canonical(name string) string {
	if canonical, ok := r.aliases[r.matcher.Normalizer().Normalize(name)]; ok {
		return canonical
	}
	return name
}

// ResolveLogo returns the crest for a team name: exact normalized lookup
// first, then a fuzzy lookup at the lookup threshold, then the default logo.
func (r *Resolver) ResolveLogo(name string) string {
	name = r.Canonical(name)
	if logo, ok := r.teams.lookup(name); ok {
		return logo
	}
	if match, ok := r.matcher.BestMatch(name, r.teams.names(), r.cfg.LookupThreshold); ok {
		return r.teams.entries[match.Index].logo
	}
	return r.cfg.DefaultLogo
}

// FindFixture searches every source for the fixture played on day by home
// and away. The first highest scoring fixture wins.
func (r *Resolver) FindFixture(day, home, away string) (Candidate, bool) {
	best := Candidate{Score: -1}
	found := false
	for _, src := range r.sources {
		f, score, ok := r.bestFixture(src.Fixtures, day, home, away)
		if ok && score > best.Score {
			best = Candidate{League: src.League, Fixture: f, Score: score}
			found = true
		}
	}
	if !found || best.Score < r.cfg.LinkThreshold {
		return Candidate{Score: max(best.Score, 0)}, false
	}
	return best, true
}

// FindGameID resolves the GameId of the fixture in fixtures matching day,
// home and away, or nil when nothing clears the link threshold.
func (r *Resolver) FindGameID(fixtures []models.FixtureRecord, day, home, away string) *int {
	f, score, ok := r.bestFixture(fixtures, day, home, away)
	if !ok || score < r.cfg.LinkThreshold {
		return nil
	}
	id := f.GameID
	return &id
}

func (r *Resolver) bestFixture(fixtures []models.FixtureRecord, day, home, away string) (models.FixtureRecord, float64, bool) {
	day = models.DayOf(day)
	home, away = r.Canonical(home), r.Canonical(away)

	var best models.FixtureRecord
	bestScore := -1.0
	for _, f := range fixtures {
		if f.Day() != day {
			continue
		}
		score := (r.side(home, f.HomeTeamName, f.HomeTeamKey) + r.side(away, f.AwayTeamName, f.AwayTeamKey)) / 2
		if score > bestScore {
			best, bestScore = f, score
		}
	}
	return best, bestScore, bestScore >= 0
}

// side scores a team name against a fixture side as the better of the full
// name and the short key.
func (r *Resolver) side(name, fullName, key string) float64 {
	score := r.matcher.Similarity(name, r.Canonical(fullName))
	if key != "" {
		score = max(score, r.matcher.Similarity(name, key))
	}
	return score
}

// LinkHighlight resolves h against every source. A highlight that cannot
// be linked is kept as a fallback with the default league and logos.
func (r *Resolver) LinkHighlight(h models.HighlightRecord) models.LinkedHighlight {
	home, away, ok := ParseTitle(h.Title)
	if !ok {
		return r.fallback(h, h.Title, "", 0)
	}

	c, ok := r.FindFixture(h.Date, home, away)
	if !ok {
		return r.fallback(h, home, away, c.Score)
	}

	f := c.Fixture
	gameID := f.GameID
	return models.LinkedHighlight{
		HighlightRecord: h,
		League:          c.League,
		GameID:          &gameID,
		MatchType:       models.MatchTypeMatched,
		MatchScore:      c.Score,
		HomeTeam: models.HighlightTeam{
			Name:  f.HomeTeamName,
			Logo:  r.ResolveLogo(f.HomeTeamName),
			Score: f.HomeTeamScore,
		},
		AwayTeam: models.HighlightTeam{
			Name:  f.AwayTeamName,
			Logo:  r.ResolveLogo(f.AwayTeamName),
			Score: f.AwayTeamScore,
		},
	}
}

func (r *Resolver) fallback(h models.HighlightRecord, home, away string, score float64) models.LinkedHighlight {
	league := r.cfg.DefaultLeague
	if league == "" {
		league = "Football"
	}
	return models.LinkedHighlight{
		HighlightRecord: h,
		League:          league,
		MatchType:       models.MatchTypeFallback,
		MatchScore:      score,
		HomeTeam:        models.HighlightTeam{Name: r.Canonical(home), Logo: r.ResolveLogo(home)},
		AwayTeam:        models.HighlightTeam{Name: r.Canonical(away), Logo: r.ResolveLogo(away)},
	}
}
