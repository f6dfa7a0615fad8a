package syncer

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmicac/matchsync/internal/codec"
	"github.com/kmicac/matchsync/internal/models"
)

func (p *provider) searches() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queries...)
}

func seedFixtures(t *testing.T, s *Syncer) {
	t.Helper()
	writeJSON(t, s.FixturePath("EPL"), []models.FixtureRecord{
		{GameID: 10, Date: "2024-03-02T00:00:00", Status: "Final", HomeTeamID: 501, AwayTeamID: 502,
			HomeTeamKey: "ARS", AwayTeamKey: "CHE", HomeTeamName: "Arsenal FC", AwayTeamName: "Chelsea FC"},
	})
}

const statsDayBody = `{"get": "fixtures", "errors": [], "results": 2, "response": [
  {"fixture": {"id": 900, "date": "2024-03-02T15:00:00+00:00", "status": {"short": "FT"}},
   "league": {"id": 39, "round": "Regular Season - 27"},
   "teams": {"home": {"name": "Arsenal"}, "away": {"name": "Chelsea"}},
   "goals": {"home": 3, "away": 0}},
  {"fixture": {"id": 901, "date": "2024-03-02T18:00:00+00:00", "status": {"short": "FT"}},
   "league": {"id": 140, "round": "Regular Season - 27"},
   "teams": {"home": {"name": "Sevilla"}, "away": {"name": "Getafe"}},
   "goals": {"home": 1, "away": 1}}
]}`

func TestSyncStats_PartialEnrichmentIsCompletedLater(t *testing.T) {
	p := newProvider(t)
	p.json("/fixtures", statsDayBody)
	p.json("/fixtures/events", `{"errors": [], "response": [{"type": "Goal", "time": {"elapsed": 12}}]}`)
	p.json("/fixtures/statistics", `{"errors": [], "response": []}`)
	p.json("/fixtures/players", `{"errors": [], "response": [{"team": {"id": 42}}]}`)

	s := NewSyncer(testConfig(t, p.srv.URL))
	s.setClock(fixedClock("2024-03-02T20:00:00Z"))
	seedFixtures(t, s)
	ctx := context.Background()

	res, err := s.SyncStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	var records []models.StatsRecord
	require.NoError(t, codec.Unmarshal(readFile(t, s.StatsPath("EPL")), &records))
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, 900, r.StatsID)
	require.NotNil(t, r.GameID)
	assert.Equal(t, 10, *r.GameID)
	assert.Equal(t, "FT", r.Status)
	require.NotNil(t, r.Score.Home)
	assert.Equal(t, 3, *r.Score.Home)
	assert.Len(t, r.Events, 1)
	assert.Empty(t, r.Lineups)
	assert.Empty(t, r.Statistics)
	assert.Len(t, r.Players, 1)

	p.json("/fixtures/lineups", `{"errors": [], "response": [{"formation": "4-3-3"}]}`)
	_, err = s.SyncStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, p.count("/fixtures/events"))
	assert.Equal(t, 1, p.count("/fixtures/players"))
	assert.Equal(t, 2, p.count("/fixtures/lineups"))
	assert.Equal(t, 2, p.count("/fixtures/statistics"))

	records = nil
	require.NoError(t, codec.Unmarshal(readFile(t, s.StatsPath("EPL")), &records))
	require.Len(t, records, 1)
	assert.Len(t, records[0].Lineups, 1)
	assert.Len(t, records[0].Events, 1)
}

func TestSyncStats_UnresolvedGameIDIsKeptNull(t *testing.T) {
	p := newProvider(t)
	p.json("/fixtures", statsDayBody)

	s := NewSyncer(testConfig(t, p.srv.URL))
	s.setClock(fixedClock("2024-03-02T20:00:00Z"))
	ctx := context.Background()

	_, err := s.SyncStats(ctx)
	require.NoError(t, err)

	var records []models.StatsRecord
	require.NoError(t, codec.Unmarshal(readFile(t, s.StatsPath("EPL")), &records))
	require.Len(t, records, 1)
	assert.Nil(t, records[0].GameID)
}

func TestSyncStats_RateLimitSignalInBodyRotatesKey(t *testing.T) {
	p := newProvider(t)
	p.handle("/fixtures", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-apisports-key") == "a1" {
			_, _ = w.Write([]byte(`{"errors": {"rateLimit": "Too many requests"}, "response": []}`))
			return
		}
		_, _ = w.Write([]byte(statsDayBody))
	})

	cfg := testConfig(t, p.srv.URL)
	cfg.Stats.APIKeys = []string{"a1", "a2"}
	s := NewSyncer(cfg)
	s.setClock(fixedClock("2024-03-02T20:00:00Z"))

	res, err := s.SyncStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 2, p.count("/fixtures"))
}

const teamsBody = `{"count": 2, "competition": {"code": "PL"}, "teams": [
  {"id": 57, "name": "Arsenal FC", "shortName": "Arsenal", "tla": "ARS", "crest": "https://crests/57.png",
   "founded": 1886, "venue": "Emirates Stadium", "area": {"name": "England"},
   "squad": [
     {"id": 7, "name": "Bukayo Saka", "position": "Offence", "nationality": "England"},
     {"id": 8, "name": "Kylian Mbappé", "position": "Offence", "nationality": "France"},
     {"id": 9, "name": "Zé", "position": "Midfield", "nationality": "Brazil"}
   ]},
  {"id": 61, "name": "Chelsea FC", "shortName": "Chelsea", "tla": "CHE", "crest": "https://crests/61.png",
   "area": {"name": "England"},
   "squad": [
     {"id": 20, "name": "Unknown Person", "position": "Defence"},
     {"id": 21, "name": "Bukayo Saka", "position": "Offence"}
   ]}
]}`

func TestSyncTeamsAndEnrichSquadPhotos(t *testing.T) {
	p := newProvider(t)
	p.json("/competitions/PL/teams", teamsBody)
	p.handle("/players/profiles", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("search") {
		case "Bukayo Saka":
			_, _ = w.Write([]byte(`{"errors": [], "results": 1, "response": [{"player": {"photo": "saka.png"}}]}`))
		case "Kylian Mbappe":
			_, _ = w.Write([]byte(`{"errors": [], "results": 1, "response": [{"player": {"photo": "mbappe.png"}}]}`))
		default:
			_, _ = w.Write([]byte(`{"errors": [], "results": 0, "response": []}`))
		}
	})

	s := NewSyncer(testConfig(t, p.srv.URL))
	ctx := context.Background()

	res, err := s.SyncTeams(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)

	res, err = s.EnrichSquadPhotos(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, []string{"Bukayo Saka", "Kylian Mbappé", "Kylian Mbappe", "Unknown Person", "Person"}, p.searches())

	var teams []models.TeamRecord
	require.NoError(t, codec.Unmarshal(readFile(t, s.TeamsPath("PL")), &teams))
	require.Len(t, teams, 2)
	images := map[string]string{}
	for _, team := range teams {
		for _, pl := range team.Squad {
			images[team.TLA+"/"+pl.Name] = pl.Image
		}
	}
	assert.Equal(t, "saka.png", images["ARS/Bukayo Saka"])
	assert.Equal(t, "mbappe.png", images["ARS/Kylian Mbappé"])
	assert.Equal(t, models.PhotoNotFound, images["ARS/Zé"])
	assert.Equal(t, models.PhotoNotFound, images["CHE/Unknown Person"])
	assert.Equal(t, "saka.png", images["CHE/Bukayo Saka"])

	_, err = s.SyncTeams(ctx)
	require.NoError(t, err)
	teams = nil
	require.NoError(t, codec.Unmarshal(readFile(t, s.TeamsPath("PL")), &teams))
	assert.Equal(t, "saka.png", teams[0].Squad[0].Image, "photos survive a roster refresh")
}

const highlightFeed = `{"response": [
  {"title": "Arsenal vs Chelsea | Premier League", "date": "2024-03-02T17:00:00+0000", "matchviewUrl": "https://feed/m/1",
   "videos": [{"id": "v1", "title": "Highlights", "embed": "<div><iframe src='https://feed/embed/v1' frameborder='0'></iframe></div>"}]},
  {"highlight_id": "v2", "date": "2024-03-02", "title": "Wrexham vs Notts County", "embed_url": "https://feed/embed/v2"},
  {"title": "Arsenal - Chelsea", "date": "2024-03-02T17:00:00+0000",
   "videos": [{"id": "v1", "title": "Duplicate", "embed": "https://feed/embed/v1-dup"}]}
]}`

func TestLinkHighlights(t *testing.T) {
	p := newProvider(t)
	p.json("/highlights", highlightFeed)

	cfg := testConfig(t, p.srv.URL)
	cfg.Highlights.BaseURL = p.srv.URL + "/highlights"
	s := NewSyncer(cfg)
	seedFixtures(t, s)
	writeJSON(t, s.TeamsPath("PL"), []models.TeamRecord{
		{ID: 57, Name: "Arsenal FC", ShortName: "Arsenal", TLA: "ARS", Crest: "https://crests/57.png"},
	})

	res, err := s.LinkHighlights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)

	var stored []models.HighlightRecord
	require.NoError(t, codec.Unmarshal(readFile(t, s.HighlightsPath()), &stored))
	require.Len(t, stored, 2)
	assert.Equal(t, "v1", stored[0].HighlightID)
	assert.Equal(t, "https://feed/embed/v1", stored[0].EmbedURL)
	assert.Equal(t, "2024-03-02", stored[0].Date)

	var linked []models.LinkedHighlight
	require.NoError(t, codec.Unmarshal(readFile(t, s.LinkedPath()), &linked))
	require.Len(t, linked, 2)

	byID := map[string]models.LinkedHighlight{}
	for _, l := range linked {
		byID[l.HighlightID] = l
	}

	match := byID["v1"]
	assert.Equal(t, models.MatchTypeMatched, match.MatchType)
	require.NotNil(t, match.GameID)
	assert.Equal(t, 10, *match.GameID)
	assert.Equal(t, "Premier League", match.League)
	assert.Equal(t, "https://crests/57.png", match.HomeTeam.Logo)
	assert.Equal(t, "default.png", match.AwayTeam.Logo)

	fallback := byID["v2"]
	assert.Equal(t, models.MatchTypeFallback, fallback.MatchType)
	assert.Nil(t, fallback.GameID)
	assert.Equal(t, "Football", fallback.League)
	assert.Equal(t, "default.png", fallback.HomeTeam.Logo)
	assert.Equal(t, "Wrexham", fallback.HomeTeam.Name)

	before := readFile(t, s.LinkedPath())
	_, err = s.LinkHighlights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(readFile(t, s.LinkedPath())))
	assert.Equal(t, filepath.Join(s.config.Storage.DataDir, "highlights", "linked.json"), s.LinkedPath())
}
