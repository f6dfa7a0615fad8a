package syncer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kmicac/matchsync/internal/models"
)

// scheduleRound is one element of the schedule provider's season payload.
type scheduleRound struct {
	RoundID *int           `json:"RoundId"`
	Name    string         `json:"Name"`
	Games   []scheduleGame `json:"Games"`
}

type scheduleGame struct {
	GameID       int    `json:"GameId"`
	Day          string `json:"Day"`
	DateTime     string `json:"DateTime"`
	Status       string `json:"Status"`
	Week         *int   `json:"Week"`
	VenueType    string `json:"VenueType"`
	HomeTeamID   int    `json:"HomeTeamId"`
	AwayTeamID   int    `json:"AwayTeamId"`
	HomeTeamKey  string `json:"HomeTeamKey"`
	AwayTeamKey  string `json:"AwayTeamKey"`
	HomeTeamName string `json:"HomeTeamName"`
	AwayTeamName string `json:"AwayTeamName"`
}

// record builds the unscored fixture for g.
func (g scheduleGame) record(round scheduleRound) models.FixtureRecord {
	return models.FixtureRecord{
		GameID:       g.GameID,
		RoundID:      round.RoundID,
		RoundName:    round.Name,
		Date:         g.Day,
		DateTime:     g.DateTime,
		Status:       g.Status,
		Week:         g.Week,
		VenueType:    g.VenueType,
		HomeTeamID:   g.HomeTeamID,
		AwayTeamID:   g.AwayTeamID,
		HomeTeamKey:  g.HomeTeamKey,
		AwayTeamKey:  g.AwayTeamKey,
		HomeTeamName: g.HomeTeamName,
		AwayTeamName: g.AwayTeamName,
		Points:       map[string]int{},
		Goals:        []models.GoalEvent{},
	}
}

type boxScore struct {
	Goals []models.GoalEvent `json:"Goals"`
}

// statsFixture is one entry of the stats provider's fixtures-by-date list.
type statsFixture struct {
	Fixture struct {
		ID     int    `json:"id"`
		Date   string `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID    int    `json:"id"`
		Round string `json:"round"`
	} `json:"league"`
	Teams struct {
		Home struct {
			Name string `json:"name"`
		} `json:"home"`
		Away struct {
			Name string `json:"name"`
		} `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

func (f statsFixture) record() models.StatsRecord {
	return models.StatsRecord{
		StatsID:  f.Fixture.ID,
		Date:     f.Fixture.Date,
		Status:   f.Fixture.Status.Short,
		Round:    f.League.Round,
		HomeTeam: f.Teams.Home.Name,
		AwayTeam: f.Teams.Away.Name,
		Score:    models.StatsScore{Home: f.Goals.Home, Away: f.Goals.Away},
	}
}

type teamPayload struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	ShortName  string `json:"shortName"`
	TLA        string `json:"tla"`
	Crest      string `json:"crest"`
	Address    string `json:"address"`
	Website    string `json:"website"`
	Founded    *int   `json:"founded"`
	Venue      string `json:"venue"`
	ClubColors string `json:"clubColors"`
	Area       struct {
		Name string `json:"name"`
	} `json:"area"`
	Squad []struct {
		ID          int    `json:"id"`
		Name        string `json:"name"`
		Position    string `json:"position"`
		Nationality string `json:"nationality"`
	} `json:"squad"`
}

func (t teamPayload) record() models.TeamRecord {
	rec := models.TeamRecord{
		ID:         t.ID,
		Name:       t.Name,
		ShortName:  t.ShortName,
		TLA:        t.TLA,
		Crest:      t.Crest,
		Address:    t.Address,
		Website:    t.Website,
		Founded:    t.Founded,
		Venue:      t.Venue,
		ClubColors: t.ClubColors,
		Area:       t.Area.Name,
	}
	for _, p := range t.Squad {
		rec.Squad = append(rec.Squad, models.SquadPlayer{
			ID:          p.ID,
			Name:        p.Name,
			Position:    p.Position,
			Nationality: p.Nationality,
		})
	}
	return rec
}

// playerSearch is the stats provider's player profile search response.
type playerSearch struct {
	Results  int `json:"results"`
	Response []struct {
		Player struct {
			Photo string `json:"photo"`
		} `json:"player"`
	} `json:"response"`
}

// highlightPayload accepts both the stored highlight layout and the
// match-centric layout of video feeds, where the embed is an HTML snippet.
type highlightPayload struct {
	HighlightID string `json:"highlight_id"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	EmbedURL    string `json:"embed_url"`

	MatchviewURL string `json:"matchviewUrl"`
	Videos       []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Embed string `json:"embed"`
	} `json:"videos"`
}

func (h highlightPayload) record() (models.HighlightRecord, bool) {
	rec := models.HighlightRecord{
		HighlightID: h.HighlightID,
		Date:        models.DayOf(h.Date),
		Title:       strings.TrimSpace(h.Title),
		EmbedURL:    h.EmbedURL,
	}
	if len(h.Videos) > 0 {
		v := h.Videos[0]
		if rec.HighlightID == "" {
			rec.HighlightID = v.ID
		}
		if rec.EmbedURL == "" {
			rec.EmbedURL = embedSource(v.Embed)
		}
	}
	if rec.HighlightID == "" {
		rec.HighlightID = h.MatchviewURL
	}
	if rec.EmbedURL == "" {
		rec.EmbedURL = h.MatchviewURL
	}
	return rec, rec.HighlightID != "" && rec.Date != ""
}

// embedSource extracts the iframe src from an embed snippet. Plain URLs
// pass through unchanged.
func embedSource(snippet string) string {
	snippet = strings.TrimSpace(snippet)
	if snippet == "" || !strings.HasPrefix(snippet, "<") {
		return snippet
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("iframe").First().Attr("src")
	return strings.TrimSpace(src)
}
