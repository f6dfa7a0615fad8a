package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Goal event types that count toward the score.
const (
	GoalTypeGoal        = "Goal"
	GoalTypePenaltyGoal = "PenaltyGoal"
	GoalTypeOwnGoal     = "OwnGoal"
)

// Highlight link outcomes.
const (
	MatchTypeMatched  = "matched"
	MatchTypeFallback = "fallback"
)

// FixtureRecord is one scheduled game from the schedule provider, keyed by GameId.
type FixtureRecord struct {
	GameID        int            `json:"GameId"`
	RoundID       *int           `json:"RoundId"`
	RoundName     string         `json:"RoundName"`
	Date          string         `json:"Date"`
	DateTime      string         `json:"DateTime"`
	Status        string         `json:"Status"`
	Week          *int           `json:"Week"`
	VenueType     string         `json:"VenueType"`
	HomeTeamID    int            `json:"HomeTeamId"`
	AwayTeamID    int            `json:"AwayTeamId"`
	HomeTeamKey   string         `json:"HomeTeamKey"`
	AwayTeamKey   string         `json:"AwayTeamKey"`
	HomeTeamName  string         `json:"HomeTeamName"`
	AwayTeamName  string         `json:"AwayTeamName"`
	HomeTeamScore *int           `json:"HomeTeamScore"`
	AwayTeamScore *int           `json:"AwayTeamScore"`
	Result        *int           `json:"Result"`
	Points        map[string]int `json:"Points"`
	Goals         []GoalEvent    `json:"Goals"`
}

// Scored reports whether the computed outcome fields have been filled in.
func (f FixtureRecord) Scored() bool {
	return f.HomeTeamScore != nil && f.AwayTeamScore != nil
}

// Day returns the calendar date (YYYY-MM-DD) of the fixture.
func (f FixtureRecord) Day() string {
	return DayOf(f.Date)
}

// GoalEvent is one entry of a box score goal list.
type GoalEvent struct {
	GoalID     *int   `json:"GoalId,omitempty"`
	TeamID     int    `json:"TeamId"`
	PlayerID   *int   `json:"PlayerId,omitempty"`
	Name       string `json:"Name,omitempty"`
	Type       string `json:"Type"`
	GameMinute *int   `json:"GameMinute,omitempty"`
}

// Counts reports whether the event contributes to the score.
func (g GoalEvent) Counts() bool {
	switch g.Type {
	case GoalTypeGoal, GoalTypePenaltyGoal, GoalTypeOwnGoal:
		return true
	}
	return false
}

// StatsScore is the provider-reported score of a stats fixture.
type StatsScore struct {
	Home *int `json:"Home"`
	Away *int `json:"Away"`
}

// StatsRecord is one fixture of the statistics provider, keyed by StatsId.
// GameId links it to a FixtureRecord and stays null when unresolved.
type StatsRecord struct {
	StatsID    int               `json:"StatsId"`
	GameID     *int              `json:"GameId"`
	Date       string            `json:"Date"`
	Status     string            `json:"Status"`
	Round      string            `json:"Round"`
	HomeTeam   string            `json:"HomeTeam"`
	AwayTeam   string            `json:"AwayTeam"`
	Score      StatsScore        `json:"Score"`
	Events     []json.RawMessage `json:"Events"`
	Lineups    []json.RawMessage `json:"Lineups"`
	Statistics []json.RawMessage `json:"Statistics"`
	Players    []json.RawMessage `json:"Players"`
}

// Detail block names, as used in the provider's endpoint paths.
const (
	BlockEvents     = "events"
	BlockLineups    = "lineups"
	BlockStatistics = "statistics"
	BlockPlayers    = "players"
)

// DetailBlocks lists every independently fetchable block in fetch order.
var DetailBlocks = []string{BlockEvents, BlockLineups, BlockStatistics, BlockPlayers}

// Block returns a pointer to the named detail block, or nil for an unknown name.
func (s *StatsRecord) Block(name string) *[]json.RawMessage {
	switch name {
	case BlockEvents:
		return &s.Events
	case BlockLineups:
		return &s.Lineups
	case BlockStatistics:
		return &s.Statistics
	case BlockPlayers:
		return &s.Players
	}
	return nil
}

// MissingBlocks lists the detail blocks that are still empty.
func (s *StatsRecord) MissingBlocks() []string {
	var missing []string
	for _, name := range DetailBlocks {
		if len(*s.Block(name)) == 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// HighlightRecord is a raw media highlight as listed by the video source.
type HighlightRecord struct {
	HighlightID string `json:"highlight_id"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	EmbedURL    string `json:"embed_url"`
}

// Key is the natural key of a highlight: (highlight_id, date).
func (h HighlightRecord) Key() string {
	return h.HighlightID + "\x00" + DayOf(h.Date)
}

// HighlightTeam is one side of a linked highlight.
type HighlightTeam struct {
	Name  string `json:"name"`
	Logo  string `json:"logo"`
	Score *int   `json:"score"`
}

// LinkedHighlight is a highlight enriched with its resolved fixture.
type LinkedHighlight struct {
	HighlightRecord
	League     string        `json:"league"`
	GameID     *int          `json:"game_id"`
	MatchType  string        `json:"match_type"`
	MatchScore float64       `json:"match_score"`
	HomeTeam   HighlightTeam `json:"home_team"`
	AwayTeam   HighlightTeam `json:"away_team"`
}

// TeamRecord is one club from the team roster provider.
type TeamRecord struct {
	ID         int           `json:"id"`
	Name       string        `json:"name"`
	ShortName  string        `json:"shortName"`
	TLA        string        `json:"tla"`
	Crest      string        `json:"crest"`
	Address    string        `json:"address,omitempty"`
	Website    string        `json:"website,omitempty"`
	Founded    *int          `json:"founded,omitempty"`
	Venue      string        `json:"venue,omitempty"`
	ClubColors string        `json:"clubColors,omitempty"`
	Area       string        `json:"area,omitempty"`
	Squad      []SquadPlayer `json:"squad,omitempty"`
}

// PhotoNotFound marks a squad player whose photo lookup came back empty.
const PhotoNotFound = "not_found"

// SquadPlayer is one player of a team roster.
type SquadPlayer struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Position    string `json:"position,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	Image       string `json:"image,omitempty"`
}

// DayOf returns the YYYY-MM-DD prefix of a provider date or datetime string.
func DayOf(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 10 {
		return value[:10]
	}
	return value
}

// ParseDay parses the calendar date of a provider date or datetime string.
func ParseDay(value string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", DayOf(value))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SyncJob represents one synchronization run
type SyncJob struct {
	ID             int        `json:"id" gorm:"primaryKey"`
	JobType        string     `json:"job_type"` // "fixtures", "stats", "teams", "highlights", "photos", "videos", "all"
	Status         string     `json:"status"`   // "running", "completed", "failed"
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ItemsProcessed int        `json:"items_processed"`
	ItemsSkipped   int        `json:"items_skipped"`
	ErrorMessage   string     `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// ScheduleConfig represents the cron schedule configuration
type ScheduleConfig struct {
	ID        int       `json:"id" gorm:"primaryKey"`
	CronExpr  string    `json:"cron_expr" gorm:"not null"`
	Enabled   bool      `json:"enabled" gorm:"default:true"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// API Response structures
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type StatusResponse struct {
	LastRun         *time.Time `json:"last_run,omitempty"`
	NextRun         *time.Time `json:"next_run,omitempty"`
	IsRunning       bool       `json:"is_running"`
	CurrentJob      string     `json:"current_job,omitempty"`
	ScheduleEnabled bool       `json:"schedule_enabled"`
	CronExpression  string     `json:"cron_expression"`
	Competitions    []string   `json:"competitions"`
	StatsLeagues    []string   `json:"stats_leagues"`
}
