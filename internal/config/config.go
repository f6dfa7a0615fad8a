package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Fetcher    FetcherConfig
	Schedule   ScheduleProviderConfig
	Stats      StatsProviderConfig
	Teams      TeamsProviderConfig
	Highlights ProviderConfig
	Policy     PolicyConfig
	Resolve    ResolveConfig
	Storage    StorageConfig
	Scheduler  SchedulerConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

// FetcherConfig holds the retry and pacing settings shared by every provider.
type FetcherConfig struct {
	UserAgent        string
	RequestDelay     time.Duration
	RequestTimeout   time.Duration
	MaxRetries       int
	MaxRotations     int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	RateLimitCooloff time.Duration
}

// ProviderConfig describes how to reach and authenticate with one provider.
type ProviderConfig struct {
	BaseURL   string
	APIKeys   []string
	KeyHeader string
	KeyParam  string
}

type ScheduleProviderConfig struct {
	ProviderConfig
	Competitions     []string
	Season           string
	TerminalStatuses []string
}

type StatsProviderConfig struct {
	ProviderConfig
	// Leagues maps a competition code to the provider's numeric league id.
	Leagues          map[string]int
	Timezone         string
	DayOffsets       []int
	TerminalStatuses []string
	DetailDelay      time.Duration
}

type TeamsProviderConfig struct {
	ProviderConfig
	Competitions []string
	Delay        time.Duration
}

// PolicyConfig bounds the freshness window in days. Zero leaves a side open.
type PolicyConfig struct {
	PastDays   int
	FutureDays int
}

type ResolveConfig struct {
	LinkThreshold   float64
	LookupThreshold float64
	DefaultLeague   string
	DefaultLogo     string
	Aliases         map[string]string
	StopWords       []string
}

type StorageConfig struct {
	DataDir    string
	VideoFiles []string
}

type SchedulerConfig struct {
	CronExpression string
	Enabled        bool
}

type DatabaseConfig struct {
	CachePath string
}

type LoggingConfig struct {
	Level string
	// Format is "console" or "json".
	Format string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Attempt to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Warning: .env file not found, using environment variables: %v\n", err)
	}

	setDefaults()

	leagues, err := parseIntMap(viper.GetString("STATS_LEAGUES"))
	if err != nil {
		return nil, errors.Wrap(err, "STATS_LEAGUES")
	}
	offsets, err := parseInts(viper.GetString("STATS_DAY_OFFSETS"))
	if err != nil {
		return nil, errors.Wrap(err, "STATS_DAY_OFFSETS")
	}
	aliases, err := parseAliases(viper.GetString("TEAM_ALIASES"))
	if err != nil {
		return nil, errors.Wrap(err, "TEAM_ALIASES")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("PORT"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		Fetcher: FetcherConfig{
			UserAgent:        viper.GetString("USER_AGENT"),
			RequestDelay:     millis("REQUEST_DELAY_MS"),
			RequestTimeout:   time.Duration(viper.GetInt("REQUEST_TIMEOUT_SECONDS")) * time.Second,
			MaxRetries:       viper.GetInt("MAX_RETRIES"),
			MaxRotations:     viper.GetInt("MAX_ROTATIONS"),
			BackoffBase:      millis("BACKOFF_BASE_MS"),
			BackoffMax:       millis("BACKOFF_MAX_MS"),
			RateLimitCooloff: millis("RATE_LIMIT_COOLDOWN_MS"),
		},
		Schedule: ScheduleProviderConfig{
			ProviderConfig:   provider("SCHEDULE"),
			Competitions:     parseList(viper.GetString("COMPETITIONS")),
			Season:           viper.GetString("SEASON"),
			TerminalStatuses: parseList(viper.GetString("TERMINAL_STATUSES")),
		},
		Stats: StatsProviderConfig{
			ProviderConfig:   provider("STATS"),
			Leagues:          leagues,
			Timezone:         viper.GetString("STATS_TIMEZONE"),
			DayOffsets:       offsets,
			TerminalStatuses: parseList(viper.GetString("STATS_TERMINAL_STATUSES")),
			DetailDelay:      millis("STATS_DETAIL_DELAY_MS"),
		},
		Teams: TeamsProviderConfig{
			ProviderConfig: provider("TEAMS"),
			Competitions:   parseList(viper.GetString("TEAM_COMPETITIONS")),
			Delay:          millis("TEAMS_DELAY_MS"),
		},
		Highlights: ProviderConfig{
			BaseURL:   viper.GetString("HIGHLIGHTS_URL"),
			APIKeys:   parseList(viper.GetString("HIGHLIGHTS_API_KEYS")),
			KeyHeader: viper.GetString("HIGHLIGHTS_KEY_HEADER"),
			KeyParam:  viper.GetString("HIGHLIGHTS_KEY_PARAM"),
		},
		Policy: PolicyConfig{
			PastDays:   viper.GetInt("FRESHNESS_PAST_DAYS"),
			FutureDays: viper.GetInt("FRESHNESS_FUTURE_DAYS"),
		},
		Resolve: ResolveConfig{
			LinkThreshold:   viper.GetFloat64("LINK_THRESHOLD"),
			LookupThreshold: viper.GetFloat64("LOOKUP_THRESHOLD"),
			DefaultLeague:   viper.GetString("DEFAULT_LEAGUE"),
			DefaultLogo:     viper.GetString("DEFAULT_LOGO"),
			Aliases:         aliases,
			StopWords:       parseList(viper.GetString("STOP_WORDS")),
		},
		Storage: StorageConfig{
			DataDir:    viper.GetString("DATA_DIR"),
			VideoFiles: parseList(viper.GetString("VIDEO_FILES")),
		},
		Scheduler: SchedulerConfig{
			CronExpression: viper.GetString("SCHEDULE_CRON"),
			Enabled:        viper.GetBool("SCHEDULER_ENABLED"),
		},
		Database: DatabaseConfig{
			CachePath: viper.GetString("CACHE_DB_PATH"),
		},
		Logging: LoggingConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")

	viper.SetDefault("USER_AGENT", "matchsync/1.0 (+https://github.com/kmicac/matchsync)")
	viper.SetDefault("REQUEST_DELAY_MS", 1000)
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	viper.SetDefault("MAX_RETRIES", 5)
	viper.SetDefault("MAX_ROTATIONS", 3)
	viper.SetDefault("BACKOFF_BASE_MS", 2000)
	viper.SetDefault("BACKOFF_MAX_MS", 60000)
	viper.SetDefault("RATE_LIMIT_COOLDOWN_MS", 60000)

	viper.SetDefault("SCHEDULE_BASE_URL", "https://api.sportsdata.io/v4/soccer")
	viper.SetDefault("SCHEDULE_KEY_PARAM", "key")
	viper.SetDefault("COMPETITIONS", "DEB,ELC,EPL,ESP,FRL1,ITSA,MLS,UCL,UEL")
	viper.SetDefault("SEASON", "2026")
	viper.SetDefault("TERMINAL_STATUSES", "Final")

	viper.SetDefault("STATS_BASE_URL", "https://v3.football.api-sports.io")
	viper.SetDefault("STATS_KEY_HEADER", "x-apisports-key")
	viper.SetDefault("STATS_LEAGUES", "DEB:78,EPL:39,ESP:140,FRL1:61,ITSA:135")
	viper.SetDefault("STATS_TIMEZONE", "Europe/London")
	viper.SetDefault("STATS_DAY_OFFSETS", "-1,0,1")
	viper.SetDefault("STATS_TERMINAL_STATUSES", "FT,AET,PEN")
	viper.SetDefault("STATS_DETAIL_DELAY_MS", 6000)

	viper.SetDefault("TEAMS_BASE_URL", "https://api.football-data.org/v4")
	viper.SetDefault("TEAMS_KEY_HEADER", "X-Auth-Token")
	viper.SetDefault("TEAM_COMPETITIONS", "PL,PD,SA,BL1,FL1,DED,CL")
	viper.SetDefault("TEAMS_DELAY_MS", 6000)

	viper.SetDefault("HIGHLIGHTS_KEY_PARAM", "key")

	viper.SetDefault("FRESHNESS_PAST_DAYS", 0)
	viper.SetDefault("FRESHNESS_FUTURE_DAYS", 0)

	viper.SetDefault("LINK_THRESHOLD", 0.6)
	viper.SetDefault("LOOKUP_THRESHOLD", 0.85)
	viper.SetDefault("DEFAULT_LEAGUE", "Football")
	viper.SetDefault("DEFAULT_LOGO", "https://upload.wikimedia.org/wikipedia/commons/d/d3/Soccerball.svg")
	viper.SetDefault("TEAM_ALIASES", "psg=Paris Saint-Germain,man utd=Manchester United,man city=Manchester City,spurs=Tottenham Hotspur,barca=Barcelona,inter=Internazionale,bayern=Bayern Munich,atleti=Atletico Madrid")
	viper.SetDefault("STOP_WORDS", "fc,cf,afc,club,athletic,cd,ud,sc")

	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("VIDEO_FILES", "videos/videos.json,shorts/shorts.json")

	viper.SetDefault("SCHEDULE_CRON", "0 */6 * * *") // every 6 hours
	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("CACHE_DB_PATH", "./storage/ledger.db")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
}

func provider(prefix string) ProviderConfig {
	return ProviderConfig{
		BaseURL:   strings.TrimRight(viper.GetString(prefix+"_BASE_URL"), "/"),
		APIKeys:   parseList(viper.GetString(prefix + "_API_KEYS")),
		KeyHeader: viper.GetString(prefix + "_KEY_HEADER"),
		KeyParam:  viper.GetString(prefix + "_KEY_PARAM"),
	}
}

func millis(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Millisecond
}

// parseList splits a comma-separated list, dropping empty entries
func parseList(s string) []string {
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseInts parses "-1,0,1"
func parseInts(s string) ([]int, error) {
	parts := parseList(s)
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %q", part)
		}
		result = append(result, n)
	}
	return result, nil
}

// parseIntMap parses "EPL:39,ESP:140"
func parseIntMap(s string) (map[string]int, error) {
	result := make(map[string]int)
	for _, part := range parseList(s) {
		code, id, ok := strings.Cut(part, ":")
		if !ok {
			return nil, errors.Newf("expected CODE:ID, got %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			return nil, errors.Wrapf(err, "parse id of %q", part)
		}
		result[strings.TrimSpace(code)] = n
	}
	return result, nil
}

// parseAliases parses "psg=Paris Saint-Germain,spurs=Tottenham Hotspur"
func parseAliases(s string) (map[string]string, error) {
	result := make(map[string]string)
	for _, part := range parseList(s) {
		alias, canonical, ok := strings.Cut(part, "=")
		if !ok {
			return nil, errors.Newf("expected alias=name, got %q", part)
		}
		result[strings.TrimSpace(alias)] = strings.TrimSpace(canonical)
	}
	return result, nil
}

// GetLeagueName returns the display name of a competition code
func GetLeagueName(code string) string {
	leagueMap := map[string]string{
		"DEB":  "Bundesliga",
		"ELC":  "Championship",
		"EPL":  "Premier League",
		"ESP":  "La Liga",
		"FRL1": "Ligue 1",
		"ITSA": "Serie A",
		"MLS":  "MLS",
		"UCL":  "Champions League",
		"UEL":  "Europa League",
		"PL":   "Premier League",
		"PD":   "La Liga",
		"SA":   "Serie A",
		"BL1":  "Bundesliga",
		"FL1":  "Ligue 1",
		"DED":  "Eredivisie",
		"CL":   "Champions League",
	}

	if name, ok := leagueMap[code]; ok {
		return name
	}
	return code
}
