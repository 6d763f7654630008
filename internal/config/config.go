// Package config loads the service configuration from config/config.yaml,
// with .env and environment variables overriding endpoints and secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config mirrors config.yaml
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Sources   []SourceConfig  `mapstructure:"sources"`
	Output    OutputConfig    `mapstructure:"output"`
	Logos     LogosConfig     `mapstructure:"logos"`
	Translate TranslateConfig `mapstructure:"translate"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds the listen ports
type ServerConfig struct {
	RESTPort string `mapstructure:"rest_port"`
	WSPort   string `mapstructure:"ws_port"`
}

// EngineConfig tunes reconciliation
type EngineConfig struct {
	Threshold   float64                 `mapstructure:"threshold"`
	LeadMinutes int                     `mapstructure:"lead_minutes"`
	Families    map[string]FamilyConfig `mapstructure:"families"`
}

// FamilyConfig overrides one family's weights; keys left out of the file stay nil
// and keep the family's default
type FamilyConfig struct {
	League     *float64 `mapstructure:"league"`
	Team       *float64 `mapstructure:"team"`
	Date       *float64 `mapstructure:"date"`
	Time       *float64 `mapstructure:"time"`
	LeagueGate *float64 `mapstructure:"league_gate"`
}

// SourceConfig is one entry of the ordered source list
type SourceConfig struct {
	Name        string  `mapstructure:"name"`
	Kind        string  `mapstructure:"kind"`
	Family      string  `mapstructure:"family"`
	Seed        bool    `mapstructure:"seed"`
	Unmatched   string  `mapstructure:"unmatched"`
	ForceMarker string  `mapstructure:"force_marker"`
	Threshold   float64 `mapstructure:"threshold"`
	URL         string  `mapstructure:"url"`
	Path        string  `mapstructure:"path"`
	Timezone    string  `mapstructure:"timezone"`
	Enabled     *bool   `mapstructure:"enabled"`

	// Timeout bounds this source's fetch; zero falls back to the adapter's
	// own budget, then ingest.timeout
	Timeout time.Duration `mapstructure:"timeout"`

	// flashscore only
	Pages    []PageConfig `mapstructure:"pages"`
	Days     int          `mapstructure:"days"`
	Parallel int          `mapstructure:"parallel"`
}

// IsEnabled reports whether the source takes part in runs; unset means yes
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// PageConfig is a flashscore league page
type PageConfig struct {
	URL    string `mapstructure:"url"`
	League string `mapstructure:"league"`
}

// OutputConfig names the files written after each run; empty disables a file
type OutputConfig struct {
	SchedulePath string `mapstructure:"schedule_path"`
	EnrichedPath string `mapstructure:"enriched_path"`
	ReviewPath   string `mapstructure:"review_path"`
}

// LogosConfig points at the logo directory
type LogosConfig struct {
	URL      string        `mapstructure:"url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// TranslateConfig points at the name translation table
type TranslateConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig drives periodic runs
type SchedulerConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// IngestConfig is shared by every adapter
type IngestConfig struct {
	Workers       int           `mapstructure:"workers"`
	Timeout       time.Duration `mapstructure:"timeout"`
	LocalTimezone string        `mapstructure:"local_timezone"`
	PlayerPrefix  string        `mapstructure:"player_prefix"`
	Proxy         string        `mapstructure:"proxy"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// DatabaseConfig is the optional Postgres run history
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig is the optional logo cache and run stream
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// LogConfig selects level and formatter
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.rest_port", "8080")
	v.SetDefault("server.ws_port", "8081")

	v.SetDefault("engine.threshold", 0.65)
	v.SetDefault("engine.lead_minutes", 10)

	v.SetDefault("output.schedule_path", "sch/schedule.json")
	v.SetDefault("output.enriched_path", "sch/enriched.json")
	v.SetDefault("output.review_path", "")

	v.SetDefault("logos.cache_ttl", time.Hour)
	v.SetDefault("translate.path", "translate.json")

	v.SetDefault("scheduler.interval", 30*time.Minute)
	v.SetDefault("scheduler.run_on_start", true)
	v.SetDefault("scheduler.max_retries", 3)
	v.SetDefault("scheduler.retry_delay", 5*time.Second)

	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.timeout", 30*time.Second)
	v.SetDefault("ingest.local_timezone", "Asia/Jakarta")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads path (or ./config/config.yaml when empty) and applies defaults
// and environment overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("JADWAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// overrideFromEnv applies the unprefixed variables used by the deployment
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("JADWAL_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("JADWAL_LOGO_URL"); v != "" {
		cfg.Logos.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

var (
	knownKinds      = []string{"file", "rereyano", "sportsonline", "streamcenter", "flashscore", "socolive"}
	knownFamilies   = []string{"", "full", "league", "league_only", "team_time", "teamtime"}
	knownPolicies   = []string{"", "append", "discard", "review"}
	knownLogFormats = []string{"", "text", "json"}
)

// Validate reports the first configuration problem found
func (c *Config) Validate() error {
	if c.Engine.Threshold < 0 || c.Engine.Threshold > 1 {
		return fmt.Errorf("%w: engine.threshold %v outside [0,1]", ErrInvalid, c.Engine.Threshold)
	}
	if c.Engine.LeadMinutes < 0 {
		return fmt.Errorf("%w: engine.lead_minutes must not be negative", ErrInvalid)
	}
	for fam, fc := range c.Engine.Families {
		if !contains(knownFamilies, strings.ToLower(fam)) || fam == "" {
			return fmt.Errorf("%w: unknown family %q in engine.families", ErrInvalid, fam)
		}
		for _, w := range []*float64{fc.League, fc.Team, fc.Date, fc.Time, fc.LeagueGate} {
			if w != nil && (*w < 0 || *w > 1) {
				return fmt.Errorf("%w: engine.families.%s weight %v outside [0,1]", ErrInvalid, fam, *w)
			}
		}
		set, sum := 0, 0.0
		for _, w := range []*float64{fc.League, fc.Team, fc.Date, fc.Time} {
			if w != nil {
				set++
				sum += *w
			}
		}
		if set == 4 && sum == 0 {
			return fmt.Errorf("%w: engine.families.%s weights are all zero", ErrInvalid, fam)
		}
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources configured", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("%w: sources[%d] has no name", ErrInvalid, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate source %q", ErrInvalid, s.Name)
		}
		seen[s.Name] = true
		if !contains(knownKinds, strings.ToLower(s.Kind)) {
			return fmt.Errorf("%w: source %q has unknown kind %q", ErrInvalid, s.Name, s.Kind)
		}
		if !contains(knownFamilies, strings.ToLower(s.Family)) {
			return fmt.Errorf("%w: source %q has unknown family %q", ErrInvalid, s.Name, s.Family)
		}
		if !contains(knownPolicies, strings.ToLower(s.Unmatched)) {
			return fmt.Errorf("%w: source %q has unknown unmatched policy %q", ErrInvalid, s.Name, s.Unmatched)
		}
		if strings.EqualFold(s.Kind, "file") && s.Path == "" {
			return fmt.Errorf("%w: file source %q needs a path", ErrInvalid, s.Name)
		}
		if s.Threshold < 0 || s.Threshold > 1 {
			return fmt.Errorf("%w: source %q threshold %v outside [0,1]", ErrInvalid, s.Name, s.Threshold)
		}
		if s.Timeout < 0 || s.Parallel < 0 {
			return fmt.Errorf("%w: source %q timeout and parallel must not be negative", ErrInvalid, s.Name)
		}
	}

	if c.Ingest.Workers < 0 {
		return fmt.Errorf("%w: ingest.workers must not be negative", ErrInvalid)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("%w: scheduler.interval must be positive", ErrInvalid)
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("%w: database enabled without dsn", ErrInvalid)
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("%w: redis enabled without url", ErrInvalid)
	}
	if !contains(knownLogFormats, strings.ToLower(c.Log.Format)) {
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
