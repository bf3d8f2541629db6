// Package config loads service configuration from SPORTSBOARD_* environment
// variables and an optional YAML file.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/phenomenon0/sportsboard/pkg/board"
	"github.com/phenomenon0/sportsboard/pkg/odds"
)

// Config holds all application configuration.
type Config struct {
	HTTP      HTTPConfig
	Log       LogConfig
	Odds      OddsConfig
	Scores    ScoresConfig
	Secondary SecondaryConfig
	Teams     TeamsConfig
	Cache     CacheConfig
	CORS      CORSConfig
	Markets   MarketsConfig
	Format    FormatConfig
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// OddsConfig holds the primary odds provider settings.
type OddsConfig struct {
	URL          string        `mapstructure:"url"`
	Token        string        `mapstructure:"token"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ScoresConfig holds the live-score feed settings.
type ScoresConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	BaseURL      string         `mapstructure:"base_url"`
	PollInterval time.Duration  `mapstructure:"poll_interval"`
	Leagues      []board.League `mapstructure:"leagues"`
}

// SecondaryConfig holds the secondary prediction-market settings.
type SecondaryConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url"`
	Tag          string        `mapstructure:"tag"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// TeamsConfig holds the team directory settings. An empty BaseURL disables
// team lookups.
type TeamsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// CacheConfig holds snapshot cache settings. An empty RedisURL selects the
// in-memory store.
type CacheConfig struct {
	RedisURL        string        `mapstructure:"redis_url"`
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	TTL             time.Duration `mapstructure:"ttl"`
}

// CORSConfig holds allowed browser origins.
type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

// MarketsConfig overrides the market-classification keyword table.
type MarketsConfig struct {
	Keywords map[board.MarketKind][]string
}

// FormatConfig holds the initial odds display format.
type FormatConfig struct {
	Default odds.Format
}

// Load reads configuration. path may be empty; when set, the file must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPORTSBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("odds.url", "")
	v.SetDefault("odds.token", "")
	v.SetDefault("odds.poll_interval", 30*time.Second)

	v.SetDefault("scores.enabled", true)
	v.SetDefault("scores.base_url", "https://site.api.espn.com/apis/site/v2/sports")
	v.SetDefault("scores.poll_interval", 5*time.Minute)
	v.SetDefault("scores.leagues", "NFL,NBA,MLB,NHL")

	v.SetDefault("secondary.enabled", true)
	v.SetDefault("secondary.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("secondary.tag", "")
	v.SetDefault("secondary.poll_interval", time.Minute)

	v.SetDefault("teams.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("teams.ttl", 24*time.Hour)

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.freshness_window", time.Hour)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("cors.origins", "*")
	v.SetDefault("format.default", string(odds.FormatAmerican))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}

	cfg.HTTP = HTTPConfig{Addr: v.GetString("http.addr")}

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	cfg.Odds = OddsConfig{
		URL:          v.GetString("odds.url"),
		Token:        v.GetString("odds.token"),
		PollInterval: v.GetDuration("odds.poll_interval"),
	}

	cfg.Scores = ScoresConfig{
		Enabled:      v.GetBool("scores.enabled"),
		BaseURL:      v.GetString("scores.base_url"),
		PollInterval: v.GetDuration("scores.poll_interval"),
	}
	for _, l := range list(v, "scores.leagues") {
		cfg.Scores.Leagues = append(cfg.Scores.Leagues, board.League(strings.ToUpper(l)))
	}

	cfg.Secondary = SecondaryConfig{
		Enabled:      v.GetBool("secondary.enabled"),
		BaseURL:      v.GetString("secondary.base_url"),
		Tag:          v.GetString("secondary.tag"),
		PollInterval: v.GetDuration("secondary.poll_interval"),
	}

	cfg.Teams = TeamsConfig{
		BaseURL: v.GetString("teams.base_url"),
		TTL:     v.GetDuration("teams.ttl"),
	}

	cfg.Cache = CacheConfig{
		RedisURL:        v.GetString("cache.redis_url"),
		FreshnessWindow: v.GetDuration("cache.freshness_window"),
		TTL:             v.GetDuration("cache.ttl"),
	}

	cfg.CORS = CORSConfig{Origins: list(v, "cors.origins")}

	if v.IsSet("markets.keywords") {
		raw := v.GetStringMapStringSlice("markets.keywords")
		cfg.Markets.Keywords = make(map[board.MarketKind][]string, len(raw))
		for kind, words := range raw {
			cfg.Markets.Keywords[board.MarketKind(kind)] = words
		}
	}

	f, err := odds.ParseFormat(v.GetString("format.default"))
	if err != nil {
		return nil, fmt.Errorf("format.default: %w", err)
	}
	cfg.Format.Default = f

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// list reads a key that may be a YAML sequence or a comma-separated string.
func list(v *viper.Viper, key string) []string {
	var out []string
	for _, s := range v.GetStringSlice(key) {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Odds.URL == "" {
		return fmt.Errorf("odds.url is required")
	}
	intervals := map[string]time.Duration{
		"odds.poll_interval":      c.Odds.PollInterval,
		"scores.poll_interval":    c.Scores.PollInterval,
		"secondary.poll_interval": c.Secondary.PollInterval,
		"cache.freshness_window":  c.Cache.FreshnessWindow,
		"cache.ttl":               c.Cache.TTL,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	known := make(map[board.League]bool)
	for _, l := range board.Leagues() {
		known[l] = true
	}
	for _, l := range c.Scores.Leagues {
		if !known[l] {
			return fmt.Errorf("scores.leagues: unknown league %q", l)
		}
	}
	return nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(c.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
