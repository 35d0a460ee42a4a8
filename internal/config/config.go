package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/logging"
)

const (
	defaultTimezone  = "America/Chicago"
	fallbackTimezone = "UTC"

	// ConfigPathEnv overrides the config file location.
	ConfigPathEnv = "CONFIG_PATH"

	ModePartitioned = "partitioned"
	ModeSingle      = "single"
)

// DefaultConfigPaths are probed in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config holds every setting the bot needs. It is built once at startup.
type Config struct {
	Logging    logging.Config   `koanf:"logging"`
	Scheduler  SchedulerConfig  `koanf:"scheduler"`
	Discord    DiscordConfig    `koanf:"discord"`
	Spoilers   SpoilersConfig   `koanf:"spoilers"`
	News       NewsConfig       `koanf:"news"`
	Database   DatabaseConfig   `koanf:"database"`
	Admin      AdminConfig      `koanf:"admin"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// SchedulerConfig carries the time zone used for cutoffs and the daily slot.
type SchedulerConfig struct {
	Timezone string `koanf:"timezone"`

	location         *time.Location
	timezoneFallback bool
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// TimezoneFallback reports whether the configured zone was unknown and UTC is used instead.
func (s SchedulerConfig) TimezoneFallback() bool {
	return s.timezoneFallback
}

// DiscordConfig describes the chat platform connection.
type DiscordConfig struct {
	Token           string        `koanf:"token"`
	APIBaseURL      string        `koanf:"api_base_url" validate:"required,url"`
	StatusChannelID string        `koanf:"status_channel_id" validate:"omitempty,numeric"`
	OwnerID         string        `koanf:"owner_id" validate:"omitempty,numeric"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	SendInterval    time.Duration `koanf:"send_interval" validate:"gte=0"`
}

// SpoilersConfig drives the daily Scryfall digest.
type SpoilersConfig struct {
	Enabled      bool   `koanf:"enabled"`
	PostHour     int    `koanf:"post_hour" validate:"min=0,max=23"`
	PostMinute   int    `koanf:"post_minute" validate:"min=0,max=59"`
	WindowDays   int    `koanf:"window_days" validate:"min=0"`
	StatePath    string `koanf:"state_path" validate:"required"`
	PostDelayMS  int    `koanf:"post_delay_ms" validate:"min=0"`
	BulkDir      string `koanf:"bulk_dir" validate:"required"`
	BulkIndexURL string `koanf:"bulk_index_url" validate:"required,url"`
	UserAgent    string `koanf:"user_agent" validate:"required"`
	ChannelID    string `koanf:"channel_id" validate:"omitempty,numeric"`
	UBChannelID  string `koanf:"ub_channel_id" validate:"omitempty,numeric"`
	// Mode partitioned sends universes-beyond cards to UBChannelID; single sends everything to ChannelID.
	Mode string `koanf:"mode" validate:"oneof=partitioned single"`
}

// PostDelay is the pause between consecutive deliveries.
func (s SpoilersConfig) PostDelay() time.Duration {
	return time.Duration(s.PostDelayMS) * time.Millisecond
}

// NewsConfig drives the hourly news archive poll.
type NewsConfig struct {
	Enabled      bool              `koanf:"enabled"`
	Interval     time.Duration     `koanf:"interval" validate:"gt=0"`
	ArchiveURL   string            `koanf:"archive_url" validate:"required,url"`
	BaseURL      string            `koanf:"base_url" validate:"required,url"`
	UserAgent    string            `koanf:"user_agent" validate:"required"`
	FetchTimeout time.Duration     `koanf:"fetch_timeout" validate:"gt=0"`
	StorePath    string            `koanf:"store_path" validate:"required"`
	PostDelayMS  int               `koanf:"post_delay_ms" validate:"min=0"`
	Mode         string            `koanf:"mode" validate:"oneof=partitioned single"`
	ChannelID    string            `koanf:"channel_id" validate:"omitempty,numeric"`
	Channels     map[string]string `koanf:"channels"`
	// RoutesFile, when set, is re-read on change instead of using Channels.
	RoutesFile string   `koanf:"routes_file"`
	RSSFeeds   []string `koanf:"rss_feeds" validate:"dive,url"`
}

// PostDelay is the pause between consecutive deliveries.
func (n NewsConfig) PostDelay() time.Duration {
	return time.Duration(n.PostDelayMS) * time.Millisecond
}

// DatabaseConfig enables the optional Postgres delivery history.
type DatabaseConfig struct {
	DSN   string `koanf:"dsn"`
	Table string `koanf:"table" validate:"required"`
}

// AdminConfig exposes the HTTP admin surface.
type AdminConfig struct {
	Enabled           bool   `koanf:"enabled"`
	Addr              string `koanf:"addr" validate:"required"`
	JWTSecret         string `koanf:"jwt_secret"`
	RequestsPerMinute int    `koanf:"requests_per_minute" validate:"min=1"`
}

// SupervisorConfig tunes service restarts.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// NewsCategory ties a news URL prefix to its channel setting.
type NewsCategory struct {
	Name   string
	Prefix string
	EnvVar string
}

// NewsCategories is the default prefix routing table for the news archive.
var NewsCategories = []NewsCategory{
	{Name: "announcements", Prefix: "/en/news/announcements/", EnvVar: "ANNOUNCEMENTS_CHANNEL_ID"},
	{Name: "card-image-gallery", Prefix: "/en/news/card-image-gallery/", EnvVar: "CARD_IMAGE_GALLERY_CHANNEL_ID"},
	{Name: "card-preview", Prefix: "/en/news/card-preview/", EnvVar: "CARD_PREVIEW_CHANNEL_ID"},
	{Name: "feature", Prefix: "/en/news/feature/", EnvVar: "FEATURE_CHANNEL_ID"},
	{Name: "magic-story", Prefix: "/en/news/magic-story/", EnvVar: "MAGIC_STORY_CHANNEL_ID"},
	{Name: "making-magic", Prefix: "/en/news/making-magic/", EnvVar: "MAKING_MAGIC_CHANNEL_ID"},
	{Name: "mtg-arena", Prefix: "/en/news/mtg-arena/", EnvVar: "MTG_ARENA_CHANNEL_ID"},
}

// NewsPrefix is the path every routed news link lives under.
const NewsPrefix = "/en/news/"

// Load reads defaults, the optional YAML file and the environment, then validates.
func Load() (Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit file path; an empty path skips the file layer.
func LoadFile(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps the bot's environment variable names onto config keys.
// Unknown variables are dropped.
func envTransform(key, value string) (string, interface{}) {
	if mapped, ok := envMappings[key]; ok {
		if mapped == "news.rss_feeds" {
			return mapped, splitList(value)
		}
		return mapped, value
	}
	for _, cat := range NewsCategories {
		if key == cat.EnvVar {
			return "news.channels." + cat.Name, value
		}
	}
	return "", nil
}

var envMappings = map[string]string{
	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"TZ":         "scheduler.timezone",

	"DISCORD_TOKEN":          "discord.token",
	"DISCORD_API_BASE_URL":   "discord.api_base_url",
	"BOT_TESTING_CHANNEL_ID": "discord.status_channel_id",
	"OWNER_ID":               "discord.owner_id",

	"SPOILERS_ENABLED":        "spoilers.enabled",
	"POST_HOUR":               "spoilers.post_hour",
	"POST_MINUTE":             "spoilers.post_minute",
	"WINDOW_DAYS":             "spoilers.window_days",
	"STATE_PATH":              "spoilers.state_path",
	"POST_DELAY_MS":           "spoilers.post_delay_ms",
	"BULK_DIR":                "spoilers.bulk_dir",
	"MTG_SPOILERS_CHANNEL_ID": "spoilers.channel_id",
	"UB_SPOILERS_CHANNEL_ID":  "spoilers.ub_channel_id",
	"SPOILERS_MODE":           "spoilers.mode",

	"NEWS_ENABLED":        "news.enabled",
	"NEWS_INTERVAL":       "news.interval",
	"NEWS_MODE":           "news.mode",
	"MTG_NEWS_CHANNEL_ID": "news.channel_id",
	"NEWS_STORE_PATH":     "news.store_path",
	"NEWS_POST_DELAY_MS":  "news.post_delay_ms",
	"NEWS_ROUTES_FILE":    "news.routes_file",
	"NEWS_RSS_FEEDS":      "news.rss_feeds",

	"DATABASE_DSN": "database.dsn",

	"ADMIN_ENABLED":    "admin.enabled",
	"ADMIN_ADDR":       "admin.addr",
	"ADMIN_JWT_SECRET": "admin.jwt_secret",
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, _ = time.LoadLocation(fallbackTimezone)
		c.Scheduler.timezoneFallback = true
	}
	c.Scheduler.location = loc
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks formats and the settings each enabled feature requires.
// Every failure is a *domain.ConfigurationError.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &domain.ConfigurationError{
				Field:  fe.Namespace(),
				Reason: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &domain.ConfigurationError{Field: "config", Reason: err.Error()}
	}

	if (c.Spoilers.Enabled || c.News.Enabled) && c.Discord.Token == "" {
		return missing("DISCORD_TOKEN")
	}

	if c.Spoilers.Enabled && c.Spoilers.ChannelID == "" {
		return missing("MTG_SPOILERS_CHANNEL_ID")
	}

	if c.News.Enabled {
		switch c.News.Mode {
		case ModeSingle:
			if c.News.ChannelID == "" {
				return missing("MTG_NEWS_CHANNEL_ID")
			}
		default:
			if len(c.News.RSSFeeds) > 0 && c.News.ChannelID == "" {
				return missing("MTG_NEWS_CHANNEL_ID")
			}
			if c.News.RoutesFile == "" {
				for _, cat := range NewsCategories {
					raw, ok := c.News.Channels[cat.Name]
					if !ok || raw == "" {
						return missing(cat.EnvVar)
					}
					if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
						return &domain.ConfigurationError{
							Field:  cat.EnvVar,
							Reason: fmt.Sprintf("invalid integer %q", raw),
						}
					}
				}
			}
		}
	}

	if c.Admin.Enabled {
		if c.Admin.JWTSecret == "" {
			return missing("ADMIN_JWT_SECRET")
		}
		if c.Discord.OwnerID == "" {
			return missing("OWNER_ID")
		}
	}

	return nil
}

func missing(name string) error {
	return &domain.ConfigurationError{Field: name, Reason: "missing required setting"}
}

func defaultConfig() Config {
	return Config{
		Logging:   logging.Config{Level: "info", Format: "json"},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone},
		Discord: DiscordConfig{
			APIBaseURL:     "https://discord.com/api/v10",
			RequestTimeout: 30 * time.Second,
			SendInterval:   time.Second,
		},
		Spoilers: SpoilersConfig{
			Enabled:      true,
			PostHour:     9,
			PostMinute:   0,
			WindowDays:   1,
			StatePath:    "state.json",
			PostDelayMS:  700,
			BulkDir:      "bulk_cache",
			BulkIndexURL: "https://api.scryfall.com/bulk-data",
			UserAgent:    "RileysScryfallDiscordBot/1.0 (bulk default cards)",
			Mode:         ModePartitioned,
		},
		News: NewsConfig{
			Enabled:      true,
			Interval:     time.Hour,
			ArchiveURL:   "https://magic.wizards.com/en/news/archive",
			BaseURL:      "https://magic.wizards.com",
			UserAgent:    "MTGNewsBot/1.0",
			FetchTimeout: 15 * time.Second,
			StorePath:    "articles.json",
			PostDelayMS:  800,
			Mode:         ModePartitioned,
			Channels:     map[string]string{},
		},
		Database: DatabaseConfig{Table: "delivery_history"},
		Admin: AdminConfig{
			Addr:              ":8080",
			RequestsPerMinute: 30,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}
