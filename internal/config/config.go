// Package config loads the bot's configuration once at startup.
//
// LOAD ORDER (lowest to highest priority):
//  1. Hardcoded defaults (Default)
//  2. A .env file in the working directory, if present (never overrides real env vars)
//  3. The YAML file passed to Load, if any
//  4. SHAMEBOT_* environment variables
//
// The result is a plain value. Components receive the slice of it they need through
// their constructors; nothing reads configuration from package state.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the bot, the HTTP server and the scheduler need.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Todoist  TodoistConfig  `yaml:"todoist"`
	HTTP     HTTPConfig     `yaml:"http"`
	DB       DBConfig       `yaml:"db"`
	Security SecurityConfig `yaml:"security"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Signup   SignupConfig   `yaml:"signup"`
	Log      LogConfig      `yaml:"log"`
}

// DiscordConfig identifies the bot and where it posts.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
	GuildID   string `yaml:"guild_id"`
}

// TodoistConfig holds the OAuth app credentials and API endpoints.
type TodoistConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	APIURL       string `yaml:"api_url"`
	SyncURL      string `yaml:"sync_url"`
	Scope        string `yaml:"scope"`

	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// HTTPConfig configures the webhook/OAuth listener.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// DBConfig points at the SQLite file.
type DBConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig holds the secrets used to sign OAuth state and seal provider tokens.
// Either may be empty: state is then unsigned and tokens are stored as-is.
// VerifyWebhooks checks Todoist's HMAC signature on /webhook deliveries.
type SecurityConfig struct {
	StateSecret    string `yaml:"state_secret"`
	TokenKey       string `yaml:"token_key"`
	VerifyWebhooks bool   `yaml:"verify_webhooks"`
}

// ScheduleConfig sets when the daily readout is posted.
type ScheduleConfig struct {
	PostTime string `yaml:"post_time"` // "HH:MM", UTC
}

// SignupConfig bounds the sign-up conversation.
type SignupConfig struct {
	EmailTimeout time.Duration `yaml:"email_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollAttempts int           `yaml:"poll_attempts"`
	CancelToken  string        `yaml:"cancel_token"`
}

// LogConfig controls console verbosity and the rotating log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default configuration values
const (
	DefaultPort           = 5002
	DefaultDBPath         = "data/database.sqlite"
	DefaultPostTime       = "02:00"
	DefaultAuthURL        = "https://todoist.com/oauth/authorize"
	DefaultTokenURL       = "https://todoist.com/oauth/access_token"
	DefaultAPIURL         = "https://api.todoist.com/rest/v2/"
	DefaultSyncURL        = "https://api.todoist.com/sync/v9/sync"
	DefaultScope          = "data:read_write"
	DefaultRequestTimeout = 10 * time.Second
	DefaultEmailTimeout   = 10 * time.Minute
	DefaultPollInterval   = time.Minute
	DefaultPollAttempts   = 10
	DefaultCancelToken    = "q"
	DefaultLogFile        = "log/shamebot.log"
)

// Default returns a Config with every optional field filled in.
func Default() Config {
	return Config{
		Todoist: TodoistConfig{
			AuthURL:           DefaultAuthURL,
			TokenURL:          DefaultTokenURL,
			APIURL:            DefaultAPIURL,
			SyncURL:           DefaultSyncURL,
			Scope:             DefaultScope,
			RequestTimeout:    DefaultRequestTimeout,
			RequestsPerSecond: 0.5, // Todoist allows 450 requests per 15 minutes
			Burst:             10,
		},
		HTTP:     HTTPConfig{Port: DefaultPort},
		DB:       DBConfig{Path: DefaultDBPath},
		Schedule: ScheduleConfig{PostTime: DefaultPostTime},
		Signup: SignupConfig{
			EmailTimeout: DefaultEmailTimeout,
			PollInterval: DefaultPollInterval,
			PollAttempts: DefaultPollAttempts,
			CancelToken:  DefaultCancelToken,
		},
		Log: LogConfig{
			Level:      "debug",
			FilePath:   DefaultLogFile,
			MaxSizeMB:  10,
			MaxBackups: 7,
			MaxAgeDays: 7,
		},
	}
}

// Load builds the configuration. path may be empty, in which case no YAML file is read.
func Load(path string) (Config, error) {
	// A missing .env is normal; only a malformed one is worth reporting.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}

	if _, _, err := cfg.Schedule.Clock(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"SHAMEBOT_DISCORD_TOKEN":         &c.Discord.Token,
		"SHAMEBOT_DISCORD_CHANNEL_ID":    &c.Discord.ChannelID,
		"SHAMEBOT_DISCORD_GUILD_ID":      &c.Discord.GuildID,
		"SHAMEBOT_TODOIST_CLIENT_ID":     &c.Todoist.ClientID,
		"SHAMEBOT_TODOIST_CLIENT_SECRET": &c.Todoist.ClientSecret,
		"SHAMEBOT_TODOIST_REDIRECT_URI":  &c.Todoist.RedirectURI,
		"SHAMEBOT_TODOIST_TOKEN_URL":     &c.Todoist.TokenURL,
		"SHAMEBOT_STATE_SECRET":          &c.Security.StateSecret,
		"SHAMEBOT_TOKEN_KEY":             &c.Security.TokenKey,
		"SHAMEBOT_POST_TIME":             &c.Schedule.PostTime,
		"SHAMEBOT_LOG_LEVEL":             &c.Log.Level,
		"SHAMEBOT_LOG_FILE":              &c.Log.FilePath,
		"SHAMEBOT_DB_PATH":               &c.DB.Path,
	}
	for key, field := range str {
		if val, ok := os.LookupEnv(key); ok {
			*field = val
		}
	}

	if val := os.Getenv("SHAMEBOT_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("config: invalid SHAMEBOT_PORT %q: %w", val, err)
		}
		c.HTTP.Port = port
	}

	if val := os.Getenv("SHAMEBOT_VERIFY_WEBHOOKS"); val != "" {
		on, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("config: invalid SHAMEBOT_VERIFY_WEBHOOKS %q: %w", val, err)
		}
		c.Security.VerifyWebhooks = on
	}

	if val := os.Getenv("SHAMEBOT_REQUEST_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("config: invalid SHAMEBOT_REQUEST_TIMEOUT %q: %w", val, err)
		}
		c.Todoist.RequestTimeout = d
	}

	return nil
}

// Validate reports the settings the long-running bot cannot start without.
func (c Config) Validate() error {
	var missing []string
	if c.Discord.Token == "" {
		missing = append(missing, "discord.token")
	}
	if c.Discord.ChannelID == "" {
		missing = append(missing, "discord.channel_id")
	}
	if c.Todoist.ClientID == "" {
		missing = append(missing, "todoist.client_id")
	}
	if c.Todoist.ClientSecret == "" {
		missing = append(missing, "todoist.client_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Clock parses PostTime into an hour and minute of the UTC day.
func (s ScheduleConfig) Clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.PostTime)
	if err != nil {
		return 0, 0, fmt.Errorf("config: invalid schedule.post_time %q (want HH:MM): %w", s.PostTime, err)
	}
	return t.Hour(), t.Minute(), nil
}
