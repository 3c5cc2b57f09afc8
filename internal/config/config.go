package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfiguration marks settings that are missing or invalid. Callers fail fast on it.
var ErrConfiguration = errors.New("configuration error")

const (
	ModeLive = "live"
	ModeMock = "mock"

	BackendMemory = "memory"
	BackendSQL    = "sql"
	BackendRedis  = "redis"

	CompletionRedirect = "redirect"
	CompletionPopup    = "popup"

	DefaultComposioBaseURL = "https://backend.composio.dev/api/v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig    `json:"basic_config"`
	Composio    ComposioConfig `json:"composio"`
	Session     SessionConfig  `json:"session"`
	Database    DatabaseConfig `json:"database"`
	Redis       RedisConfig    `json:"redis"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	Mode          string `json:"mode"`
	PublicBaseURL string `json:"public_base_url"`
	LogLevel      string `json:"log_level"`
}

type ComposioConfig struct {
	BaseURL                string `json:"base_url"`
	APIKey                 string `json:"api_key"`
	AuthConfigID           string `json:"auth_config_id"`
	UpstreamTimeoutSeconds int    `json:"upstream_timeout_seconds"`
}

type SessionConfig struct {
	Backend    string `json:"backend"`
	Completion string `json:"completion"`
	TTLHours   int    `json:"ttl_hours"`
	// CleanupMinutes is the purge interval for backends without native expiry.
	CleanupMinutes int `json:"cleanup_minutes"`
}

type DatabaseConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Load reads configuration from the provided path (defaults to config.json) and
// overlays environment variables. A missing file is not an error: the service is
// normally configured through the environment alone.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Database.Driver == "sqlite3" && cfg.Database.DSN != "" && !strings.HasPrefix(cfg.Database.DSN, ":memory:") &&
		!strings.HasPrefix(cfg.Database.DSN, "file:") && !filepath.IsAbs(cfg.Database.DSN) {
		cfg.Database.DSN = filepath.Join(filepath.Dir(absPath), cfg.Database.DSN)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&c.BasicConfig.ServerAddress, "MEETINGVIEWER_ADDR")
	setString(&c.BasicConfig.Mode, "MEETINGVIEWER_MODE")
	setString(&c.BasicConfig.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&c.BasicConfig.LogLevel, "LOG_LEVEL")
	setString(&c.Composio.BaseURL, "COMPOSIO_BASE_URL")
	setString(&c.Composio.APIKey, "COMPOSIO_API_KEY")
	setString(&c.Composio.AuthConfigID, "COMPOSIO_AUTH_CONFIG_ID")
	setString(&c.Session.Backend, "SESSION_BACKEND")
	setString(&c.Session.Completion, "OAUTH_COMPLETION")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Username, "REDIS_USERNAME")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	var invalid []string
	setInt := func(dst *int, key string) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			invalid = append(invalid, key)
			return
		}
		*dst = n
	}
	setInt(&c.Composio.UpstreamTimeoutSeconds, "UPSTREAM_TIMEOUT_SECONDS")
	setInt(&c.Session.TTLHours, "SESSION_TTL_HOURS")
	setInt(&c.Session.CleanupMinutes, "SESSION_CLEANUP_MINUTES")
	setInt(&c.Redis.DB, "REDIS_DB")

	if len(invalid) > 0 {
		return fmt.Errorf("%w: invalid values for %s", ErrConfiguration, strings.Join(invalid, ", "))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.Mode == "" {
		c.BasicConfig.Mode = ModeLive
	}
	if c.BasicConfig.LogLevel == "" {
		c.BasicConfig.LogLevel = "info"
	}
	c.BasicConfig.PublicBaseURL = strings.TrimRight(c.BasicConfig.PublicBaseURL, "/")
	if c.Composio.BaseURL == "" {
		c.Composio.BaseURL = DefaultComposioBaseURL
	}
	c.Composio.BaseURL = strings.TrimRight(c.Composio.BaseURL, "/")
	if c.Composio.UpstreamTimeoutSeconds == 0 {
		c.Composio.UpstreamTimeoutSeconds = 10
	}
	if c.Session.Backend == "" {
		c.Session.Backend = BackendMemory
	}
	if c.Session.Completion == "" {
		c.Session.Completion = CompletionRedirect
	}
	if c.Redis.Addr == "" && c.Session.Backend == BackendRedis {
		c.Redis.Addr = "127.0.0.1:6379"
	}
}

// Validate reports every missing or unsupported setting at once.
func (c *Config) Validate() error {
	var missing, invalid []string

	switch c.BasicConfig.Mode {
	case ModeMock:
		return nil
	case ModeLive:
	default:
		invalid = append(invalid, "MEETINGVIEWER_MODE")
	}

	if c.Composio.APIKey == "" {
		missing = append(missing, "COMPOSIO_API_KEY")
	}
	if c.Composio.AuthConfigID == "" {
		missing = append(missing, "COMPOSIO_AUTH_CONFIG_ID")
	}
	if c.BasicConfig.PublicBaseURL == "" {
		missing = append(missing, "PUBLIC_BASE_URL")
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendSQL:
		if c.Database.Driver == "" {
			missing = append(missing, "DATABASE_DRIVER")
		}
		if c.Database.DSN == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	default:
		invalid = append(invalid, "SESSION_BACKEND")
	}

	switch c.Session.Completion {
	case CompletionRedirect, CompletionPopup:
	default:
		invalid = append(invalid, "OAUTH_COMPLETION")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: invalid values for %s", ErrConfiguration, strings.Join(invalid, ", "))
	}
	return nil
}

// IsMock reports whether the service serves static sample meetings.
func (c *Config) IsMock() bool {
	return c.BasicConfig.Mode == ModeMock
}

// SessionTTL is the session lifetime; durable backends default to 7 days, memory to 24 hours.
func (c *Config) SessionTTL() time.Duration {
	if c.Session.TTLHours > 0 {
		return time.Duration(c.Session.TTLHours) * time.Hour
	}
	if c.Session.Backend == BackendMemory {
		return 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// CleanupInterval is how often expired sessions are purged; zero selects the store default.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Session.CleanupMinutes) * time.Minute
}

// UpstreamTimeout bounds every outbound connector call.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Composio.UpstreamTimeoutSeconds) * time.Second
}

// CallbackURL is where the connector sends the browser after consent.
func (c *Config) CallbackURL() string {
	return c.BasicConfig.PublicBaseURL + "/api/oauth/callback"
}
