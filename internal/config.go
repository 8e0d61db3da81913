package internal

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/linkshelf/internal/api"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Session store backends.
const (
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Sessions SessionsConfig    `yaml:"sessions"`
	Feed     FeedConfig        `yaml:"feed"`
	MCP      MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Sessions.Validate(); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	if err := c.Feed.Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel   string     `yaml:"log_level" env:"LINKSHELF_LOG_LEVEL"`
	PrettyLogs bool       `yaml:"pretty_logs" env:"LINKSHELF_PRETTY_LOGS"`
	Env        string     `yaml:"env" env:"LINKSHELF_ENV"`
	HTTP       HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Env, validation.Required, validation.In(EnvDevelopment, EnvProduction)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// Development reports whether the service runs in development mode.
func (c *ApplicationConfig) Development() bool {
	return c.Env == EnvDevelopment
}

// HTTPConfig holds HTTP server configuration.
//
// BaseURL is the externally visible origin used when building login links.
// TrustedProxies lists the CIDRs or addresses of reverse proxies whose
// forwarding headers name the client; requests from anyone else are keyed on
// their own address.
type HTTPConfig struct {
	Port           int      `yaml:"port" env:"LINKSHELF_HTTP_PORT"`
	BaseURL        string   `yaml:"base_url" env:"LINKSHELF_BASE_URL"`
	TrustedProxies []string `yaml:"trusted_proxies" env:"LINKSHELF_TRUSTED_PROXIES" envSeparator:","`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Origin returns BaseURL without a trailing slash, defaulting to localhost:Port.
func (c *HTTPConfig) Origin() string {
	if c.BaseURL == "" {
		return fmt.Sprintf("http://localhost:%d", c.Port)
	}
	return strings.TrimRight(c.BaseURL, "/")
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.TrustedProxies, validation.By(func(any) error {
			_, err := api.ParseTrustedProxies(c.TrustedProxies)
			return err
		})),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"LINKSHELF_SQLITE_PATH"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Secret signs session tokens and must be at least 16 bytes. LoginBurst and
// LoginRefillPerMin bound login code requests per client IP.
type AuthConfig struct {
	Secret            string        `yaml:"secret" env:"LINKSHELF_AUTH_SECRET"`
	SessionTTL        time.Duration `yaml:"session_ttl" env:"LINKSHELF_SESSION_TTL"`
	CodeTTL           time.Duration `yaml:"code_ttl" env:"LINKSHELF_CODE_TTL"`
	CookieName        string        `yaml:"cookie_name"`
	CookieSecure      bool          `yaml:"cookie_secure" env:"LINKSHELF_COOKIE_SECURE"`
	LoginBurst        int           `yaml:"login_burst"`
	LoginRefillPerMin int           `yaml:"login_refill_per_min"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Secret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.SessionTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.CodeTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.LoginBurst, validation.Min(1)),
		validation.Field(&c.LoginRefillPerMin, validation.Min(1)),
	)
}

// SessionsConfig selects where active sessions are tracked.
type SessionsConfig struct {
	Backend string      `yaml:"backend" env:"LINKSHELF_SESSIONS_BACKEND"`
	Redis   RedisConfig `yaml:"redis"`
}

// Validate validates the sessions configuration.
func (c *SessionsConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = SessionBackendSQLite
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(SessionBackendSQLite, SessionBackendRedis)),
	); err != nil {
		return err
	}
	if c.Backend == SessionBackendRedis {
		return c.Redis.Validate()
	}
	return nil
}

// RedisConfig holds the redis session backend connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"LINKSHELF_REDIS_ADDR"`
	Username string `yaml:"username" env:"LINKSHELF_REDIS_USERNAME"`
	Password string `yaml:"password" env:"LINKSHELF_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"LINKSHELF_REDIS_DB"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DB, validation.Min(0)),
	)
}

// FeedConfig tunes the changelog tailer.
type FeedConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce"`
	Retention    time.Duration `yaml:"retention"`
}

// Validate validates the feed configuration.
func (c *FeedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PollInterval, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.Retention, validation.Required, validation.Min(time.Minute)),
	)
}

// MCPConfig names the account the MCP server acts for.
type MCPConfig struct {
	OwnerEmail string `yaml:"owner_email" env:"LINKSHELF_MCP_OWNER_EMAIL"`
}

// NewDefaultConfig returns a new Config with sensible default values.
// Auth.Secret has no default and must be set.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: "info",
			Env:      EnvProduction,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./linkshelf.db",
		},
		Auth: AuthConfig{
			SessionTTL:        7 * 24 * time.Hour,
			CodeTTL:           10 * time.Minute,
			CookieName:        "linkshelf_session",
			CookieSecure:      true,
			LoginBurst:        5,
			LoginRefillPerMin: 5,
		},
		Sessions: SessionsConfig{
			Backend: SessionBackendSQLite,
		},
		Feed: FeedConfig{
			PollInterval: time.Second,
			Debounce:     50 * time.Millisecond,
			Retention:    24 * time.Hour,
		},
	}
}
