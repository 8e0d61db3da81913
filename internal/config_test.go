package internal

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Auth.Secret = "0123456789abcdef"
	return cfg
}

func TestDefaultConfig_RequiresSecret(t *testing.T) {
	cfg := NewDefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("default config without a secret should fail")
	}
	if !strings.Contains(err.Error(), "auth") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDefaultConfig_WithSecretValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestAuthConfig_ShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Secret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("short secret should fail")
	}
}

func TestAuthConfig_SessionTTLTooSmall(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.SessionTTL = time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatal("session ttl below a minute should fail")
	}
}

func TestApplicationConfig_InvalidEnv(t *testing.T) {
	cfg := validConfig()
	cfg.App.Env = "staging"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown env should fail")
	}
}

func TestApplicationConfig_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.App.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown log level should fail")
	}
}

func TestSessionsConfig_EmptyBackendDefaultsSQLite(t *testing.T) {
	cfg := validConfig()
	cfg.Sessions.Backend = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty backend should default: %v", err)
	}
	if cfg.Sessions.Backend != SessionBackendSQLite {
		t.Errorf("backend = %q, want %q", cfg.Sessions.Backend, SessionBackendSQLite)
	}
}

func TestSessionsConfig_RedisRequiresAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Sessions.Backend = SessionBackendRedis
	if err := cfg.Validate(); err == nil {
		t.Fatal("redis backend without addr should fail")
	}
	cfg.Sessions.Redis.Addr = "localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("redis backend with addr rejected: %v", err)
	}
}

func TestFeedConfig_PollIntervalRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Feed.PollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero poll interval should fail")
	}
}

func TestHTTPConfig_Origin(t *testing.T) {
	c := HTTPConfig{Port: 9000}
	if got := c.Origin(); got != "http://localhost:9000" {
		t.Errorf("origin = %q", got)
	}
	c.BaseURL = "https://links.example.com/"
	if got := c.Origin(); got != "https://links.example.com" {
		t.Errorf("origin = %q", got)
	}
}

func TestHTTPConfig_TrustedProxies(t *testing.T) {
	cfg := validConfig()
	cfg.App.HTTP.TrustedProxies = []string{"10.0.0.0/8", "127.0.0.1"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid proxies rejected: %v", err)
	}
	cfg.App.HTTP.TrustedProxies = []string{"not-an-ip"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad proxy should fail")
	}
}
