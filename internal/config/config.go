// Package config loads the YAML configuration and applies environment
// overrides. Secrets in the file may be stored encrypted; they are decrypted
// here so the rest of the code only ever sees plain values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/idbridge/idbridge/internal/security/secretbox"
)

// ProviderConfig declares one external authentication scheme. Kind selects
// the client implementation: "oidc" for any discovery-capable issuer,
// "github" for GitHub's OAuth2 flavor.
type ProviderConfig struct {
	AuthenticationType string   `yaml:"authentication_type"`
	DisplayName        string   `yaml:"display_name"`
	LogoURL            string   `yaml:"logo_url"`
	Kind               string   `yaml:"kind"`
	Issuer             string   `yaml:"issuer"`
	ClientID           string   `yaml:"client_id"`
	ClientSecret       string   `yaml:"client_secret"`
	Scopes             []string `yaml:"scopes"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
		// BaseURL is the externally visible origin, used to build the
		// callback redirect URL for providers.
		BaseURL   string `yaml:"base_url"`
		HomePath  string `yaml:"home_path"`
		ErrorPath string `yaml:"error_path"`
		Name      string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int32  `yaml:"max_conns"`
			MinConns        int32  `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Driver string `yaml:"driver"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Prefix     string `yaml:"prefix"`
		DefaultTTL string `yaml:"default_ttl"`
	} `yaml:"cache"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Domain     string `yaml:"domain"`
		SameSite   string `yaml:"samesite"`
		Secure     bool   `yaml:"secure"`
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`

	State struct {
		// Secret is base64; may be secretbox-encrypted in the file.
		Secret string `yaml:"secret"`
		TTL    string `yaml:"ttl"`
	} `yaml:"state"`

	SMTP struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		From     string `yaml:"from"`
		User     string `yaml:"user"`
		Pass     string `yaml:"pass"`
		TLS      string `yaml:"tls"`
		Insecure bool   `yaml:"insecure"`
	} `yaml:"smtp"`

	Providers []ProviderConfig `yaml:"providers"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	c.applyEnvOverrides()

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.HomePath == "" {
		c.App.HomePath = "/"
	}
	if c.App.ErrorPath == "" {
		c.App.ErrorPath = "/signin/error"
	}
	if c.App.Name == "" {
		c.App.Name = "idbridge"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "idbridge_session"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "Lax"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "24h"
	}
	if c.State.TTL == "" {
		c.State.TTL = "10m"
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}

	// validate string durations up front
	for _, d := range []string{
		c.Storage.Postgres.ConnMaxLifetime,
		c.Cache.DefaultTTL,
		c.Session.TTL,
		c.State.TTL,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return nil, fmt.Errorf("bad duration %q: %w", d, err)
		}
	}

	if err := c.decryptSecrets(); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn required with the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Cache.Driver {
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return fmt.Errorf("cache.redis.addr required with the redis driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}

	if strings.TrimSpace(c.State.Secret) == "" {
		return fmt.Errorf("state.secret is required")
	}

	seen := map[string]bool{}
	for i, p := range c.Providers {
		name := strings.ToLower(strings.TrimSpace(p.AuthenticationType))
		if name == "" {
			return fmt.Errorf("providers[%d]: authentication_type is required", i)
		}
		if seen[name] {
			return fmt.Errorf("providers[%d]: duplicate authentication_type %q", i, p.AuthenticationType)
		}
		seen[name] = true

		switch p.Kind {
		case "oidc":
			if p.Issuer == "" {
				return fmt.Errorf("provider %s: issuer is required for oidc", p.AuthenticationType)
			}
		case "github":
		default:
			return fmt.Errorf("provider %s: unknown kind %q", p.AuthenticationType, p.Kind)
		}
		if p.ClientID == "" || p.ClientSecret == "" {
			return fmt.Errorf("provider %s: client_id and client_secret are required", p.AuthenticationType)
		}
	}
	return nil
}

// decryptSecrets runs MaybeDecrypt on every secret-bearing field, so values
// can be committed encrypted. Plain values pass through untouched.
func (c *Config) decryptSecrets() error {
	var err error
	if c.State.Secret, err = secretbox.MaybeDecrypt(c.State.Secret); err != nil {
		return fmt.Errorf("state.secret: %w", err)
	}
	if c.SMTP.Pass, err = secretbox.MaybeDecrypt(c.SMTP.Pass); err != nil {
		return fmt.Errorf("smtp.pass: %w", err)
	}
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.ClientSecret, err = secretbox.MaybeDecrypt(p.ClientSecret); err != nil {
			return fmt.Errorf("provider %s client_secret: %w", p.AuthenticationType, err)
		}
	}
	return nil
}

// Duration helpers for the string-typed yaml fields. Load already validated
// them, so parse failures fall back to the given default silently.

func parseDur(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func (c *Config) SessionTTL() time.Duration    { return parseDur(c.Session.TTL, 24*time.Hour) }
func (c *Config) StateTTL() time.Duration      { return parseDur(c.State.TTL, 10*time.Minute) }
func (c *Config) CacheDefaultTTL() time.Duration { return parseDur(c.Cache.DefaultTTL, 2*time.Minute) }
func (c *Config) PgConnMaxLifetime() time.Duration {
	return parseDur(c.Storage.Postgres.ConnMaxLifetime, 0)
}

// IsProd reports whether the app runs with the prod profile.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("APP_BASE_URL"); ok {
		c.App.BaseURL = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CACHE_DRIVER"); ok {
		c.Cache.Driver = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("STATE_SECRET"); ok {
		c.State.Secret = v
	}
	if v, ok := getEnvBool("SESSION_SECURE"); ok {
		c.Session.Secure = v
	}
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USER"); ok {
		c.SMTP.User = v
	}
	if v, ok := getEnvStr("SMTP_PASS"); ok {
		c.SMTP.Pass = v
	}

	// prod always forces Secure cookies
	if strings.EqualFold(c.App.Env, "prod") {
		c.Session.Secure = true
	}
}
