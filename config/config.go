// Package config loads the settings of the auth service.
//
// Values are layered: defaults, then an optional TOML file, then a .env
// file, then AUTH_* environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"

	auth "github.com/messfeedback/go-auth"
)

const EnvPrefix = "AUTH_"

// MinSigningKeyLength is the shortest HS256 key accepted.
const MinSigningKeyLength = 32

type Config struct {
	SigningKey       string        `toml:"signing_key"`
	ContextKey       string        `toml:"context_key"`
	TokenExpiration  int           `toml:"token_expiration"`
	TokenLookup      string        `toml:"token_lookup"`
	AuthScheme       string        `toml:"auth_scheme"`
	Issuer           string        `toml:"issuer"`
	Audience         []string      `toml:"audience"`
	MaxLoginAttempts int           `toml:"max_login_attempts"`
	LockoutDuration  time.Duration `toml:"lockout_duration"`
	SecureCookies    bool          `toml:"secure_cookies"`

	ListenAddr string `toml:"listen_addr"`
	DSN        string `toml:"dsn"`
	LogLevel   string `toml:"log_level"`

	LoginRPS   float64 `toml:"login_rps"`
	LoginBurst int     `toml:"login_burst"`

	AuditQueueSize int `toml:"audit_queue_size"`

	BootstrapAdmin         string `toml:"bootstrap_admin"`
	BootstrapAdminPassword string `toml:"bootstrap_admin_password"`
}

var _ auth.Config = (*Config)(nil)

// Default returns the built in settings.
func Default() *Config {
	return &Config{
		ContextKey:       "auth_token",
		TokenExpiration:  auth.DefaultTokenExpiration,
		AuthScheme:       "Bearer",
		Issuer:           "mess-feedback",
		Audience:         []string{"mess-feedback"},
		MaxLoginAttempts: auth.DefaultMaxLoginAttempts,
		LockoutDuration:  auth.DefaultLockoutWindow,
		SecureCookies:    true,
		ListenAddr:       ":8080",
		DSN:              "file:auth.db?cache=shared",
		LogLevel:         "info",
		LoginRPS:         1,
		LoginBurst:       10,
		AuditQueueSize:   1024,
	}
}

// Load builds the configuration. path names an optional TOML file; an
// empty path skips it. envFiles are passed to godotenv and missing
// files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadTOML decodes path over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "failed to decode TOML config").
			WithMetadata(map[string]any{"path": path})
	}
	return nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "failed to load env file")
	}
	return nil
}

// ApplyEnvOverrides copies AUTH_* variables over the current values.
func (c *Config) ApplyEnvOverrides() {
	if v := getEnv("SIGNING_KEY"); v != "" {
		c.SigningKey = v
	}
	if v := getEnv("CONTEXT_KEY"); v != "" {
		c.ContextKey = v
	}
	c.TokenExpiration = getEnvAsInt("TOKEN_EXPIRATION", c.TokenExpiration)
	if v := getEnv("TOKEN_LOOKUP"); v != "" {
		c.TokenLookup = v
	}
	if v := getEnv("AUTH_SCHEME"); v != "" {
		c.AuthScheme = v
	}
	if v := getEnv("ISSUER"); v != "" {
		c.Issuer = v
	}
	if v := getEnv("AUDIENCE"); v != "" {
		c.Audience = splitList(v)
	}
	c.MaxLoginAttempts = getEnvAsInt("MAX_LOGIN_ATTEMPTS", c.MaxLoginAttempts)
	c.LockoutDuration = getEnvAsDuration("LOCKOUT_DURATION", c.LockoutDuration)
	c.SecureCookies = getEnvAsBool("SECURE_COOKIES", c.SecureCookies)

	if v := getEnv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := getEnv("DSN"); v != "" {
		c.DSN = v
	}
	if v := getEnv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	c.LoginRPS = getEnvAsFloat("LOGIN_RPS", c.LoginRPS)
	c.LoginBurst = getEnvAsInt("LOGIN_BURST", c.LoginBurst)
	c.AuditQueueSize = getEnvAsInt("AUDIT_QUEUE_SIZE", c.AuditQueueSize)

	if v := getEnv("BOOTSTRAP_ADMIN"); v != "" {
		c.BootstrapAdmin = v
	}
	if v := getEnv("BOOTSTRAP_ADMIN_PASSWORD"); v != "" {
		c.BootstrapAdminPassword = v
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	problems := map[string]any{}

	if len(c.SigningKey) < MinSigningKeyLength {
		problems["signing_key"] = "must be at least 32 bytes"
	}
	if c.TokenExpiration <= 0 {
		problems["token_expiration"] = "must be positive"
	}
	if c.MaxLoginAttempts <= 0 {
		problems["max_login_attempts"] = "must be positive"
	}
	if c.LockoutDuration <= 0 {
		problems["lockout_duration"] = "must be positive"
	}
	if strings.TrimSpace(c.DSN) == "" {
		problems["dsn"] = "is required"
	}
	if c.BootstrapAdmin != "" && c.BootstrapAdminPassword == "" {
		problems["bootstrap_admin_password"] = "is required with bootstrap_admin"
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration", errors.CategoryValidation).
			WithTextCode("INVALID_CONFIG").
			WithMetadata(problems)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) GetSigningKey() string             { return c.SigningKey }
func (c *Config) GetContextKey() string             { return c.ContextKey }
func (c *Config) GetTokenExpiration() int           { return c.TokenExpiration }
func (c *Config) GetTokenLookup() string            { return c.TokenLookup }
func (c *Config) GetAuthScheme() string             { return c.AuthScheme }
func (c *Config) GetIssuer() string                 { return c.Issuer }
func (c *Config) GetAudience() []string             { return c.Audience }
func (c *Config) GetMaxLoginAttempts() int          { return c.MaxLoginAttempts }
func (c *Config) GetLockoutDuration() time.Duration { return c.LockoutDuration }
func (c *Config) GetSecureCookies() bool            { return c.SecureCookies }

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func getEnvAsInt(key string, def int) int {
	v := getEnv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvAsFloat(key string, def float64) float64 {
	v := getEnv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvAsBool(key string, def bool) bool {
	v := getEnv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
