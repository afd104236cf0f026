// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tenantdesk/backend/internal/platform/logger"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the REST server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// PasswordResetTTL is how long a password reset link stays valid.
	PasswordResetTTL string `mapstructure:"PASSWORD_RESET_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// FrontendResetURL is the page that receives ?uid=&token= from password reset mails.
	FrontendResetURL string `mapstructure:"FRONTEND_RESET_URL"`
	// FrontendInviteURL is the page that receives ?key= from invitation mails.
	FrontendInviteURL string `mapstructure:"FRONTEND_INVITE_URL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogOutput string `mapstructure:"LOG_OUTPUT"`
	LogPath   string `mapstructure:"LOG_PATH"`

	// RedisAddr enables the session cache when set (e.g. localhost:6379).
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int    `mapstructure:"REDIS_DB"`
	SessionCacheTTL string `mapstructure:"SESSION_CACHE_TTL"`

	// KafkaBrokers is a comma-separated list of broker addresses. When empty, mail is sent in-process.
	KafkaBrokers   string `mapstructure:"KAFKA_BROKERS"`
	MailKafkaTopic string `mapstructure:"MAIL_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the mail worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	MailFrom     string `mapstructure:"MAIL_FROM"`
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	// MailAPIURL switches delivery to an HTTP mail API instead of SMTP.
	MailAPIURL string `mapstructure:"MAIL_API_URL"`
	MailAPIKey string `mapstructure:"MAIL_API_KEY"`

	// InviteExpirySchedule is the cron spec (with seconds) for the worker's invitation sweep.
	InviteExpirySchedule string `mapstructure:"INVITE_EXPIRY_SCHEDULE"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeoutRaw  string `mapstructure:"REQUEST_TIMEOUT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "tenantdesk-auth")
	v.SetDefault("JWT_AUDIENCE", "tenantdesk-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("PASSWORD_RESET_TTL", "72h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("FRONTEND_RESET_URL", "http://localhost:3000/reset-password")
	v.SetDefault("FRONTEND_INVITE_URL", "http://localhost:3000/invitations")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("LOG_PATH", "./logs")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_CACHE_TTL", "5m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("MAIL_KAFKA_TOPIC", "tenantdesk-mail")
	v.SetDefault("KAFKA_GROUP_ID", "tenantdesk-mail-worker")
	v.SetDefault("MAIL_FROM", "no-reply@tenantdesk.local")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_API_URL", "")
	v.SetDefault("MAIL_API_KEY", "")
	v.SetDefault("INVITE_EXPIRY_SCHEDULE", "0 */5 * * * *")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	switch strings.ToLower(cfg.LogOutput) {
	case "", "stdout", "file":
	default:
		return nil, errors.New("config: LOG_OUTPUT must be stdout or file")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 168*time.Hour)
}

// ResetTTL returns the password reset link lifetime. Returns 72h if unset or invalid.
func (c *Config) ResetTTL() time.Duration {
	return parseDuration(c.PasswordResetTTL, 72*time.Hour)
}

// SessionCacheDuration returns how long resolved sessions stay in Redis. Returns 5m if unset or invalid.
func (c *Config) SessionCacheDuration() time.Duration {
	return parseDuration(c.SessionCacheTTL, 5*time.Minute)
}

// RequestTimeout returns the per-request deadline applied by the router. Returns 30s if unset or invalid.
func (c *Config) RequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeoutRaw, 30*time.Second)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means the mail queue runs in-process.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// CORSOrigins returns the allowed CORS origins; defaults to "*".
func (c *Config) CORSOrigins() []string {
	if c == nil {
		return []string{"*"}
	}
	out := splitList(c.CORSAllowedOrigins)
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// LoggerConf maps the LOG_* settings onto the logger defaults.
func LoggerConf(c *Config) logger.Conf {
	conf := logger.Defaults()
	if c == nil {
		return conf
	}
	if c.LogLevel != "" {
		conf.Level = c.LogLevel
	}
	if c.LogOutput != "" {
		conf.Output = c.LogOutput
	}
	if c.LogPath != "" {
		conf.Path = c.LogPath
	}
	return conf
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.Env, "production")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
