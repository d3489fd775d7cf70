// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the dashboard API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the ops gRPC server (health protocol). Empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level: debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseURL is the Postgres DSN. Empty runs the server on in-memory repositories.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// TenantsFile is a YAML seed file loaded into the in-memory tenant repository when DatabaseURL is empty.
	TenantsFile string `mapstructure:"TENANTS_FILE"`

	// BaseDomain is the apex domain tenant subdomains hang off (e.g. dash.example.com).
	BaseDomain string `mapstructure:"BASE_DOMAIN"`
	// RoutingCacheTTL is how long a subdomain → tenant lookup is memoized by the router.
	RoutingCacheTTL string `mapstructure:"ROUTING_CACHE_TTL"`

	// SessionPublicKey is the PEM public key (or path) used to verify session tokens.
	SessionPublicKey string `mapstructure:"SESSION_PUBLIC_KEY"`
	// SessionPrivateKey is the PEM private key (or path); only cmd/seed needs it to mint dev tokens.
	SessionPrivateKey string `mapstructure:"SESSION_PRIVATE_KEY"`
	// SessionIssuer is the expected iss claim.
	SessionIssuer string `mapstructure:"SESSION_ISSUER"`
	// SessionAudience is the expected aud claim.
	SessionAudience string `mapstructure:"SESSION_AUDIENCE"`
	// SessionTTL is the lifetime of minted session tokens (e.g. "12h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// SessionCookie is the cookie consulted when no Bearer token is present.
	SessionCookie string `mapstructure:"SESSION_COOKIE"`

	// CredentialsKey is the base64 32-byte key for provider credential encryption at rest.
	CredentialsKey string `mapstructure:"CREDENTIALS_KEY"`

	// CacheDefaultTTL is the process-wide default TTL of the metrics cache (e.g. "6h").
	CacheDefaultTTL string `mapstructure:"CACHE_DEFAULT_TTL"`
	// CacheCleanupInterval is the period of the background expired-entry sweep.
	CacheCleanupInterval string `mapstructure:"CACHE_CLEANUP_INTERVAL"`
	// CacheRevalidateTimeout bounds a detached stale-while-revalidate refresh.
	CacheRevalidateTimeout string `mapstructure:"CACHE_REVALIDATE_TIMEOUT"`

	// ProviderTimeout bounds a single live provider fetch including pagination.
	ProviderTimeout string `mapstructure:"PROVIDER_TIMEOUT"`
	// ProviderRateLimit is the outbound requests per second allowed per provider client.
	ProviderRateLimit float64 `mapstructure:"PROVIDER_RATE_LIMIT"`
	// MetricsWindowDays is the trailing window aggregated by every provider fetch.
	MetricsWindowDays int `mapstructure:"METRICS_WINDOW_DAYS"`
	// StripeBaseURL overrides the payments API base URL.
	StripeBaseURL string `mapstructure:"STRIPE_BASE_URL"`
	// MetaGraphURL overrides the Meta Graph API base URL.
	MetaGraphURL string `mapstructure:"META_GRAPH_URL"`
	// MetaAPIVersion is the Graph API version path segment.
	MetaAPIVersion string `mapstructure:"META_API_VERSION"`
	// GoogleAdsBaseURL overrides the Google Ads REST base URL.
	GoogleAdsBaseURL string `mapstructure:"GOOGLE_ADS_BASE_URL"`
	// GoogleAdsAPIVersion is the Google Ads API version path segment.
	GoogleAdsAPIVersion string `mapstructure:"GOOGLE_ADS_API_VERSION"`
	// GoogleOAuthTokenURL overrides the OAuth2 token endpoint used for refresh-token exchange.
	GoogleOAuthTokenURL string `mapstructure:"GOOGLE_OAUTH_TOKEN_URL"`

	// SnapshotHistorySize is the per-tenant snapshot ring capacity (28 ≈ 7 days at 6h cadence).
	SnapshotHistorySize int `mapstructure:"SNAPSHOT_HISTORY_SIZE"`
	// AnomalyBaselineOffset is how many snapshots back the baseline sits (4 ≈ 24h at 6h cadence).
	AnomalyBaselineOffset int `mapstructure:"ANOMALY_BASELINE_OFFSET"`
	// CaptureSchedule is the cron spec (UTC) of the snapshot capture cycle. Empty disables it.
	CaptureSchedule string `mapstructure:"CAPTURE_SCHEDULE"`
	// DashboardBaseURL is the default base URL used to build alert links for new tenants.
	DashboardBaseURL string `mapstructure:"DASHBOARD_BASE_URL"`

	// KafkaBrokers is a comma-separated list of brokers; when set, anomalies are emitted to Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AnomalyKafkaTopic is the topic anomaly events are written to.
	AnomalyKafkaTopic string `mapstructure:"ANOMALY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID of cmd/worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where cmd/worker pushes anomaly events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty uses no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("TENANTS_FILE", "")
	v.SetDefault("BASE_DOMAIN", "localhost")
	v.SetDefault("ROUTING_CACHE_TTL", "5m")
	v.SetDefault("SESSION_PUBLIC_KEY", "")
	v.SetDefault("SESSION_PRIVATE_KEY", "")
	v.SetDefault("SESSION_ISSUER", "dashboard-auth")
	v.SetDefault("SESSION_AUDIENCE", "dashboard-api")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("SESSION_COOKIE", "session_token")
	v.SetDefault("CREDENTIALS_KEY", "")
	v.SetDefault("CACHE_DEFAULT_TTL", "6h")
	v.SetDefault("CACHE_CLEANUP_INTERVAL", "10m")
	v.SetDefault("CACHE_REVALIDATE_TIMEOUT", "30s")
	v.SetDefault("PROVIDER_TIMEOUT", "10s")
	v.SetDefault("PROVIDER_RATE_LIMIT", 20)
	v.SetDefault("METRICS_WINDOW_DAYS", 30)
	v.SetDefault("STRIPE_BASE_URL", "https://api.stripe.com")
	v.SetDefault("META_GRAPH_URL", "https://graph.facebook.com")
	v.SetDefault("META_API_VERSION", "v19.0")
	v.SetDefault("GOOGLE_ADS_BASE_URL", "https://googleads.googleapis.com")
	v.SetDefault("GOOGLE_ADS_API_VERSION", "v17")
	v.SetDefault("GOOGLE_OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token")
	v.SetDefault("SNAPSHOT_HISTORY_SIZE", 28)
	v.SetDefault("ANOMALY_BASELINE_OFFSET", 4)
	v.SetDefault("CAPTURE_SCHEDULE", "0 */6 * * *")
	v.SetDefault("DASHBOARD_BASE_URL", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ANOMALY_KAFKA_TOPIC", "dashboard-anomalies")
	v.SetDefault("KAFKA_GROUP_ID", "dashboard-anomaly-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	for name, raw := range map[string]string{
		"ROUTING_CACHE_TTL":        cfg.RoutingCacheTTL,
		"SESSION_TTL":              cfg.SessionTTL,
		"CACHE_DEFAULT_TTL":        cfg.CacheDefaultTTL,
		"CACHE_CLEANUP_INTERVAL":   cfg.CacheCleanupInterval,
		"CACHE_REVALIDATE_TIMEOUT": cfg.CacheRevalidateTimeout,
		"PROVIDER_TIMEOUT":         cfg.ProviderTimeout,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return nil, errors.New("config: " + name + " must be a positive duration")
		}
	}
	if cfg.SnapshotHistorySize < 2 {
		return nil, errors.New("config: SNAPSHOT_HISTORY_SIZE must be at least 2")
	}
	if cfg.AnomalyBaselineOffset < 1 {
		return nil, errors.New("config: ANOMALY_BASELINE_OFFSET must be at least 1")
	}
	if cfg.MetricsWindowDays <= 0 {
		cfg.MetricsWindowDays = 30
	}
	if cfg.ProviderRateLimit <= 0 {
		cfg.ProviderRateLimit = 20
	}
	if cfg.CredentialsKey != "" {
		if _, err := cfg.CredentialsKeyBytes(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func duration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// RoutingTTL returns ROUTING_CACHE_TTL. Returns 5m if unset or invalid.
func (c *Config) RoutingTTL() time.Duration { return duration(c.RoutingCacheTTL, 5*time.Minute) }

// SessionLifetime returns SESSION_TTL. Returns 12h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration { return duration(c.SessionTTL, 12*time.Hour) }

// CacheTTL returns CACHE_DEFAULT_TTL. Returns 6h if unset or invalid.
func (c *Config) CacheTTL() time.Duration { return duration(c.CacheDefaultTTL, 6*time.Hour) }

// CleanupInterval returns CACHE_CLEANUP_INTERVAL. Returns 10m if unset or invalid.
func (c *Config) CleanupInterval() time.Duration {
	return duration(c.CacheCleanupInterval, 10*time.Minute)
}

// RevalidateTimeout returns CACHE_REVALIDATE_TIMEOUT. Returns 30s if unset or invalid.
func (c *Config) RevalidateTimeout() time.Duration {
	return duration(c.CacheRevalidateTimeout, 30*time.Second)
}

// FetchTimeout returns PROVIDER_TIMEOUT. Returns 10s if unset or invalid.
func (c *Config) FetchTimeout() time.Duration { return duration(c.ProviderTimeout, 10*time.Second) }

// MetricsWindow returns METRICS_WINDOW_DAYS as a duration.
func (c *Config) MetricsWindow() time.Duration {
	days := c.MetricsWindowDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// CredentialsKeyBytes decodes CREDENTIALS_KEY (standard or URL base64) into a 32-byte key.
func (c *Config) CredentialsKeyBytes() ([]byte, error) {
	raw := strings.TrimSpace(c.CredentialsKey)
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		key, err = base64.RawURLEncoding.DecodeString(raw)
	}
	if err != nil || len(key) != 32 {
		return nil, errors.New("config: CREDENTIALS_KEY must be base64 of exactly 32 bytes")
	}
	return key, nil
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if anomaly emission to Kafka is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
