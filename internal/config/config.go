// Package config loads the gateway's environment-variable configuration,
// following the teacher's env(k, def) idiom (cmd/server/main.go) with
// fail-fast validation for the settings spec.md §6 marks required.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// KmsProvider selects which secrets backend Load wires up.
type KmsProvider string

const (
	KmsGoogle    KmsProvider = "google"
	KmsInfisical KmsProvider = "infisical"
)

// Config is every tunable the gateway and watchdog binaries need, covering
// spec.md §6's external-interface env vars plus the ambient stack's own
// knobs (logging, cache sizing, buffer sizes).
type Config struct {
	Env string // "dev" enables pretty console logging, same convention as the teacher

	HTTPAddr string

	// Upstream service URLs (spec.md §6: connections/emit/oauth compute are
	// out-of-scope services this gateway calls into).
	ConnectionsURL string
	EmitURL        string
	OAuthURL       string

	// MongoDB
	MongoURL string
	MongoDB  string

	// Redis
	RedisURL string

	// KMS / secrets
	KmsProvider          KmsProvider
	GoogleKmsKeyRing     string
	GoogleKmsKeyName     string
	GoogleKmsLocation    string
	GoogleKmsProjectID   string
	InfisicalSiteURL     string
	InfisicalClientID    string
	InfisicalClientSecret string
	InfisicalProjectID   string
	InfisicalEnvironment string

	EventAccessPassword string

	// Header names, overridable so deployments can rename them without a
	// code change — mirrors spec.md §6's "configurable header name" notes.
	AuthHeader                string
	PassthroughActionIdHeader string
	ShowAllEnvironmentsHeader string
	ConnectionKeyHeader       string

	// Cache sizing (spec.md §4.1)
	EventAccessCacheSize int
	EventAccessCacheTTL  time.Duration
	ConnectionCacheSize  int
	ConnectionCacheTTL   time.Duration
	DefinitionCacheSize  int
	DefinitionCacheTTL   time.Duration
	CMDCacheSize         int
	CMDCacheTTL          time.Duration

	// Event pipeline (spec.md §4.6)
	EventSaveBufferSize  int
	EventSaveTimeout     time.Duration
	EventFlushWorkers    int

	// Metric pipeline (spec.md §4.7)
	MetricSaveChannelSize  int
	MetricSystemID         string
	MetricTrackBufferSize  int
	MetricTrackIdleTimeout time.Duration

	// Rate limiter (spec.md §4.3)
	RateLimiterRefreshInterval time.Duration

	// Outbound HTTP client
	HTTPClientTimeout time.Duration

	// Watchdog (spec.md §4.9)
	MaxTasksPerBatch int

	// Analytics tracker (spec.md design notes / original_source track.rs)
	PosthogWriteKey string
	PosthogEndpoint string

	EngineeringAccountID string
	K8sMode              bool

	CorsAllowedOrigins []string
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envSeconds(k string, defSecs int) time.Duration {
	return time.Duration(envInt(k, defSecs)) * time.Second
}

// envList reads a comma-separated env var into a slice, falling back to def
// when unset.
func envList(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Load reads the process environment into a Config, optionally first
// loading a .env file (ignored if absent, same as the teacher's services).
// It fails fast on missing required settings rather than starting with a
// partially-usable configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		Env:      env("ENV", ""),
		HTTPAddr: env("HTTP_ADDR", ":8080"),

		ConnectionsURL: env("CONNECTIONS_URL", ""),
		EmitURL:        env("EMIT_URL", ""),
		OAuthURL:       env("OAUTH_URL", ""),

		MongoURL: env("DATABASE_URL", ""),
		MongoDB:  env("DATABASE_NAME", "pica"),

		RedisURL: env("REDIS_URL", ""),

		KmsProvider:           KmsProvider(env("KMS_PROVIDER", string(KmsInfisical))),
		GoogleKmsKeyRing:      env("GOOGLE_KMS_KEY_RING", ""),
		GoogleKmsKeyName:      env("GOOGLE_KMS_KEY_NAME", ""),
		GoogleKmsLocation:     env("GOOGLE_KMS_LOCATION", "global"),
		GoogleKmsProjectID:    env("GOOGLE_KMS_PROJECT_ID", ""),
		InfisicalSiteURL:      env("INFISICAL_SITE_URL", "https://app.infisical.com"),
		InfisicalClientID:     env("INFISICAL_CLIENT_ID", ""),
		InfisicalClientSecret: env("INFISICAL_CLIENT_SECRET", ""),
		InfisicalProjectID:    env("INFISICAL_PROJECT_ID", ""),
		InfisicalEnvironment:  env("INFISICAL_ENVIRONMENT", "prod"),

		EventAccessPassword: env("EVENT_ACCESS_PASSWORD", ""),

		AuthHeader:                env("AUTH_HEADER", "x-pica-secret"),
		PassthroughActionIdHeader: env("PASSTHROUGH_ACTION_ID_HEADER", "x-pica-action-id"),
		ShowAllEnvironmentsHeader: env("SHOW_ALL_ENVIRONMENTS_HEADER", "x-pica-show-all-environments"),
		ConnectionKeyHeader:       env("CONNECTION_KEY_HEADER", "x-pica-connection-key"),

		EventAccessCacheSize: envInt("EVENT_ACCESS_CACHE_SIZE", 10_000),
		EventAccessCacheTTL:  envSeconds("EVENT_ACCESS_CACHE_TTL_SECS", 300),
		ConnectionCacheSize:  envInt("CONNECTION_CACHE_SIZE", 10_000),
		ConnectionCacheTTL:   envSeconds("CONNECTION_CACHE_TTL_SECS", 300),
		DefinitionCacheSize:  envInt("DEFINITION_CACHE_SIZE", 2_000),
		DefinitionCacheTTL:   envSeconds("DEFINITION_CACHE_TTL_SECS", 600),
		CMDCacheSize:         envInt("CMD_CACHE_SIZE", 5_000),
		CMDCacheTTL:          envSeconds("CMD_CACHE_TTL_SECS", 600),

		EventSaveBufferSize: envInt("EVENT_SAVE_BUFFER_SIZE", 1_000),
		EventSaveTimeout:    envSeconds("EVENT_SAVE_TIMEOUT_SECS", 5),
		EventFlushWorkers:   envInt("EVENT_FLUSH_WORKERS", 4),

		MetricSaveChannelSize:  envInt("METRIC_SAVE_CHANNEL_SIZE", 1_000),
		MetricSystemID:         env("METRIC_SYSTEM_ID", ""),
		MetricTrackBufferSize:  envInt("METRIC_TRACK_BUFFER_SIZE", 20),
		MetricTrackIdleTimeout: envSeconds("METRIC_TRACK_IDLE_TIMEOUT_SECS", 5),

		RateLimiterRefreshInterval: envSeconds("RATE_LIMITER_REFRESH_INTERVAL", 1),

		HTTPClientTimeout: envSeconds("HTTP_CLIENT_TIMEOUT_SECS", 10),

		MaxTasksPerBatch: envInt("MAX_AMOUNT_OF_TASKS_TO_PROCESS", 50),

		PosthogWriteKey: env("POSTHOG_WRITE_KEY", ""),
		PosthogEndpoint: env("POSTHOG_ENDPOINT", "https://app.posthog.com/capture/"),

		EngineeringAccountID: env("ENGINEERING_ACCOUNT_ID", ""),
		K8sMode:              envBool("K8S_MODE", false),

		CorsAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	type required struct {
		name, val string
	}
	reqs := []required{
		{"DATABASE_URL", c.MongoURL},
		{"REDIS_URL", c.RedisURL},
		{"EVENT_ACCESS_PASSWORD", c.EventAccessPassword},
	}
	for _, r := range reqs {
		if r.val == "" {
			return fmt.Errorf("config: %s is required", r.name)
		}
	}
	switch c.KmsProvider {
	case KmsGoogle:
		if c.GoogleKmsKeyRing == "" || c.GoogleKmsProjectID == "" {
			return fmt.Errorf("config: GOOGLE_KMS_KEY_RING and GOOGLE_KMS_PROJECT_ID are required when KMS_PROVIDER=google")
		}
	case KmsInfisical:
		if c.InfisicalClientID == "" || c.InfisicalClientSecret == "" {
			return fmt.Errorf("config: INFISICAL_CLIENT_ID and INFISICAL_CLIENT_SECRET are required when KMS_PROVIDER=infisical")
		}
	default:
		return fmt.Errorf("config: unknown KMS_PROVIDER %q", c.KmsProvider)
	}
	return nil
}

// IsDev reports whether ENV is explicitly "dev", same convention the
// teacher uses to gate pretty console logging and other dev-only behavior.
func (c *Config) IsDev() bool { return c.Env == "dev" }
