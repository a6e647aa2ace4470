package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration, built once in main and passed down.
type Config struct {
	Environment string
	Server      Server
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Decisioning DecisioningConfig
	Vendors     VendorConfig
	RateLimit   RateLimitConfig
	// FeatureFlags lists flags switched on for every tenant.
	FeatureFlags []string
}

// Server captures HTTP server configuration.
type Server struct {
	Addr string
	// AdminToken guards the rule management routes. Empty disables them.
	AdminToken string
}

// DatabaseConfig configures the pgx pool.
type DatabaseConfig struct {
	URL         string
	MaxConns    int32
	AutoMigrate bool
}

// RedisConfig configures the Redis client used for the playbook cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures webhook publication.
type KafkaConfig struct {
	Brokers      []string
	WebhookTopic string
}

// DecisioningConfig tunes the decisioning core.
type DecisioningConfig struct {
	PlaybookCacheTTL     time.Duration
	DocumentPollDeadline time.Duration
	// KycVendorChain is the ordered list of KYC vendor APIs tried per run.
	KycVendorChain []string
	// BaselineRulesPath overrides the embedded baseline rule file when set.
	BaselineRulesPath string
	// PlaybooksPath is a YAML file of playbooks served without a database.
	PlaybooksPath string
}

// VendorConfig points live runs at the vendor gateway. Without a gateway
// URL local runs use the fixture vendors.
type VendorConfig struct {
	GatewayURL string
	APIKey     string
	Timeout    time.Duration
}

// RateLimitConfig bounds API requests per tenant.
type RateLimitConfig struct {
	PerTenant int
	Window    time.Duration
}

// IsLocal reports whether the process runs outside deployed environments.
func (c Config) IsLocal() bool {
	return c.Environment == "local" || c.Environment == "development"
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Environment: getEnv("ENVIRONMENT", "local"),
		Server: Server{
			Addr:       getEnv("ADDR", ":8080"),
			AdminToken: os.Getenv("ADMIN_TOKEN"),
		},
		Database: DatabaseConfig{
			URL:         os.Getenv("DATABASE_URL"),
			AutoMigrate: os.Getenv("DB_AUTO_MIGRATE") == "true",
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(os.Getenv("KAFKA_BROKERS")),
			WebhookTopic: getEnv("WEBHOOK_TOPIC", "onboarding.webhooks"),
		},
		Decisioning: DecisioningConfig{
			KycVendorChain:    splitList(getEnv("KYC_VENDOR_CHAIN", "idology_expect_id,experian_precise_id")),
			BaselineRulesPath: os.Getenv("BASELINE_RULES_PATH"),
			PlaybooksPath:     os.Getenv("PLAYBOOKS_PATH"),
		},
		Vendors: VendorConfig{
			GatewayURL: os.Getenv("VENDOR_GATEWAY_URL"),
			APIKey:     os.Getenv("VENDOR_API_KEY"),
		},
		FeatureFlags: splitList(os.Getenv("FEATURE_FLAGS")),
	}

	maxConns, err := getInt("DB_MAX_CONNS", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.Database.MaxConns = int32(maxConns)

	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", 10); err != nil {
		return Config{}, err
	}
	if cfg.Redis.MinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Config{}, err
	}
	if cfg.Redis.DialTimeout, err = getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Redis.ReadTimeout, err = getDuration("REDIS_READ_TIMEOUT", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Redis.WriteTimeout, err = getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Decisioning.PlaybookCacheTTL, err = getDuration("PLAYBOOK_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Decisioning.DocumentPollDeadline, err = getDuration("DOCUMENT_POLL_DEADLINE", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Vendors.Timeout, err = getDuration("VENDOR_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.PerTenant, err = getInt("API_RATE_LIMIT", 600); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.Window, err = getDuration("API_RATE_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Database.URL == "" && !c.IsLocal() {
		return fmt.Errorf("DATABASE_URL is required in %s", c.Environment)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.Vendors.GatewayURL == "" && !c.IsLocal() {
		return fmt.Errorf("VENDOR_GATEWAY_URL is required in %s", c.Environment)
	}
	if c.RateLimit.PerTenant < 0 {
		return fmt.Errorf("API_RATE_LIMIT must not be negative")
	}
	if len(c.Decisioning.KycVendorChain) == 0 {
		return fmt.Errorf("KYC_VENDOR_CHAIN must list at least one vendor api")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
