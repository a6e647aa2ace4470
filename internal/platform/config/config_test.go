package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "local")
	t.Setenv("KYC_VENDOR_CHAIN", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, 5*time.Minute, cfg.Decisioning.PlaybookCacheTTL)
	assert.Equal(t, []string{"idology_expect_id", "experian_precise_id"}, cfg.Decisioning.KycVendorChain)
	assert.Empty(t, cfg.FeatureFlags)
	assert.Equal(t, 10*time.Second, cfg.Vendors.Timeout)
	assert.Equal(t, 600, cfg.RateLimit.PerTenant)
	assert.Empty(t, cfg.Server.AdminToken)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://db/idv")
	t.Setenv("DOCUMENT_POLL_DEADLINE", "45s")
	t.Setenv("FEATURE_FLAGS", "document.async_scoring, kyc.enhanced_aml_force")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("VENDOR_GATEWAY_URL", "https://vendors.internal")
	t.Setenv("API_RATE_WINDOW", "30s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Decisioning.DocumentPollDeadline)
	assert.Equal(t, []string{"document.async_scoring", "kyc.enhanced_aml_force"}, cfg.FeatureFlags)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "https://vendors.internal", cfg.Vendors.GatewayURL)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.False(t, cfg.IsLocal())
}

func TestFromEnv_Validation(t *testing.T) {
	t.Run("database url required outside local", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("DATABASE_URL", "")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("vendor gateway required outside local", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "staging")
		t.Setenv("DATABASE_URL", "postgres://db/idv")
		t.Setenv("VENDOR_GATEWAY_URL", "")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "VENDOR_GATEWAY_URL")
	})

	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "local")
		t.Setenv("PLAYBOOK_CACHE_TTL", "soon")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "PLAYBOOK_CACHE_TTL")
	})
}
