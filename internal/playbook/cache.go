package playbook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "idv/pkg/domain"
)

const cacheKeyPrefix = "playbook:config:"

// CacheMetrics counts cache lookups.
type CacheMetrics struct {
	Lookups *prometheus.CounterVec
}

func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{
		Lookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_playbook_cache_lookups_total",
			Help: "Playbook config cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
}

func (m *CacheMetrics) inc(result string) {
	if m != nil {
		m.Lookups.WithLabelValues(result).Inc()
	}
}

// CachedProvider fronts a Provider with Redis. Redis failures fall through
// to the underlying provider; the cache is never a source of truth.
type CachedProvider struct {
	next    Provider
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *CacheMetrics
}

// CacheOption configures a CachedProvider.
type CacheOption func(*CachedProvider)

func WithLogger(logger *slog.Logger) CacheOption {
	return func(p *CachedProvider) { p.logger = logger }
}

func WithMetrics(m *CacheMetrics) CacheOption {
	return func(p *CachedProvider) { p.metrics = m }
}

func NewCachedProvider(next Provider, client *redis.Client, ttl time.Duration, opts ...CacheOption) *CachedProvider {
	p := &CachedProvider{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func cacheKey(tenantID id.TenantID, playbookID id.PlaybookID) string {
	return cacheKeyPrefix + tenantID.String() + ":" + playbookID.String()
}

func (p *CachedProvider) Config(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) (Config, error) {
	key := cacheKey(tenantID, playbookID)

	raw, err := p.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cfg Config
		if jsonErr := json.Unmarshal(raw, &cfg); jsonErr == nil {
			p.metrics.inc("hit")
			return cfg, nil
		}
		p.logger.WarnContext(ctx, "discarding undecodable playbook cache entry", "key", key)
		p.metrics.inc("error")
	case errors.Is(err, redis.Nil):
		p.metrics.inc("miss")
	default:
		p.logger.WarnContext(ctx, "playbook cache read failed", "key", key, "error", err)
		p.metrics.inc("error")
	}

	cfg, err := p.next.Config(ctx, tenantID, playbookID)
	if err != nil {
		return Config{}, err
	}
	if encoded, err := json.Marshal(cfg); err == nil {
		if err := p.client.Set(ctx, key, encoded, p.ttl).Err(); err != nil {
			p.logger.WarnContext(ctx, "playbook cache write failed", "key", key, "error", err)
		}
	}
	return cfg, nil
}

// Invalidate drops the cached snapshot after a playbook edit.
func (p *CachedProvider) Invalidate(ctx context.Context, tenantID id.TenantID, playbookID id.PlaybookID) error {
	return p.client.Del(ctx, cacheKey(tenantID, playbookID)).Err()
}
