package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"idv/pkg/platform/httputil"
	"idv/pkg/requestcontext"
)

// Limiter applies one limit per tenant.
type Limiter struct {
	store   Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// NewLimiter allows limit requests per tenant per window. A zero limit
// disables limiting.
func NewLimiter(store Store, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{store: store, limit: limit, window: window, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type limitedResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Middleware must run after the tenant is resolved. A failing store lets
// the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := requestcontext.TenantID(r.Context())
		if l.limit <= 0 || tenantID.IsNil() {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		now := requestcontext.Now(ctx)
		res, err := l.store.Allow(ctx, "tenant:"+tenantID.String(), l.limit, l.window, now)
		if err != nil {
			l.metrics.incStoreError()
			l.logger.WarnContext(ctx, "rate limit store failed, allowing request",
				"request_id", requestcontext.RequestID(ctx),
				"tenant_id", tenantID.String(),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		if !res.Allowed {
			l.metrics.incRejected()
			retry := max(int(res.ResetAt.Sub(now).Round(time.Second).Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			httputil.WriteJSON(w, http.StatusTooManyRequests, limitedResponse{
				Error:            "rate_limited",
				ErrorDescription: "too many requests for this tenant",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
