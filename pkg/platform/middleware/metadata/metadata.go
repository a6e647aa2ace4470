// Package metadata captures the client details recorded as an insight event
// when an applicant starts onboarding.
package metadata

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Client is what the edge tells us about the caller.
type Client struct {
	IP        string
	UserAgent string
	// Country is the ISO 3166-1 alpha-2 code resolved by the edge proxy.
	Country string
	City    string
}

type contextKeyClient struct{}

// Edge headers that carry geo lookups.
const (
	HeaderCountry = "X-Client-Country"
	HeaderCity    = "X-Client-City"
)

// ClientMetadata stores the caller's Client in the request context. Apply
// it early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := Client{
			IP:        ClientIPFromRequest(r),
			UserAgent: r.Header.Get("User-Agent"),
			Country:   strings.TrimSpace(r.Header.Get(HeaderCountry)),
			City:      strings.TrimSpace(r.Header.Get(HeaderCity)),
		}
		next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), c)))
	})
}

// FromContext returns the captured Client, zero when the middleware did not run.
func FromContext(ctx context.Context) Client {
	c, _ := ctx.Value(contextKeyClient{}).(Client)
	return c
}

// WithClient injects c. Useful for handler tests that skip the middleware.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, contextKeyClient{}, c)
}

// ClientIPFromRequest prefers the first X-Forwarded-For hop, then
// X-Real-IP, then the connection address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
