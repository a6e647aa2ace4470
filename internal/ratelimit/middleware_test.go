package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "idv/pkg/domain"
	"idv/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration, time.Time) (Result, error) {
	return Result{}, errors.New("redis down")
}

func serve(h http.Handler, tenantID id.TenantID) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/v1/workflows", nil)
	ctx := requestcontext.WithTime(requestcontext.WithTenantID(r.Context(), tenantID), t0)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r.WithContext(ctx))
	return w
}

func TestLimiterMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	t.Run("rejects the request past the limit", func(t *testing.T) {
		h := NewLimiter(NewInMemoryStore(), 2, time.Minute, WithLogger(logger)).Middleware(ok)
		tenant := id.NewTenantID()

		assert.Equal(t, http.StatusNoContent, serve(h, tenant).Code)
		second := serve(h, tenant)
		assert.Equal(t, http.StatusNoContent, second.Code)
		assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

		third := serve(h, tenant)
		assert.Equal(t, http.StatusTooManyRequests, third.Code)
		assert.Equal(t, "60", third.Header().Get("Retry-After"))
		assert.Contains(t, third.Body.String(), "rate_limited")

		assert.Equal(t, http.StatusNoContent, serve(h, id.NewTenantID()).Code, "other tenants keep their budget")
	})

	t.Run("store failure fails open", func(t *testing.T) {
		h := NewLimiter(failingStore{}, 1, time.Minute, WithLogger(logger)).Middleware(ok)
		assert.Equal(t, http.StatusNoContent, serve(h, id.NewTenantID()).Code)
	})

	t.Run("zero limit disables limiting", func(t *testing.T) {
		h := NewLimiter(failingStore{}, 0, time.Minute).Middleware(ok)
		assert.Equal(t, http.StatusNoContent, serve(h, id.NewTenantID()).Code)
	})
}
