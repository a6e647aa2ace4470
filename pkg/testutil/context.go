package testutil

import (
	"context"
	"time"

	id "idv/pkg/domain"
	"idv/pkg/requestcontext"
)

// FixedTime is the clock most tests pin to.
var FixedTime = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

// Context returns a background context with a tenant and a pinned clock.
func Context(tenantID id.TenantID) context.Context {
	ctx := requestcontext.WithTenantID(context.Background(), tenantID)
	ctx = requestcontext.WithRequestID(ctx, "test-request")
	return requestcontext.WithTime(ctx, FixedTime)
}

// At returns ctx with the clock moved to t.
func At(ctx context.Context, t time.Time) context.Context {
	return requestcontext.WithTime(ctx, t)
}
