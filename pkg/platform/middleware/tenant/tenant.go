// Package tenant resolves the tenant a request acts for.
//
// Tenant authentication happens upstream; this middleware only trusts the
// header set by the gateway.
package tenant

import (
	"log/slog"
	"net/http"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	"idv/pkg/platform/httputil"
	"idv/pkg/requestcontext"
)

// HeaderTenantID carries the tenant id.
const HeaderTenantID = "X-Tenant-ID"

// RequireTenant rejects requests without a valid tenant header.
func RequireTenant(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tenantID, err := id.ParseTenantID(r.Header.Get(HeaderTenantID))
			if err != nil || tenantID.IsNil() {
				logger.WarnContext(ctx, "request without tenant",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, HeaderTenantID+" header is required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTenantID(ctx, tenantID)))
		})
	}
}
