// Package admin guards rule management routes.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"idv/pkg/platform/httputil"
	"idv/pkg/platform/operatortoken"
	"idv/pkg/requestcontext"
)

// HeaderAdminToken carries the shared operator token.
const HeaderAdminToken = "X-Admin-Token"

type unauthorized struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RequireAdminToken admits requests carrying the shared token in
// X-Admin-Token, or an operator bearer token signed with it. A bearer token
// puts its actor on the context. An empty expected token rejects everything.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	tokens := operatortoken.NewService(expectedToken, operatortoken.DefaultIssuer)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if expectedToken == "" {
				reject(w, r, logger, "admin routes disabled")
				return
			}

			if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				claims, err := tokens.Validate(strings.TrimSpace(bearer))
				if err != nil {
					reject(w, r, logger, err.Error())
					return
				}
				next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, claims.Actor)))
				return
			}

			token := r.Header.Get(HeaderAdminToken)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				reject(w, r, logger, "admin token mismatch")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	ctx := r.Context()
	logger.WarnContext(ctx, "admin request rejected",
		"request_id", requestcontext.RequestID(ctx),
		"reason", reason,
	)
	httputil.WriteJSON(w, http.StatusUnauthorized, unauthorized{
		Error:            "unauthorized",
		ErrorDescription: "admin token required",
	})
}
