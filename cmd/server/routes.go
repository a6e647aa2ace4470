package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"idv/pkg/platform/middleware/admin"
	"idv/pkg/platform/middleware/metadata"
	"idv/pkg/platform/middleware/request"
	"idv/pkg/platform/middleware/requesttime"
	"idv/pkg/platform/middleware/tenant"

	onboardinghandler "idv/internal/onboarding/handler"
	"idv/internal/ratelimit"
	ruleshandler "idv/internal/rules/handler"
)

type routerDeps struct {
	engine     onboardinghandler.Engine
	documents  onboardinghandler.Documents
	playbooks  onboardinghandler.Playbooks
	previewer  onboardinghandler.Previewer
	insights   onboardinghandler.InsightRecorder
	vault      onboardinghandler.VaultWriter
	rules      ruleshandler.Service
	limiter    *ratelimit.Limiter
	adminToken string
	ops        http.Handler
	logger     *slog.Logger
}

// newRouter mounts the ops endpoints under /ops and the tenant API at the
// root. Rule management is registered only when an admin token is set.
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount("/ops", d.ops)

	r.Group(func(r chi.Router) {
		r.Use(request.RequestID)
		r.Use(requesttime.Middleware)
		r.Use(metadata.ClientMetadata)
		r.Use(tenant.RequireTenant(d.logger))
		r.Use(d.limiter.Middleware)

		onboardinghandler.New(d.engine, d.documents, d.playbooks, d.logger,
			onboardinghandler.WithPreviewer(d.previewer),
			onboardinghandler.WithInsights(d.insights),
			onboardinghandler.WithVault(d.vault),
		).Register(r)

		if d.adminToken == "" {
			d.logger.Warn("ADMIN_TOKEN not set, rule management routes are disabled")
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(d.adminToken, d.logger))
			ruleshandler.New(d.rules, d.logger).Register(r)
		})
	})
	return r
}
