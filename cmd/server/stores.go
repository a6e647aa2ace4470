package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	audit "idv/pkg/platform/audit"
	auditmemory "idv/pkg/platform/audit/store/memory"
	auditpostgres "idv/pkg/platform/audit/store/postgres"
	txcontext "idv/pkg/platform/tx"

	"idv/internal/document"
	"idv/internal/platform/config"
	"idv/internal/platform/postgres"
	"idv/internal/risk"
	"idv/internal/rules"
	"idv/internal/vendor"
	"idv/internal/workflow"
)

// stores are the persistence backends. Without a database URL everything
// lives in process, which is enough for local runs and demos.
type stores struct {
	runner    txcontext.Runner
	workflows workflow.Store
	calls     vendor.Store
	signals   risk.Store
	rules     rules.Store
	results   rules.ResultStore
	sessions  document.SessionStore
	evidence  document.EvidenceStore
	audit     audit.Store
	pool      *pgxpool.Pool
}

func newStores(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*stores, error) {
	if cfg.URL == "" {
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
		return &stores{
			runner:    txcontext.InProcess{},
			workflows: workflow.NewInMemoryStore(),
			calls:     vendor.NewInMemoryStore(),
			signals:   risk.NewInMemoryStore(),
			rules:     rules.NewInMemoryStore(),
			results:   rules.NewInMemoryResultStore(),
			sessions:  document.NewInMemorySessionStore(),
			evidence:  document.NewInMemoryEvidenceStore(),
			audit:     auditmemory.NewInMemoryStore(),
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.InfoContext(ctx, "database migrations applied")
	}

	runner := postgres.NewTxRunner(pool, 0)
	return &stores{
		runner:    runner,
		workflows: workflow.NewPostgresStore(pool, runner),
		calls:     vendor.NewPostgresStore(pool),
		signals:   risk.NewPostgresStore(pool),
		rules:     rules.NewPostgresStore(pool, runner),
		results:   rules.NewPostgresResultStore(pool),
		sessions:  document.NewPostgresSessionStore(pool, runner),
		evidence:  document.NewPostgresEvidenceStore(pool),
		audit:     auditpostgres.New(pool),
		pool:      pool,
	}, nil
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
