package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"idv/pkg/platform/audit/publishers/compliance"

	"idv/internal/decision"
	decisionmetrics "idv/internal/decision/metrics"
	"idv/internal/document"
	"idv/internal/insight"
	"idv/internal/onboarding"
	"idv/internal/platform/config"
	"idv/internal/platform/flags"
	"idv/internal/platform/httpserver"
	"idv/internal/platform/kafka"
	"idv/internal/platform/logger"
	"idv/internal/platform/metrics"
	"idv/internal/platform/redis"
	"idv/internal/playbook"
	"idv/internal/ratelimit"
	"idv/internal/rules"
	"idv/internal/vault"
	"idv/internal/vendor"
	"idv/internal/webhook"
	"idv/internal/workflow"
)

const (
	shutdownTimeout   = 15 * time.Second
	webhookPartitions = 6
)

// main wires the decisioning core to its stores and the HTTP API. Business
// logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	st, err := newStores(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer st.Close()

	checks := map[string]httpserver.Check{}
	if st.pool != nil {
		checks["postgres"] = st.pool.Ping
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = rdb.Health
	}

	kc, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	var webhooks webhook.Enqueuer = webhook.Discard{}
	if kc != nil {
		defer kc.Close()
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.WebhookTopic, webhookPartitions); err != nil {
			return fmt.Errorf("ensure webhook topic: %w", err)
		}
		checks["kafka"] = func(ctx context.Context) error { return kafka.Health(ctx, kc) }
		enq := webhook.NewKafkaEnqueuer(
			[]webhook.Cluster{{Name: "primary", Producer: kc, Topic: cfg.Kafka.WebhookTopic}},
			webhook.WithLogger(log),
			webhook.WithMetrics(webhook.NewMetrics()),
		)
		defer enq.Close()
		webhooks = enq
	} else {
		log.WarnContext(ctx, "KAFKA_BROKERS not set, webhooks are discarded")
	}

	playbooks, err := newPlaybookProvider(ctx, cfg, rdb, log)
	if err != nil {
		return err
	}

	kycChain := make([]vendor.API, 0, len(cfg.Decisioning.KycVendorChain))
	for _, name := range cfg.Decisioning.KycVendorChain {
		api, err := vendor.ParseAPI(name)
		if err != nil {
			return fmt.Errorf("KYC_VENDOR_CHAIN: %w", err)
		}
		kycChain = append(kycChain, api)
	}

	var (
		vendorClient   vendor.Client         = vendor.FixtureClient{}
		documentVendor document.VendorClient = document.SandboxClient{}
	)
	if cfg.Vendors.GatewayURL != "" {
		gw, err := vendor.NewGatewayClient(cfg.Vendors.GatewayURL, cfg.Vendors.APIKey, cfg.Vendors.Timeout)
		if err != nil {
			return fmt.Errorf("vendor gateway: %w", err)
		}
		vendorClient = gw
		documentVendor = document.NewGatewayClient(gw)
	} else {
		log.WarnContext(ctx, "VENDOR_GATEWAY_URL not set, live runs use fixture vendors")
	}

	featureFlags := flags.NewStatic(cfg.FeatureFlags...)
	vlt := vault.NewInMemory()
	insights := insight.NewInMemoryStore()
	publisher := compliance.New(st.audit,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)

	vendorMetrics := vendor.NewMetrics()
	liveCaller := vendor.NewCaller(vendorClient, st.calls, st.signals,
		vendor.WithLogger(log), vendor.WithMetrics(vendorMetrics))
	sandboxCaller := vendor.NewCaller(vendor.FixtureClient{}, st.calls, st.signals,
		vendor.WithLogger(log), vendor.WithMetrics(vendorMetrics))

	ruleService := rules.NewService(st.rules, st.runner, publisher, rules.WithLogger(log))

	decisionOpts := []decision.Option{
		decision.WithLogger(log),
		decision.WithMetrics(decisionmetrics.New()),
		decision.WithFlags(featureFlags),
		decision.WithVault(vlt),
		decision.WithInsights(insights),
		decision.WithLists(decision.NewStaticLists()),
	}
	if path := cfg.Decisioning.BaselineRulesPath; path != "" {
		f, err := rules.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load baseline rules: %w", err)
		}
		decisionOpts = append(decisionOpts, decision.WithBaseline(rules.NewBaselineSet(f)))
	}
	decider, err := decision.New(playbooks, ruleService, st.signals, st.results, publisher, decisionOpts...)
	if err != nil {
		return err
	}

	handlers, err := onboarding.Handlers(onboarding.Deps{
		Playbooks: playbooks,
		Vault:     vlt,
		Decider:   decider,
		Vendors:   liveCaller,
		Sandbox:   sandboxCaller,
		Calls:     st.calls,
		KycChain:  kycChain,
		Flags:     featureFlags,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	engine := workflow.NewEngine(st.workflows, handlers,
		workflow.WithLogger(log),
		workflow.WithMetrics(workflow.NewMetrics()),
		workflow.WithWebhooks(webhooks),
		workflow.WithEventLog(st.audit),
	)

	documents := document.NewService(document.Deps{
		Sessions:     st.sessions,
		Evidence:     st.evidence,
		Vault:        vlt,
		Vendor:       documentVendor,
		Calls:        st.calls,
		Signals:      st.signals,
		Audit:        publisher,
		Flags:        featureFlags,
		Logger:       log,
		Metrics:      document.NewMetrics(),
		PollDeadline: cfg.Decisioning.DocumentPollDeadline,
	}, document.WithSandboxVendor(document.SandboxClient{}))

	var limitStore ratelimit.Store = ratelimit.NewInMemoryStore()
	if rdb != nil {
		limitStore = ratelimit.NewRedisStore(rdb)
	}
	limiter := ratelimit.NewLimiter(limitStore, cfg.RateLimit.PerTenant, cfg.RateLimit.Window,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimit.NewMetrics()),
	)

	router := newRouter(routerDeps{
		engine:     engine,
		documents:  documents,
		playbooks:  playbooks,
		previewer:  decider,
		insights:   insights,
		vault:      vlt,
		rules:      ruleService,
		limiter:    limiter,
		adminToken: cfg.Server.AdminToken,
		ops:        httpserver.NewOpsRouter(metrics.New(), checks),
		logger:     log,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "starting idv", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// newPlaybookProvider serves playbooks from PLAYBOOKS_PATH, cached in Redis
// when it is configured.
func newPlaybookProvider(ctx context.Context, cfg config.Config, rdb *redis.Client, log *slog.Logger) (playbook.Provider, error) {
	var configs []playbook.Config
	if path := cfg.Decisioning.PlaybooksPath; path != "" {
		var err error
		if configs, err = playbook.LoadFile(path); err != nil {
			return nil, fmt.Errorf("load playbooks: %w", err)
		}
		log.InfoContext(ctx, "playbooks loaded", "count", len(configs))
	} else {
		log.WarnContext(ctx, "PLAYBOOKS_PATH not set, no playbooks are served")
	}

	var provider playbook.Provider = playbook.NewStaticProvider(configs...)
	if rdb != nil {
		provider = playbook.NewCachedProvider(provider, rdb.Client, cfg.Decisioning.PlaybookCacheTTL,
			playbook.WithLogger(log),
			playbook.WithMetrics(playbook.NewCacheMetrics()),
		)
	}
	return provider, nil
}
