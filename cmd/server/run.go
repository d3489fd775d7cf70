package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketing-dashboard/backend/internal/alertsettings"
	alerthandler "marketing-dashboard/backend/internal/alertsettings/handler"
	alertrepo "marketing-dashboard/backend/internal/alertsettings/repository"
	"marketing-dashboard/backend/internal/anomaly"
	anomalyhandler "marketing-dashboard/backend/internal/anomaly/handler"
	"marketing-dashboard/backend/internal/audit"
	audithandler "marketing-dashboard/backend/internal/audit/handler"
	auditrepo "marketing-dashboard/backend/internal/audit/repository"
	"marketing-dashboard/backend/internal/cache"
	"marketing-dashboard/backend/internal/capture"
	"marketing-dashboard/backend/internal/config"
	"marketing-dashboard/backend/internal/db"
	"marketing-dashboard/backend/internal/fetch"
	healthhandler "marketing-dashboard/backend/internal/health/handler"
	"marketing-dashboard/backend/internal/policy/engine"
	"marketing-dashboard/backend/internal/provider"
	"marketing-dashboard/backend/internal/provider/googleads"
	"marketing-dashboard/backend/internal/provider/metaads"
	"marketing-dashboard/backend/internal/provider/stripe"
	"marketing-dashboard/backend/internal/routing"
	"marketing-dashboard/backend/internal/security"
	"marketing-dashboard/backend/internal/security/gate"
	"marketing-dashboard/backend/internal/server"
	"marketing-dashboard/backend/internal/server/interceptors"
	"marketing-dashboard/backend/internal/session"
	"marketing-dashboard/backend/internal/snapshot"
	"marketing-dashboard/backend/internal/telemetry"
	"marketing-dashboard/backend/internal/telemetry/metrics"
	otelsetup "marketing-dashboard/backend/internal/telemetry/otel"
	"marketing-dashboard/backend/internal/telemetry/producer"
	"marketing-dashboard/backend/internal/tenant"
	tenantrepo "marketing-dashboard/backend/internal/tenant/repository"
)

const (
	serviceName     = "dashboard-api"
	shutdownTimeout = 15 * time.Second
	captureTimeout  = 10 * time.Minute
)

// stores are the repositories chosen by whether DATABASE_URL is set.
type stores struct {
	tenants tenantrepo.Repository
	audit   auditrepo.Repository
	alerts  alertrepo.Repository
	pinger  healthhandler.Pinger
	close   func() error
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	otelProviders, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	otelProviders.SetGlobal()
	m := metrics.New()

	key, err := cfg.CredentialsKeyBytes()
	if err != nil {
		return err
	}
	cipher, err := security.NewCipher(key)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, cipher, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	pub, err := security.ParsePublicKey(cfg.SessionPublicKey)
	if err != nil {
		return fmt.Errorf("SESSION_PUBLIC_KEY: %w", err)
	}
	tokens := security.NewSessionTokens(nil, pub, cfg.SessionIssuer, cfg.SessionAudience, cfg.SessionLifetime())
	sessions := session.NewTokenProvider(tokens, cfg.SessionCookie, logger)

	authz, err := engine.NewOPAEvaluator(ctx, logger)
	if err != nil {
		return err
	}

	var events producer.Producer = producer.Nop{}
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		events = producer.NewKafkaProducer(brokers, cfg.AnomalyKafkaTopic)
		logger.Info("anomaly events to kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.AnomalyKafkaTopic))
	}
	defer func() { _ = events.Close() }()
	emitter := telemetry.MultiEmitter{otelsetup.NewEventEmitter(otelProviders.LoggerProvider), events}

	auditLog := audit.NewLogger(st.audit, logger, m)
	securityGate := gate.New(sessions, tenant.NewResolver(st.tenants), auditLog,
		gate.WithEventEmitter(emitter),
		gate.WithViolationCounter(m),
		gate.WithLogger(logger),
	)

	routeMemo := cache.New[routing.Metadata]("routing", cache.WithRecorder(m), cache.WithLogger(logger))
	router := routing.NewRouter(cfg.BaseDomain, tenant.RoutingLookup(st.tenants), routeMemo, cfg.RoutingTTL(), logger)

	metricsCache := cache.New[*provider.Metrics]("metrics",
		cache.WithDefaultTTL(cfg.CacheTTL()),
		cache.WithRecorder(m),
		cache.WithLogger(logger),
		cache.WithRevalidateTimeout(cfg.RevalidateTimeout()),
	)
	metricsCache.StartJanitor(ctx, cfg.CleanupInterval())
	defer metricsCache.Close()
	routeMemo.StartJanitor(ctx, cfg.CleanupInterval())
	defer routeMemo.Close()

	orch := fetch.New(metricsCache, cipher, fetchers(cfg),
		fetch.WithTimeout(cfg.FetchTimeout()),
		fetch.WithCacheTTL(cfg.CacheTTL()),
		fetch.WithWindowDays(cfg.MetricsWindowDays),
		fetch.WithRecorder(m),
		fetch.WithLogger(logger),
	)

	history := snapshot.NewMemoryHistory(cfg.SnapshotHistorySize)
	alerts := alertsettings.NewService(st.alerts, dashboardURL(cfg.DashboardBaseURL), logger)
	captures := capture.NewService(orch, history, alerts,
		anomaly.NewDetector(history, cfg.AnomalyBaselineOffset, logger),
		anomaly.NewPublisher(emitter, m, logger),
		st.tenants, logger)

	if cfg.CaptureSchedule != "" {
		sched, err := capture.NewScheduler(cfg.CaptureSchedule, captures, captureTimeout, logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			sched.Stop(stopCtx)
		}()
		logger.Info("capture scheduled", zap.String("schedule", cfg.CaptureSchedule), zap.Time("next", sched.Next()))
	}

	checker := healthhandler.NewChecker(st.pinger, authz, logger)
	handler := server.NewRouter(server.Deps{
		Routing:         router,
		Scoped:          interceptors.NewTenantScoped(securityGate, auditLog, logger),
		Logger:          logger,
		Health:          checker,
		Metrics:         m.Handler(),
		RequestRecorder: m,
		Fetch:           fetch.NewHandler(orch, authz),
		Anomalies:       anomalyhandler.NewHandler(captures, history),
		AlertSettings:   alerthandler.NewHandler(alerts, authz),
		Audit:           audithandler.NewHandler(st.audit, authz),
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv := server.NewGRPCServer(checker)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		g.Go(func() error {
			logger.Info("gRPC ops server listening", zap.String("addr", cfg.GRPCAddr))
			return grpcSrv.Serve(lis)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
		return err
	})
	err = g.Wait()

	// Let in-flight async telemetry emits finish before the providers go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	otelCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := otelProviders.Shutdown(otelCtx); serr != nil {
		logger.Warn("otel shutdown", zap.Error(serr))
	}
	logger.Info("server stopped")
	return err
}

func openStores(ctx context.Context, cfg *config.Config, cipher *security.Cipher, logger *zap.Logger) (*stores, error) {
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres repositories")
		return &stores{
			tenants: tenantrepo.NewPostgresRepository(conn),
			audit:   auditrepo.NewPostgresRepository(conn),
			alerts:  alertrepo.NewPostgresRepository(conn),
			pinger:  conn,
			close:   conn.Close,
		}, nil
	}

	tenants := tenantrepo.NewMemoryRepository()
	if cfg.TenantsFile != "" {
		seeds, err := tenant.LoadYAML(cfg.TenantsFile)
		if err != nil {
			return nil, err
		}
		for _, s := range seeds {
			t, err := s.Tenant(cipher)
			if err != nil {
				return nil, err
			}
			if err := tenants.Upsert(ctx, t); err != nil {
				return nil, err
			}
		}
		logger.Info("loaded tenants", zap.String("file", cfg.TenantsFile), zap.Int("count", len(seeds)))
	}
	logger.Warn("DATABASE_URL not set; using in-memory repositories")
	return &stores{
		tenants: tenants,
		audit:   auditrepo.NewMemoryRepository(),
		alerts:  alertrepo.NewMemoryRepository(),
		close:   func() error { return nil },
	}, nil
}

func fetchers(cfg *config.Config) []provider.Fetcher {
	hc := &http.Client{Timeout: cfg.FetchTimeout()}
	rps := cfg.ProviderRateLimit
	return []provider.Fetcher{
		stripe.New(cfg.StripeBaseURL, provider.NewHTTPClient(provider.Stripe, hc, rps)),
		metaads.New(cfg.MetaGraphURL, cfg.MetaAPIVersion, provider.NewHTTPClient(provider.MetaAds, hc, rps)),
		googleads.New(cfg.GoogleAdsBaseURL, cfg.GoogleAdsAPIVersion, cfg.GoogleOAuthTokenURL,
			provider.NewHTTPClient(provider.GoogleAds, hc, rps)),
	}
}

// dashboardURL links a tenant's alerts to base; nil when no base is configured.
func dashboardURL(base string) func(tenantID string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return nil
	}
	return func(tenantID string) string {
		return base + "/?tenant=" + url.QueryEscape(tenantID)
	}
}
