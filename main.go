package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/jcjurado/outreach/internal/activities"
	"github.com/jcjurado/outreach/internal/auth"
	"github.com/jcjurado/outreach/internal/config"
	"github.com/jcjurado/outreach/internal/db"
	"github.com/jcjurado/outreach/internal/health"
	"github.com/jcjurado/outreach/internal/httpapi"
	"github.com/jcjurado/outreach/internal/idempotency"
	"github.com/jcjurado/outreach/internal/policy"
	"github.com/jcjurado/outreach/internal/pricing"
	"github.com/jcjurado/outreach/internal/registry"
	"github.com/jcjurado/outreach/internal/service"
	"github.com/jcjurado/outreach/internal/temporal"
	"github.com/jcjurado/outreach/internal/tracing"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	level := zap.NewAtomicLevel()
	logger, err := newLogger(level, os.Getenv("OUTREACH_LOGGING_DEVELOPMENT") == "true")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Getenv("OUTREACH_CONFIG"), level, logger); err != nil {
		logger.Fatal("Orchestrator exited", zap.Error(err))
	}
	logger.Info("Orchestrator stopped")
}

func newLogger(level zap.AtomicLevel, development bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func run(ctx context.Context, configPath string, level zap.AtomicLevel, logger *zap.Logger) error {
	cfgMgr, err := config.NewManager(configPath, logger)
	if err != nil {
		return err
	}
	cfg := cfgMgr.Current()
	setLevel(level, cfg.Logging.Level, logger)
	pricing.Configure(cfg.LLM.Pricing)

	shutdownTracing, err := tracing.Initialize(cfg.Tracing, logger)
	if err != nil {
		return err
	}

	hm := health.NewManager(30*time.Second, logger)
	_ = hm.RegisterChecker(health.NewBreakerChecker(nil))

	provider := service.NewProvider(cfg, logger)
	transport, err := service.NewTransport(cfg, logger)
	if err != nil {
		return err
	}
	opa, err := policy.NewOPAEngine(cfg.Policy, logger)
	if err != nil {
		return err
	}

	var dedupe httpapi.Deduper
	if cfg.Redis.Enabled {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rc.Close() }()
		store := idempotency.New(rc, cfg.Webhook.DedupeTTL, logger)
		dedupe = store
		_ = hm.RegisterChecker(health.NewPingChecker("redis", store, false))
	}

	var archiver activities.Archiver
	if cfg.Postgres.Enabled {
		store, err := db.Open(ctx, db.Config{
			DSN:            cfg.PostgresDSN(),
			MaxConnections: cfg.Postgres.MaxOpenConns,
		}, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		archiver = store
		_ = hm.RegisterChecker(health.NewPingChecker("postgres", store, false))
	}

	tc, err := temporal.Dial(ctx, cfg.Temporal, logger)
	if err != nil {
		return err
	}
	defer tc.Close()
	_ = hm.RegisterChecker(health.NewTemporalChecker(tc))

	w := worker.New(tc, cfg.Temporal.TaskQueue, worker.Options{})
	reg := registry.NewOutreachRegistry(registry.Dependencies{
		Provider:  provider,
		Transport: transport,
		Policy:    opa,
		Archiver:  archiver,
	}, logger)
	if err := reg.Register(w); err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()
	logger.Info("Temporal worker started", zap.String("queue", cfg.Temporal.TaskQueue))

	svc := service.New(tc, cfgMgr, provider, logger)

	var jwtm *auth.JWTManager
	if cfg.Auth.Enabled {
		jwtm, err = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Hour)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("Operator API authentication disabled")
	}
	api := httpapi.NewAPIHandler(svc, auth.NewMiddleware(jwtm, !cfg.Auth.Enabled, logger),
		cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.Webhook.SyncTimeout, logger)
	inbound := httpapi.NewInboundHandler(svc, dedupe, func() config.WebhookConfig {
		return cfgMgr.Current().Webhook
	}, logger)

	cfgMgr.RegisterHandler(func(_, next *config.Config) error {
		setLevel(level, next.Logging.Level, logger)
		api.SetRate(next.RateLimit.RequestsPerSecond, next.RateLimit.Burst)
		pricing.Configure(next.LLM.Pricing)
		return opa.Reload(next.Policy)
	})
	if err := cfgMgr.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = cfgMgr.Stop() }()
	if err := hm.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = hm.Stop() }()

	adminMux := http.NewServeMux()
	health.NewHTTPHandler(hm, logger).RegisterRoutes(adminMux)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	servers := map[string]*http.Server{
		"public":  httpapi.NewServer(cfg.Service.HTTPPort, httpapi.NewMux(inbound, api)),
		"admin":   httpapi.NewServer(cfg.Service.AdminPort, adminMux),
		"metrics": httpapi.NewServer(cfg.Service.MetricsPort, metricsMux),
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, srv := range servers {
		name, srv := name, srv
		g.Go(func() error {
			logger.Info("HTTP server listening", zap.String("server", name), zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down orchestrator")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfgMgr.Current().Service.ShutdownTimeout)
		defer cancel()
		for name, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown failed", zap.String("server", name), zap.Error(err))
			}
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed", zap.Error(err))
		}
		return nil
	})

	logger.Info("Outreach orchestrator started",
		zap.Int("http_port", cfg.Service.HTTPPort),
		zap.Int("admin_port", cfg.Service.AdminPort),
		zap.Int("metrics_port", cfg.Service.MetricsPort),
		zap.String("transport", cfg.Delivery.Transport),
		zap.String("policy_mode", string(opa.Mode())),
		zap.Bool("dedupe", dedupe != nil),
		zap.Bool("archive", archiver != nil),
	)
	return g.Wait()
}

func setLevel(level zap.AtomicLevel, name string, logger *zap.Logger) {
	if name == "" {
		return
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		logger.Warn("Ignoring invalid log level", zap.String("level", name), zap.Error(err))
	}
}
