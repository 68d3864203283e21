package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/backend"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/budget"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/engine"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads/handler"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ad search service",
		"port", cfg.Server.Port,
		"index_backend", cfg.Index.Backend,
		"catalog_backend", cfg.Catalog.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := backend.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open stores", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	for name, check := range stores.Checks {
		checker.Register(name, check)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		metricsServer := metrics.NewServer(fmt.Sprintf(":%d", cfg.Metrics.Port), prometheus.DefaultGatherer)
		metricsServer.Mount("/health/ready", checker.ReadyHandler())
		if err := metricsServer.Start(); err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer metricsServer.Shutdown(context.Background())
	}

	aggregator := analytics.NewAggregator()
	publishers := []analytics.Publisher{aggregator}
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		publishers = append(publishers, producer)
		checker.Register("kafka", health.PingCheck(producer.Ping))
		slog.Info("analytics publishing to kafka", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}
	collector := analytics.NewCollector(cfg.Analytics.BufferSize, publishers...)
	collector.Start()

	deps := engine.Deps{
		Index:        stores.Index,
		Catalog:      stores.Catalog,
		Source:       engine.FileSource(cfg.Ingest.AdsPath),
		Budget:       budget.NopLoader{},
		BudgetSource: cfg.Ingest.BudgetPath,
		Search:       cfg.Search,
		Breaker:      cfg.Breaker,
		Metrics:      m,
		Tracer:       tracing.New(cfg.Tracing.Enabled),
		Tracker:      collector,
		Closers: []engine.Closer{
			func(context.Context) error { return stores.Close() },
			collector.Close,
		},
	}
	var holder engine.Singleton
	eng := holder.Get(ctx, deps)
	checker.Register("engine", health.FlagCheck(eng.Ready, "ingestion did not complete"))
	slog.Info("health checks registered", "checks", checker.Names())
	if report := eng.Report(); report != nil {
		slog.Info("ingestion finished",
			"run_id", report.RunID,
			"accepted", report.Accepted,
			"skipped", report.Skipped,
		)
	}

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		defer limiter.Stop()
	}

	router := handler.NewRouter(handler.New(eng), handler.RouterConfig{
		Health:      checker,
		Analytics:   analytics.NewHandler(aggregator, collector),
		Metrics:     m,
		Timeout:     cfg.Server.WriteTimeout,
		CORSOrigins: cfg.Server.CORSOrigins,
		Limiter:     limiter,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if err := eng.Shutdown(shutdownCtx); err != nil {
			slog.Error("engine shutdown error", "error", err)
		}
	}()

	slog.Info("ad search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-shutdownDone
	slog.Info("ad search service stopped")
}
