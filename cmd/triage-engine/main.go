package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faultstack/faultline/internal/api"
	"github.com/faultstack/faultline/internal/config"
	"github.com/faultstack/faultline/internal/engine"
	"github.com/faultstack/faultline/internal/history"
	"github.com/faultstack/faultline/internal/metrics"
	"github.com/faultstack/faultline/internal/patterns"
	"github.com/faultstack/faultline/internal/services"
	"github.com/faultstack/faultline/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting faultline", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var library *patterns.Library
	if cfg.Patterns.Path != "" {
		library, err = patterns.Load(cfg.Patterns.Path, logger)
		if err != nil {
			logger.Error("failed to load pattern pack", slog.String("path", cfg.Patterns.Path), slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		library = patterns.Default(logger)
	}
	library = library.WithMatchLimit(cfg.Engine.MaxPatternsPerEntry)

	store := history.NewStore(cfg.History.Size, cfg.History.Retention)
	correlator := history.NewCorrelator(store, history.Params{
		Window:           cfg.Engine.CorrelationWindow,
		ClusterWindow:    cfg.Engine.ClusterWindow,
		ClusterThreshold: cfg.Engine.ClusterThreshold,
		MaxRelatedIDs:    cfg.Engine.MaxRelatedIDs,
	}, utils.WithComponent(logger, "history"))

	engineLogger := utils.WithComponent(logger, "engine")
	analyzer := engine.NewAnalyzer(library, engineLogger).WithMaxCauses(cfg.Engine.MaxCauses)
	pipeline := engine.NewPipeline(engineLogger, library, correlator, analyzer, engine.Options{
		BatchParallelism: cfg.Engine.BatchParallelism,
		FutureSkew:       cfg.Engine.FutureSkew,
		MaxTextBytes:     cfg.Engine.MaxTextBytes,
		BurstWindow:      cfg.Engine.ClusterWindow,
		BurstThreshold:   cfg.Engine.ClusterThreshold,
		MaxRelatedIDs:    cfg.Engine.MaxRelatedIDs,
		Trend: engine.TrendParams{
			Bucket:     cfg.Trends.Bucket,
			MinBuckets: cfg.Trends.MinBuckets,
			MinCount:   cfg.Trends.MinCount,
			StableBand: cfg.Trends.StableBand,
		},
	})

	analysisService := services.NewAnalysisService(utils.WithComponent(logger, "service"), pipeline, library, correlator)
	handlers := api.NewHandlers(utils.WithComponent(logger, "api"), analysisService)

	server, err := api.NewServer(cfg.Server, logger, handlers)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("analysis server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("analysis server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("faultline stopped")
}
