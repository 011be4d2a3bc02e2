package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skypro1111/silencesense/internal/analyzer"
	"github.com/skypro1111/silencesense/internal/config"
	"github.com/skypro1111/silencesense/internal/metrics"
	"github.com/skypro1111/silencesense/internal/server"
	"github.com/skypro1111/silencesense/internal/store"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "silencesense"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file (empty for defaults)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.Int("max_upload_mb", cfg.HTTP.MaxUploadMB),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("frame_duration_ms", cfg.VAD.FrameDurationMs),
		slog.Int("padding_duration_ms", cfg.VAD.PaddingDurationMs),
		slog.Int("vad_mode", cfg.VAD.Mode),
		slog.String("classifier", cfg.VAD.Classifier),
		slog.Int("max_concurrent", cfg.Analysis.MaxConcurrent),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Prometheus metrics initialized")

	// Initialize result store
	resultStore, err := store.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("Failed to create result store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Result store initialized",
		slog.String("backend", cfg.Storage.Backend),
		slog.Duration("ttl", cfg.Storage.GetTTLDuration()),
	)

	// Initialize analyzer
	classifiers, err := analyzer.ClassifierByName(cfg.VAD.Classifier)
	if err != nil {
		logger.Error("Failed to select classifier", slog.String("error", err.Error()))
		os.Exit(1)
	}
	silenceAnalyzer, err := analyzer.New(analyzer.Options{
		Params: analyzer.Params{
			FrameDurationMs:   cfg.VAD.FrameDurationMs,
			PaddingDurationMs: cfg.VAD.PaddingDurationMs,
			Mode:              cfg.VAD.Mode,
		},
		TargetSampleRate: cfg.Audio.SampleRate,
		ScratchDir:       cfg.Audio.ScratchDir,
		MaxConcurrent:    cfg.Analysis.MaxConcurrent,
	}, analyzer.Dependencies{
		Store:       resultStore,
		Metrics:     appMetrics,
		Logger:      logger,
		Classifiers: classifiers,
	})
	if err != nil {
		logger.Error("Failed to create analyzer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize and start HTTP API server
	httpServer := server.NewHTTPServer(cfg, server.Dependencies{
		Logger:   logger,
		Analyzer: silenceAnalyzer,
		Store:    resultStore,
		Metrics:  appMetrics,
	})
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Service started successfully, waiting for signals...")

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Received shutdown signal")
	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop HTTP server first so no analysis is started against a closed store
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	if err := resultStore.Close(shutdownCtx); err != nil {
		logger.Error("Error closing result store", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := silenceAnalyzer.GetStats()
	logger.Info("Final analyzer statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("completed_requests", stats.CompletedRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("cache_hits", stats.CacheHits),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
