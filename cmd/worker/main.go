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

	"github.com/joho/godotenv"

	"github.com/ammosu/realtime-subtitle/internal/audio"
	"github.com/ammosu/realtime-subtitle/internal/config"
	"github.com/ammosu/realtime-subtitle/internal/ipc"
	"github.com/ammosu/realtime-subtitle/internal/metrics"
	"github.com/ammosu/realtime-subtitle/internal/server"
	"github.com/ammosu/realtime-subtitle/internal/translation"
	"github.com/ammosu/realtime-subtitle/internal/vad"
	"github.com/ammosu/realtime-subtitle/internal/worker"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "realtime-subtitle-worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listDevices := flag.Bool("list-devices", false, "List capture devices and exit")
	flag.Parse()

	// Secrets such as OPENAI_API_KEY may live in a .env file next to the
	// binary. A missing file is fine.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration. Stdout carries the event
	// stream for the presentation layer, so logs may never go there.
	logger := initLogger(cfg.Logging)

	if *listDevices {
		if err := printDevices(logger); err != nil {
			logger.Error("Failed to list devices", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	logger.Info("Worker starting",
		slog.String("service", serviceName),
		slog.String("config_path", *configPath),
	)
	logger.Info("Configuration loaded",
		slog.String("audio_source", cfg.Audio.Source),
		slog.String("vad_model_path", cfg.VAD.ModelPath),
		slog.Float64("vad_threshold", float64(cfg.VAD.Threshold)),
		slog.String("asr_server", cfg.ASR.Server),
		slog.String("translation_model", cfg.Translation.Model),
		slog.String("direction", cfg.Translation.Direction),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	// Load the VAD model session
	scorer, err := vad.NewSileroScorer(cfg.VAD.ModelPath)
	if err != nil {
		logger.Error("Failed to load VAD model",
			slog.String("model_path", cfg.VAD.ModelPath),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer scorer.Close()
	logger.Info("VAD model loaded", slog.String("model_path", cfg.VAD.ModelPath))

	// Create the translation client
	translator, err := translation.NewOpenAITranslator(cfg.Translation.APIKey, cfg.Translation.Model)
	if err != nil {
		logger.Error("Failed to create translator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Events out on stdout, commands in on stdin.
	events := ipc.NewEventWriter(os.Stdout)
	commands := ipc.NewCommandReader(os.Stdin)

	// Build the pipeline
	w, err := worker.New(logger, cfg, scorer, translator, events, commands)
	if err != nil {
		logger.Error("Failed to build worker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	w.SetMetrics(appMetrics)

	// Start the observability HTTP server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, w)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Run the pipeline until a stop command, signal, or pipeline failure.
	runErr := w.Run(ctx)

	// Stop the HTTP server
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Final statistics
	status := w.Status()
	logger.Info("Final pipeline statistics",
		slog.Uint64("frames_processed", status.Segmenter.FramesProcessed),
		slog.Uint64("segments_emitted", status.Segmenter.SegmentsEmitted),
		slog.Uint64("transcripts", status.Loop.Transcripts),
		slog.Uint64("translations_delivered", status.Debouncer.Delivered),
	)

	if runErr != nil {
		logger.Error("Worker exited with error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

// printDevices lists capture and playback devices on stderr.
func printDevices(logger *slog.Logger) error {
	captures, playbacks, err := audio.ListDevices()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Capture devices:")
	for _, name := range captures {
		fmt.Fprintf(os.Stderr, "  %s\n", name)
	}
	fmt.Fprintln(os.Stderr, "Playback devices:")
	for _, name := range playbacks {
		fmt.Fprintf(os.Stderr, "  %s\n", name)
	}

	logger.Info("Listed devices",
		slog.Int("capture", len(captures)),
		slog.Int("playback", len(playbacks)))
	return nil
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

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Stdout belongs to the event protocol; anything configured as stdout
	// is redirected to stderr.
	var output *os.File
	switch cfg.Output {
	case "stderr", "stdout", "":
		output = os.Stderr
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
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
