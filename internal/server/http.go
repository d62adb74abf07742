package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ammosu/realtime-subtitle/internal/config"
	"github.com/ammosu/realtime-subtitle/internal/transcription"
	"github.com/ammosu/realtime-subtitle/internal/translation"
	"github.com/ammosu/realtime-subtitle/internal/vad"
)

// healthStaleAfter is how long the VAD may go without scoring a frame while
// capture is running before the worker reports itself unhealthy.
const healthStaleAfter = 10 * time.Second

// PipelineStatus is a point-in-time snapshot of the worker pipeline, used by
// the health and status endpoints.
type PipelineStatus struct {
	Capturing   bool                       `json:"capturing"`
	Source      string                     `json:"source"`
	Direction   string                     `json:"direction"`
	Segmenter   vad.SegmenterStats         `json:"segmenter"`
	Transcriber transcription.ClientStats  `json:"transcriber"`
	Loop        transcription.LoopStats    `json:"transcription_loop"`
	Debouncer   translation.DebouncerStats `json:"debouncer"`
}

// StatusProvider supplies pipeline snapshots for the HTTP endpoints.
type StatusProvider interface {
	Status() PipelineStatus
}

// HTTPServer exposes health, status and Prometheus endpoints for the worker.
// The subtitle protocol itself stays on stdin/stdout; this server is
// observability only.
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	provider StatusProvider

	startTime time.Time
}

// NewHTTPServer creates a new observability HTTP server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, provider StatusProvider) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		provider:  provider,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Liveness endpoint
	mux.HandleFunc("/healthz", h.handleHealth)

	// Pipeline statistics endpoint
	mux.HandleFunc("/status", h.handleStatus)

	// Configuration endpoint
	mux.HandleFunc("/config", h.handleConfig)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.handleRoot)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting observability HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping observability HTTP server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /healthz endpoint. The worker is unhealthy when
// capture claims to be running but the VAD has not scored a frame recently,
// which usually means the audio device went away under us.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.provider.Status()
	uptime := time.Since(h.startTime)

	healthy := true
	reason := ""
	if status.Capturing {
		last := status.Segmenter.LastActivity
		if last.IsZero() {
			last = h.startTime
		}
		if time.Since(last) > healthStaleAfter {
			healthy = false
			reason = "no audio frames processed recently"
		}
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"capturing": status.Capturing,
		"source":    status.Source,
	}
	if !healthy {
		health["status"] = "unhealthy"
		health["reason"] = reason
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(health)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"pipeline":  h.provider.Status(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Sanitized configuration: the translation API key is omitted.
	sanitized := map[string]interface{}{
		"audio": map[string]interface{}{
			"source":         h.config.Audio.Source,
			"monitor_device": h.config.Audio.MonitorDevice,
			"mic_device":     h.config.Audio.MicDevice,
		},
		"vad": map[string]interface{}{
			"model_path":        h.config.VAD.ModelPath,
			"threshold":         h.config.VAD.Threshold,
			"silence_frames":    h.config.VAD.SilenceFrames,
			"max_buffer_frames": h.config.VAD.MaxBufferFrames,
		},
		"asr": map[string]interface{}{
			"server":  h.config.ASR.Server,
			"timeout": h.config.ASR.Timeout,
		},
		"translation": map[string]interface{}{
			"model":       h.config.Translation.Model,
			"direction":   h.config.Translation.Direction,
			"debounce_ms": h.config.Translation.DebounceMS,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitized)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "realtime-subtitle-worker",
		"endpoints": map[string]interface{}{
			"GET /":        "API documentation",
			"GET /healthz": "Worker liveness check",
			"GET /status":  "Pipeline statistics",
			"GET /config":  "Sanitized configuration",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
