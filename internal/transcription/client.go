package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ammosu/realtime-subtitle/internal/audio"
	"github.com/ammosu/realtime-subtitle/internal/textnorm"
)

// ErrTimeout indicates the recognition service did not answer within the
// request deadline. Callers distinguish it from other failures because a
// timeout usually means a backlog of stale segments has piled up behind
// the slow request.
var ErrTimeout = errors.New("transcription request timed out")

// MetricsRecorder receives recognition request observations.
type MetricsRecorder interface {
	RecordTranscriptionRequest()
	RecordTranscriptionSuccess(durationSeconds float64)
	RecordTranscriptionFailure()
	RecordTranscriptionTimeout()
	RecordBacklogDropped(count int)
}

// Client sends speech segments to the recognition service as raw PCM and
// returns the recognized text.
type Client struct {
	config     Config
	httpClient *http.Client
	normalizer *textnorm.Normalizer
	logger     *slog.Logger
	recorder   MetricsRecorder

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	timeoutRequests uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains transcription client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Result holds the recognition service response for one segment.
type Result struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	TimeoutRequests uint64        `json:"timeout_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// NewClient creates a new recognition HTTP client. The normalizer rewrites
// Chinese results to Traditional script and may be nil to disable that.
func NewClient(logger *slog.Logger, config Config, normalizer *textnorm.Normalizer) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if config.Timeout <= 0 {
		config.Timeout = 45 * time.Second
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		normalizer: normalizer,
		logger:     logger,
	}, nil
}

// SetMetrics attaches a metrics recorder.
func (c *Client) SetMetrics(recorder MetricsRecorder) {
	c.recorder = recorder
}

// Transcribe sends one 16kHz mono segment for recognition. The language hint
// is a code like "en" or "zh". Returns ErrTimeout (wrapped) when the service
// does not answer before the deadline.
func (c *Client) Transcribe(ctx context.Context, segment []float32, language string) (*Result, error) {
	startTime := time.Now()
	c.incrementTotalRequests()
	if c.recorder != nil {
		c.recorder.RecordTranscriptionRequest()
	}

	requestID := uuid.New().String()

	endpoint := c.config.BaseURL + "/api/transcribe"
	if language != "" {
		endpoint += "?language=" + url.QueryEscape(language)
	}

	body := bytes.NewReader(audio.Float32ToBytes(segment))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		c.incrementFailedRequests()
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeoutError(err) {
			c.incrementTimeoutRequests()
			if c.recorder != nil {
				c.recorder.RecordTranscriptionTimeout()
			}
			c.logger.Warn("Transcription request timed out",
				slog.String("request_id", requestID),
				slog.Duration("timeout", c.config.Timeout))
			return nil, fmt.Errorf("request %s: %w", requestID, ErrTimeout)
		}
		c.incrementFailedRequests()
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.incrementFailedRequests()
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.incrementFailedRequests()
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		c.incrementFailedRequests()
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	if c.normalizer != nil {
		result.Text = c.normalizer.Normalize(result.Language, result.Text)
	}

	c.incrementSuccessRequests()
	c.updateAvgResponseTime(time.Since(startTime))
	if c.recorder != nil {
		c.recorder.RecordTranscriptionSuccess(time.Since(startTime).Seconds())
	}

	return &result, nil
}

// isTimeoutError reports whether an HTTP client error was caused by the
// request deadline rather than some other transport failure.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	c.failedRequests++
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.RecordTranscriptionFailure()
	}
}

func (c *Client) incrementTimeoutRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeoutRequests++
	c.failedRequests++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		TimeoutRequests: c.timeoutRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
	}
}
