package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ammosu/realtime-subtitle/internal/audio"
	"github.com/ammosu/realtime-subtitle/internal/textnorm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestClientTranscribe(t *testing.T) {
	segment := []float32{0.5, -0.5, 0.25, -0.25}

	var gotPath, gotLanguage, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLanguage = r.URL.Query().Get("language")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)

		json.NewEncoder(w).Encode(Result{Language: "english", Text: "  hello world  "})
	}))
	defer server.Close()

	client, err := NewClient(testLogger(), Config{BaseURL: server.URL, Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := client.Transcribe(context.Background(), segment, "en")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if gotPath != "/api/transcribe" {
		t.Errorf("request path = %q, want /api/transcribe", gotPath)
	}
	if gotLanguage != "en" {
		t.Errorf("language query = %q, want en", gotLanguage)
	}
	if gotContentType != "application/octet-stream" {
		t.Errorf("content type = %q, want application/octet-stream", gotContentType)
	}

	wantBody := audio.Float32ToBytes(segment)
	if len(gotBody) != len(wantBody) {
		t.Fatalf("body length = %d bytes, want %d", len(gotBody), len(wantBody))
	}
	decoded := audio.BytesToFloat32(gotBody)
	for i, s := range segment {
		if decoded[i] != s {
			t.Errorf("body sample %d = %v, want %v", i, decoded[i], s)
		}
	}

	if result.Text != "  hello world  " {
		t.Errorf("result text = %q", result.Text)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 {
		t.Errorf("stats = %+v, want 1 total / 1 success", stats)
	}
}

func TestClientOmitsEmptyLanguageHint(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(Result{Language: "english", Text: "ok"})
	}))
	defer server.Close()

	client, err := NewClient(testLogger(), Config{BaseURL: server.URL, Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), []float32{0}, ""); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if gotQuery != "" {
		t.Errorf("query = %q, want no language parameter without a hint", gotQuery)
	}
}

func TestClientNormalizesChineseResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{Language: "chinese", Text: "软件"})
	}))
	defer server.Close()

	normalizer, err := textnorm.NewNormalizer()
	if err != nil {
		t.Fatalf("NewNormalizer failed: %v", err)
	}

	client, err := NewClient(testLogger(), Config{BaseURL: server.URL, Timeout: 5 * time.Second}, normalizer)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := client.Transcribe(context.Background(), []float32{0}, "zh")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "軟體" {
		t.Errorf("result text = %q, want 軟體", result.Text)
	}
}

func TestClientTimeoutClassification(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient(testLogger(), Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.Transcribe(context.Background(), []float32{0, 0}, "en")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error %v is not ErrTimeout", err)
	}

	stats := client.GetStats()
	if stats.TimeoutRequests != 1 {
		t.Errorf("stats.TimeoutRequests = %d, want 1", stats.TimeoutRequests)
	}
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(testLogger(), Config{BaseURL: server.URL, Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.Transcribe(context.Background(), []float32{0}, "en")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("server error must not be classified as timeout")
	}

	stats := client.GetStats()
	if stats.FailedRequests != 1 {
		t.Errorf("stats.FailedRequests = %d, want 1", stats.FailedRequests)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(testLogger(), Config{}, nil); err == nil {
		t.Error("expected error for empty base URL")
	}
}
