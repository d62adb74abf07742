// Command asrmock is a stand-in for the speech recognition server, for
// developing the worker and the presentation layer without a GPU. It accepts
// the raw float32 POST the worker sends and answers with canned text in the
// requested language.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type transcriptionResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

var cannedText = map[string]transcriptionResponse{
	"en": {Language: "english", Text: "This is a mock transcription of the audio segment."},
	"zh": {Language: "chinese", Text: "这是音频片段的模拟转录。"},
	"ja": {Language: "japanese", Text: "これは音声セグメントのモック文字起こしです。"},
}

var latency time.Duration

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	audioData, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading audio data", http.StatusBadRequest)
		return
	}

	language := r.URL.Query().Get("language")
	samples := len(audioData) / 4

	log.Printf("transcription request: request_id=%s language=%s samples=%d duration=%.2fs",
		r.Header.Get("X-Request-ID"), language, samples, float64(samples)/16000)

	// Simulate model latency.
	time.Sleep(latency)

	response, ok := cannedText[language]
	if !ok {
		response = cannedText["en"]
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func main() {
	port := flag.Int("port", 8000, "Port to listen on")
	flag.DurationVar(&latency, "latency", 200*time.Millisecond, "Simulated model latency")
	flag.Parse()

	http.HandleFunc("/api/transcribe", transcribeHandler)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock ASR server listening on %s", addr)
	log.Printf("point the worker at http://localhost%s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
