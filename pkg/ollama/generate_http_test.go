package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garnizeh/wildspot/pkg/ollama"
)

// writeSequence writes each object as a JSON line and flushes; useful to simulate Ollama's streaming.
func writeSequence(w http.ResponseWriter, seq []map[string]any, delay time.Duration) {
	enc := json.NewEncoder(w)
	for i, obj := range seq {
		_ = enc.Encode(obj)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		if i < len(seq)-1 && delay > 0 {
			time.Sleep(delay)
		}
	}
}

func TestClient_Generate_Retries_Backoff_Succeeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"loading model"}`))
			return
		}
		writeSequence(w, []map[string]any{{"response": "ok", "done": true}}, 0)
	}))
	defer srv.Close()

	cfg := ollama.Config{BaseURL: srv.URL, Timeout: 2 * time.Second, Retries: 2, Backoff: 10 * time.Millisecond, CircuitFailureThreshold: 10}
	client, err := ollama.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	res, err := client.Generate(context.Background(), ollama.GenerateRequest{Model: "m", Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate expected success after retry, got error: %v", err)
	}
	if res.Text != "ok" {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if _, ok := res.Meta["latency_ms"]; !ok {
		t.Fatalf("expected latency_ms in meta")
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestClient_Generate_ClientErrorIsNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	cfg := ollama.Config{BaseURL: srv.URL, Timeout: 2 * time.Second, Retries: 3, Backoff: 10 * time.Millisecond, CircuitFailureThreshold: 10}
	client, err := ollama.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	if _, err := client.Generate(context.Background(), ollama.GenerateRequest{Model: "missing", Prompt: "p"}); err == nil {
		t.Fatalf("expected error for unknown model")
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestClient_CircuitBreaker_Opens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"permanent"}`))
	}))
	defer srv.Close()

	cfg := ollama.Config{BaseURL: srv.URL, Timeout: 1 * time.Second, Retries: 0, Backoff: 1 * time.Millisecond, CircuitFailureThreshold: 2, CircuitReset: 1 * time.Minute}
	client, err := ollama.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.Generate(ctx, ollama.GenerateRequest{Model: "m", Prompt: "p"}); err == nil {
			t.Fatalf("expected error on attempt %d", i+1)
		}
	}

	if _, err := client.Generate(ctx, ollama.GenerateRequest{Model: "m", Prompt: "p"}); !errors.Is(err, ollama.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestRenderTemplate(t *testing.T) {
	out, err := ollama.RenderTemplate("near {{ .Location }}", map[string]any{"Location": "Lisbon"})
	if err != nil || out != "near Lisbon" {
		t.Fatalf("RenderTemplate = %q, %v", out, err)
	}
	if _, err := ollama.RenderTemplate("{{ .Missing }}", map[string]any{}); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := ollama.RenderTemplate("{{ .Broken ", nil); err == nil {
		t.Fatalf("expected parse error")
	}
}
