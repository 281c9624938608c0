package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// Client wraps the Ollama API client and adds retries, timeout, and circuit breaker.
type Client struct {
	api     *api.Client
	cfg     Config
	client  *http.Client
	breaker *breaker
	closed  atomic.Bool
}

// GenerateRequest is a single prompt, optionally with images for vision models.
type GenerateRequest struct {
	Model  string
	Prompt string
	Images [][]byte
	// JSON asks the model to constrain its output to a JSON value.
	JSON bool
}

// GenerateResult is the accumulated model response.
type GenerateResult struct {
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`
}

// NewClient creates a new Ollama client wrapper.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		api:     api.NewClient(u, httpClient),
		cfg:     cfg,
		client:  httpClient,
		breaker: newBreaker(cfg.CircuitFailureThreshold, cfg.CircuitReset),
	}
	logger.Debug("ollama: client created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

func NewDefaultClient(cfg Config) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient)
}

// Close releases idle connections on the underlying HTTP transport when supported.
// Close is idempotent and safe to call multiple times.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
			logger.Debug("ollama: idle connections closed")
		}
	}
	return nil
}

// package-level logger for pkg/ollama; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/ollama. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Health reports an error unless the instance answers with at least one pulled model.
func (c *Client) Health(ctx context.Context) error {
	names, err := c.ListModels(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("ollama unreachable: %w", err)
	case len(names) == 0:
		return errors.New("ollama has no models pulled")
	}
	return nil
}

// HasModel reports whether name is pulled. A bare name matches its ":latest" tag.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	names, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name || n == name+":latest" {
			return true, nil
		}
	}
	return false, nil
}

// ListModels returns the names of the locally available models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if c.breaker.open() {
		return nil, ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.List(ctx)
	if err != nil {
		c.breaker.fail()
		return nil, err
	}

	out := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, m.Name)
	}
	c.breaker.succeed()
	return out, nil
}

// Generate sends req to the model and returns the concatenated streamed response.
// Transient failures are retried with linear backoff; client errors (4xx) are not.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	var lastErr error
	var empty GenerateResult
	if c.breaker.open() {
		return empty, ErrCircuitOpen
	}

	apiReq := &api.GenerateRequest{Model: req.Model, Prompt: req.Prompt}
	for _, img := range req.Images {
		apiReq.Images = append(apiReq.Images, api.ImageData(img))
	}
	if req.JSON {
		apiReq.Format = json.RawMessage(`"json"`)
	}

	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		ctxReq, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		var sb strings.Builder
		var evalCount int
		start := time.Now()
		err := c.api.Generate(ctxReq, apiReq, func(r api.GenerateResponse) error {
			sb.WriteString(r.Response)
			if r.Done {
				evalCount = r.EvalCount
			}
			return nil
		})
		cancel()

		if err == nil {
			c.breaker.succeed()
			meta := map[string]any{"model": req.Model, "latency_ms": time.Since(start).Milliseconds(), "eval_count": evalCount}
			return GenerateResult{Text: sb.String(), Meta: meta}, nil
		}

		lastErr = err
		c.breaker.fail()
		logger.Warn("ollama: generate attempt failed", slog.Int("attempt", attempt+1), slog.String("model", req.Model), slog.String("error", err.Error()))

		var se api.StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			break
		}
		if ctx.Err() != nil {
			return empty, ctx.Err()
		}
		if attempt == c.cfg.Retries {
			break
		}

		select {
		case <-time.After(c.cfg.Backoff * time.Duration(attempt+1)):
		case <-ctx.Done():
			return empty, ctx.Err()
		}
		if c.breaker.open() {
			return empty, ErrCircuitOpen
		}
	}

	return empty, fmt.Errorf("generate failed after retries: %w", lastErr)
}
