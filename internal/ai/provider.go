package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/wildspot/internal/config"
	"github.com/garnizeh/wildspot/pkg/ollama"
	"github.com/garnizeh/wildspot/pkg/repository"
)

// Provider bundles the classifier and suggester selected by configuration.
type Provider struct {
	Name       string
	Demo       bool
	Classifier Classifier
	Suggester  Suggester
	close      func() error
	health     func(ctx context.Context) error
}

// Health checks that the backing model service answers. Providers without a
// remote dependency are always healthy.
func (p *Provider) Health(ctx context.Context) error {
	if p == nil || p.health == nil {
		return nil
	}
	return p.health(ctx)
}

// Close releases provider resources.
func (p *Provider) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

// NewProvider builds the provider named by cfg.EngineConfig.Provider. Demo content is
// used only when asked for, or for openai without an API key; in that case a warning
// is logged.
func NewProvider(ctx context.Context, cfg *config.Config, sr repository.SchemaRepo, tr repository.TemplateRepo, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ec := cfg.EngineConfig
	engineCfg := EngineConfig{
		TemplateVersion: ec.Template.Version,
		Timeout:         ec.Timeout,
		SuggestDaily:    ec.SuggestDaily,
		SuggestWeekly:   ec.SuggestWeekly,
	}

	switch ec.Provider {
	case config.ProviderDemo:
		return demoProvider(), nil

	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			logger.Warn("ai: no OpenAI API key configured, serving demo content")
			return demoProvider(), nil
		}
		gen := NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, ec.Model, nil)
		eng, err := NewEngine(ctx, gen, engineCfg, sr, tr, logger)
		if err != nil {
			return nil, err
		}
		return &Provider{Name: gen.Name(), Classifier: eng, Suggester: eng}, nil

	case config.ProviderOllama:
		ollama.SetLogger(logger)
		client, err := ollama.NewDefaultClient(ollama.Config{
			BaseURL:                 cfg.Ollama.BaseURL,
			Timeout:                 cfg.Ollama.Timeout,
			Retries:                 cfg.Ollama.Retries,
			Backoff:                 cfg.Ollama.Backoff,
			CircuitFailureThreshold: cfg.Ollama.CircuitFailureThreshold,
			CircuitReset:            cfg.Ollama.CircuitReset,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		gen := NewOllamaGenerator(client, ec.Model)
		eng, err := NewEngine(ctx, gen, engineCfg, sr, tr, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		health := func(ctx context.Context) error {
			ok, err := client.HasModel(ctx, ec.Model)
			if err != nil {
				return fmt.Errorf("ollama unreachable: %w", err)
			}
			if !ok {
				return fmt.Errorf("model %q is not pulled", ec.Model)
			}
			return nil
		}
		return &Provider{Name: gen.Name(), Classifier: eng, Suggester: eng, close: client.Close, health: health}, nil
	}
	return nil, fmt.Errorf("unknown provider %q", ec.Provider)
}

func demoProvider() *Provider {
	d := DemoProvider{}
	return &Provider{Name: demoName, Demo: true, Classifier: d, Suggester: d}
}
