// Package ai classifies animal photos and suggests spotting tasks through a
// language model provider. Every response is checked against a JSON schema
// before callers see it.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/pkg/ollama"
	"github.com/garnizeh/wildspot/pkg/repository"
)

// Classifier identifies the animal in an image.
type Classifier interface {
	Classify(ctx context.Context, image []byte) ClassificationResult
}

// Suggester proposes animals to look for near a location.
type Suggester interface {
	Suggest(ctx context.Context, loc models.LocationInfo) (*Suggestions, error)
}

type Suggestion struct {
	Animal string `json:"animal"`
	Hint   string `json:"hint,omitempty"`
}

type Suggestions struct {
	Daily  []Suggestion `json:"daily"`
	Weekly []Suggestion `json:"weekly"`
}

// Generator is a model backend that turns a prompt, and optional images, into text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, images [][]byte) (string, error)
}

const (
	TemplateRecognize = "recognize"
	TemplateSuggest   = "suggest"
)

// EngineConfig tunes an Engine.
type EngineConfig struct {
	TemplateVersion string
	Timeout         time.Duration
	SuggestDaily    int
	SuggestWeekly   int
}

type prompt struct {
	text          string
	schemaVersion string
}

// Engine renders prompts from stored templates, calls a Generator and validates the
// answer against the template's schema. It implements Classifier and Suggester.
type Engine struct {
	gen       Generator
	cfg       EngineConfig
	loader    *Loader
	recognize prompt
	suggest   prompt
	logger    *slog.Logger
}

var (
	_ Classifier = (*Engine)(nil)
	_ Suggester  = (*Engine)(nil)
)

// NewEngine loads the recognize and suggest templates and every schema. Missing
// templates or schemas are an error.
func NewEngine(ctx context.Context, gen Generator, cfg EngineConfig, sr repository.SchemaRepo, tr repository.TemplateRepo, logger *slog.Logger) (*Engine, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if sr == nil {
		return nil, errors.New("schema repo is required")
	}
	if tr == nil {
		return nil, errors.New("template repo is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TemplateVersion == "" {
		cfg.TemplateVersion = "v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.SuggestDaily <= 0 {
		cfg.SuggestDaily = 3
	}
	if cfg.SuggestWeekly <= 0 {
		cfg.SuggestWeekly = 2
	}

	loader, err := NewLoader(ctx, sr)
	if err != nil {
		return nil, fmt.Errorf("create loader: %w", err)
	}

	e := &Engine{gen: gen, cfg: cfg, loader: loader, logger: logger}
	for name, dst := range map[string]*prompt{TemplateRecognize: &e.recognize, TemplateSuggest: &e.suggest} {
		tpl, err := tr.GetTemplate(ctx, name, cfg.TemplateVersion)
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", name, err)
		}
		if tpl == nil || tpl.TemplateTxt == "" {
			return nil, fmt.Errorf("template %s:%s not found", name, cfg.TemplateVersion)
		}
		if tpl.SchemaVer == nil || *tpl.SchemaVer == "" {
			return nil, fmt.Errorf("template %s:%s has no schema version", name, cfg.TemplateVersion)
		}
		if _, ok := loader.GetSchema(*tpl.SchemaVer); !ok {
			return nil, fmt.Errorf("no schema found for version %s", *tpl.SchemaVer)
		}
		*dst = prompt{text: tpl.TemplateTxt, schemaVersion: *tpl.SchemaVer}
	}
	return e, nil
}

// Classify asks the model what animal is in image.
func (e *Engine) Classify(ctx context.Context, image []byte) ClassificationResult {
	name := e.gen.Name()
	text, err := ollama.RenderTemplate(e.recognize.text, map[string]any{})
	if err != nil {
		return Unavailable(name, fmt.Errorf("render template: %w", err))
	}

	ctxReq, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.gen.Generate(ctxReq, text, [][]byte{image})
	if err != nil {
		return Unavailable(name, err)
	}

	j, err := e.validate(ctxReq, e.recognize.schemaVersion, out)
	if err != nil {
		e.logger.Warn("ai: classifier response rejected", slog.String("provider", name), slog.String("error", err.Error()), slog.String("raw", out))
		return Malformed(name, out, err)
	}

	var report models.AnimalReport
	if err := json.Unmarshal([]byte(j), &report); err != nil {
		return Malformed(name, out, fmt.Errorf("json unmarshal: %w", err))
	}
	report.Animal = strings.TrimSpace(report.Animal)
	if report.Animal == "" {
		return Malformed(name, out, errors.New("blank animal label"))
	}
	if report.Details.InterestingFacts == nil {
		report.Details.InterestingFacts = []string{}
	}
	return OK(name, report)
}

// Suggest asks the model for daily and weekly animals near loc.
func (e *Engine) Suggest(ctx context.Context, loc models.LocationInfo) (*Suggestions, error) {
	name := e.gen.Name()
	data := map[string]any{"Location": describe(loc), "Daily": e.cfg.SuggestDaily, "Weekly": e.cfg.SuggestWeekly}
	text, err := ollama.RenderTemplate(e.suggest.text, data)
	if err != nil {
		return nil, apperr.Provider(name, fmt.Errorf("render template: %w", err))
	}

	ctxReq, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	out, err := e.gen.Generate(ctxReq, text, nil)
	if err != nil {
		return nil, apperr.Provider(name, err)
	}
	j, err := e.validate(ctxReq, e.suggest.schemaVersion, out)
	if err != nil {
		e.logger.Warn("ai: suggester response rejected", slog.String("provider", name), slog.String("error", err.Error()), slog.String("raw", out))
		return nil, apperr.Provider(name, err)
	}

	var s Suggestions
	if err := json.Unmarshal([]byte(j), &s); err != nil {
		return nil, apperr.Provider(name, fmt.Errorf("json unmarshal: %w", err))
	}
	return &s, nil
}

// validate extracts the JSON object from out and checks it against schemaVersion.
func (e *Engine) validate(ctx context.Context, schemaVersion, out string) (string, error) {
	if strings.TrimSpace(out) == "" {
		return "", errors.New("empty response")
	}
	j := ExtractJSON(out)
	if j == "" {
		return "", errors.New("no JSON object found in response")
	}

	schema, ok := e.loader.GetSchema(schemaVersion)
	if !ok || schema == nil {
		return "", fmt.Errorf("no schema found for version %s", schemaVersion)
	}
	verrs, err := schema.ValidateBytes(ctx, []byte(j))
	if err != nil {
		return "", fmt.Errorf("schema validate error: %w", err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.PropertyPath)
			sb.WriteString(": ")
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return "", fmt.Errorf("response does not match schema: %s", sb.String())
	}
	return j, nil
}

// ExtractJSON returns the substring from the first '{' to the last '}' in the input.
// Models often wrap JSON in prose or markdown fences.
func ExtractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}

func describe(loc models.LocationInfo) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{loc.Natural, loc.City, loc.State, loc.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "an unknown location"
	}
	return strings.Join(parts, ", ")
}
