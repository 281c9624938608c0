package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/garnizeh/wildspot/pkg/ollama"
	openai "github.com/sashabaranov/go-openai"
)

// OllamaGenerator runs prompts on a local Ollama model.
type OllamaGenerator struct {
	client *ollama.Client
	model  string
}

func NewOllamaGenerator(client *ollama.Client, model string) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model}
}

func (g *OllamaGenerator) Name() string { return "ollama" }

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, images [][]byte) (string, error) {
	res, err := g.client.Generate(ctx, ollama.GenerateRequest{Model: g.model, Prompt: prompt, Images: images, JSON: true})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// OpenAIGenerator runs prompts through the OpenAI chat completions API. Images are
// sent inline as data URLs.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, baseURL, model string, httpClient *http.Client) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg), model: model}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, images [][]byte) (string, error) {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: dataURL(img), Detail: openai.ImageURLDetailAuto},
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          g.model,
		Messages:       []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, MultiContent: parts}},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.7,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func dataURL(img []byte) string {
	return "data:" + http.DetectContentType(img) + ";base64," + base64.StdEncoding.EncodeToString(img)
}
