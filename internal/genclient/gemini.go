package genclient

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiFactory creates models backed by the Gemini API.
type GeminiFactory struct{}

// NewModel creates a client for apiKey and returns a handle to model name.
// No request is made; availability is only known after the first Generate.
func (GeminiFactory) NewModel(ctx context.Context, apiKey, name string, params Params) (Model, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, Wrap(fmt.Errorf("creating gemini client: %w", err))
	}

	return &geminiModel{client: client, name: name, params: params}, nil
}

type geminiModel struct {
	client *genai.Client
	name   string
	params Params
}

func (m *geminiModel) Name() string { return m.name }

func (m *geminiModel) Generate(ctx context.Context, prompt string, params *Params) (string, error) {
	p := m.params
	if params != nil {
		p = *params
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.name, genai.Text(prompt), generationConfig(p))
	if err != nil {
		return "", Wrap(err)
	}
	return resp.Text(), nil
}

func generationConfig(p Params) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if p.Temperature > 0 {
		cfg.Temperature = genai.Ptr(p.Temperature)
	}
	if p.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = p.MaxOutputTokens
	}
	return cfg
}
