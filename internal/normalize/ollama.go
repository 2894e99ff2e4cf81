package normalize

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"
)

const defaultOllamaModel = "llama3.2:3b"

// OllamaProvider is a local alternative to AnthropicProvider for decompose/classify,
// useful when no Anthropic key is configured or network egress is unavailable.
type OllamaProvider struct {
	client *api.Client
	model  string
}

func NewOllamaProvider(model string) (*OllamaProvider, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaProvider{client: client, model: model}, nil
}

func (o *OllamaProvider) generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	var out string
	err := o.client.Generate(ctx, &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Format: json.RawMessage(`"json"`),
		Stream: &stream,
	}, func(resp api.GenerateResponse) error {
		out = resp.Response
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}
	return out, nil
}

func (o *OllamaProvider) Decompose(ctx context.Context, text string) ([]string, error) {
	raw, err := o.generate(ctx, fmt.Sprintf(decomposePrompt, text))
	if err != nil {
		return nil, err
	}
	var atoms []string
	if err := json.Unmarshal([]byte(stripJSONFence(raw)), &atoms); err != nil {
		return nil, fmt.Errorf("failed to parse decomposition response: %w (response: %s)", err, raw)
	}
	return atoms, nil
}

func (o *OllamaProvider) Classify(ctx context.Context, atom string) (Classification, error) {
	raw, err := o.generate(ctx, fmt.Sprintf(classifyPrompt, atom))
	if err != nil {
		return Classification{}, err
	}
	var resp classifyResponse
	if err := json.Unmarshal([]byte(stripJSONFence(raw)), &resp); err != nil {
		return Classification{}, fmt.Errorf("failed to parse classification response: %w (response: %s)", err, raw)
	}
	return Classification{
		Frame:       resp.Frame,
		Normalized:  resp.Normalized,
		Entities:    resp.Entities,
		Problems:    resp.Problems,
		Resolutions: resp.Resolutions,
		Contexts:    resp.Contexts,
	}, nil
}
