package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-20241022"

// ErrAPIKeyRequired is returned when no Anthropic API key is available.
var ErrAPIKeyRequired = errors.New("API key required")

// AnthropicProvider classifies and decomposes text via the Anthropic Messages API. Per
// the provider-error taxonomy (§7, "the core does not retry"), a failed call is reported
// to the caller directly rather than retried with backoff.
type AnthropicProvider struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicProvider builds a provider from apiKey alone; an empty key returns
// ErrAPIKeyRequired. The SDK's own retries are turned off.
func NewAnthropicProvider(apiKey string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or provide a key explicitly", ErrAPIKeyRequired)
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0)),
		model:  defaultAnthropicModel,
	}, nil
}

func (p *AnthropicProvider) call(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("anthropic call failed: %w", describeErr(err))
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("anthropic call failed: no content blocks in response")
	}
	block := resp.Content[0]
	if block.Type != "text" {
		return "", fmt.Errorf("anthropic call failed: unexpected response block type %q", block.Type)
	}
	return block.Text, nil
}

// describeErr annotates transient-looking failures (timeouts, 429/5xx) without retrying,
// so the caller's log line explains what kind of failure it was looking at.
func describeErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("transient network timeout: %w", err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == 429 || apiErr.StatusCode >= 500) {
		return fmt.Errorf("transient provider error (status %d): %w", apiErr.StatusCode, err)
	}
	return err
}

const decomposePrompt = `Decompose the following text into 1 to 5 self-contained atomic statements, each carrying one complete idea (a cause with its effect and precondition counts as a single atom; do not split them apart). If the text carries no actionable insight, return an empty array.

Output ONLY a JSON array of strings. No prose, no markdown fences.

Text:
%s`

func (p *AnthropicProvider) Decompose(ctx context.Context, text string) ([]string, error) {
	raw, err := p.call(ctx, fmt.Sprintf(decomposePrompt, text))
	if err != nil {
		return nil, err
	}
	var atoms []string
	if err := json.Unmarshal([]byte(stripJSONFence(raw)), &atoms); err != nil {
		return nil, fmt.Errorf("failed to parse decomposition response: %w (response: %s)", err, raw)
	}
	return atoms, nil
}

const classifyPrompt = `Classify the following atomic statement into exactly one of these frames and rewrite it into that frame's template, keeping technical tokens verbatim and the rewrite under ~200 characters:

- causal: "{condition} causes {effect}" (optionally "... because {mechanism}")
- constraint: "{action} requires {precondition}"
- pattern: "When {situation}, prefer {approach} over {alternative} because {reason}"
- equivalence: "{A} is equivalent to {B} in context {C}"
- taxonomy: "{specific} is a type of {general} with property {distinguishing_property}"
- procedure: "To achieve {goal}, do: {step1}, then {step2}, ..."

Output ONLY a JSON object with exactly these keys: "frame", "normalized", "entities", "problems", "resolutions", "contexts". The last four are arrays of strings (empty arrays when nothing applies).

Statement:
%s`

type classifyResponse struct {
	Frame       string   `json:"frame"`
	Normalized  string   `json:"normalized"`
	Entities    []string `json:"entities"`
	Problems    []string `json:"problems"`
	Resolutions []string `json:"resolutions"`
	Contexts    []string `json:"contexts"`
}

func (p *AnthropicProvider) Classify(ctx context.Context, atom string) (Classification, error) {
	raw, err := p.call(ctx, fmt.Sprintf(classifyPrompt, atom))
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

// stripJSONFence removes a ```json ... ``` or bare ``` ... ``` envelope some models wrap
// their output in before it reaches the parser.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
