// Package mockgen is a mock upstream generator for development and tests
// without real API keys. It answers every request with lorem ipsum text and,
// for image models, a tiny embedded PNG payload.
package mockgen

import (
	"context"
	"encoding/json"
	"strings"

	loremgen "github.com/bozaro/golorem"

	imagepipe "github.com/haowjy/meridian-image-pipe-go"
)

// TinyPNGBase64 is a 1x1 transparent PNG, the smallest payload that
// exercises the full decode path.
const TinyPNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

// Provider implements the imagepipe.Generator interface with canned
// responses.
type Provider struct {
	generator *loremgen.Lorem
}

// NewProvider creates a new mock provider.
func NewProvider() *Provider {
	return &Provider{generator: loremgen.New()}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "mockgen"
}

// SupportsModel returns true if the model name starts with "mock-".
// "mock-text" answers with plain text; anything else answers with an image.
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "mock-")
}

// Generate returns a complete OpenAI-shaped response unit.
func (p *Provider) Generate(ctx context.Context, req *imagepipe.GenerationRequest) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	response := map[string]any{
		"id":     "mock-" + req.RequestID,
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": p.content(req.Model),
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     p.promptTokens(req),
			"completion_tokens": 1,
			"total_tokens":      p.promptTokens(req) + 1,
		},
	}
	return json.Marshal(response)
}

// Stream emits the same response split into chunks: a text fragment, then
// the payload in two halves with the end-of-field marker on the second, then
// the completion marker. The split exercises the assembler's buffering.
func (p *Provider) Stream(ctx context.Context, req *imagepipe.GenerationRequest) (<-chan imagepipe.StreamChunk, error) {
	content := p.content(req.Model)
	usage, err := json.Marshal(map[string]any{
		"prompt_tokens":     p.promptTokens(req),
		"completion_tokens": 1,
		"total_tokens":      p.promptTokens(req) + 1,
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan imagepipe.StreamChunk, 10)
	go func() {
		defer close(chunks)

		const path = "choices.0.delta.content"
		half := len(content) / 2
		fragments := []imagepipe.StreamChunk{
			{Chunk: imagepipe.Chunk{Path: path, Content: content[:half]}},
			{Chunk: imagepipe.Chunk{Path: path, Content: content[half:], EndOfField: true}},
			{Done: true, Usage: usage},
		}
		for _, sc := range fragments {
			select {
			case chunks <- sc:
			case <-ctx.Done():
				return
			}
		}
	}()
	return chunks, nil
}

func (p *Provider) content(model string) string {
	if model == "mock-text" {
		return p.generator.Sentence(5, 12)
	}
	return TinyPNGBase64
}

func (p *Provider) promptTokens(req *imagepipe.GenerationRequest) int {
	total := 0
	for _, m := range req.Messages {
		total += len(strings.Fields(m.Content))
	}
	if total == 0 {
		total = 1
	}
	return total
}

var _ imagepipe.Generator = (*Provider)(nil)
