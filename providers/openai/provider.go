// Package openai implements the upstream generator for OpenAI-compatible
// chat/completions APIs that return generated images as inline Base64
// payloads in the content field. Gemini's OpenAI-compatibility endpoint and
// most relay gateways speak this shape.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	imagepipe "github.com/haowjy/meridian-image-pipe-go"
	"github.com/tidwall/sjson"
)

// Provider implements the imagepipe.Generator interface over an
// OpenAI-compatible HTTP endpoint.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewProvider creates a provider from the pipe's valves.
func NewProvider(valves imagepipe.Valves) (*Provider, error) {
	if valves.APIKey == "" {
		return nil, imagepipe.ErrInvalidAPIKey
	}
	timeout := valves.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Provider{
		apiKey:     valves.APIKey,
		baseURL:    strings.TrimRight(valves.APIBaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// Generate performs a blocking request and returns the raw response body.
// The body is returned exactly as the upstream sent it so the pipeline's
// pass-through guarantees hold from the first byte.
func (p *Provider) Generate(ctx context.Context, req *imagepipe.GenerationRequest) (json.RawMessage, error) {
	httpReq, err := p.buildHTTPRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.handleErrorResponse(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// buildHTTPRequest marshals the upstream request. Pass-through body fields
// are spliced in after the known fields so they reach the upstream intact.
func (p *Provider) buildHTTPRequest(ctx context.Context, req *imagepipe.GenerationRequest, stream bool) (*http.Request, error) {
	payload := ChatCompletionRequest{
		Model:  req.Model,
		Stream: stream,
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, ChatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	for key, value := range req.Extra {
		if key == "model" || key == "messages" || key == "stream" {
			continue
		}
		body, err = sjson.SetRawBytes(body, key, value)
		if err != nil {
			return nil, fmt.Errorf("failed to forward body field '%s': %w", key, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-Id", req.RequestID)
	}

	return httpReq, nil
}

// handleErrorResponse maps upstream error responses to library errors.
// Failures are propagated unchanged to the caller, never retried here.
func (p *Provider) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Code    any    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch resp.StatusCode {
	case 401, 403:
		return &imagepipe.ProviderError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Message:    message,
			Retryable:  false,
			Err:        imagepipe.ErrInvalidAPIKey,
		}
	case 429:
		return &imagepipe.ProviderError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Message:    message,
			Retryable:  true,
			Err:        imagepipe.ErrRateLimited,
		}
	default:
		return &imagepipe.ProviderError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Message:    message,
			Retryable:  resp.StatusCode >= 500,
			Err:        imagepipe.ErrUpstreamUnavailable,
		}
	}
}
