package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	imagepipe "github.com/haowjy/meridian-image-pipe-go"
)

// Base64 image deltas can dwarf ordinary text tokens; size the SSE line
// buffer accordingly.
const (
	sseInitialBufferSize = 64 * 1024
	sseMaxLineSize       = 16 * 1024 * 1024
)

// Stream performs a streaming request and converts the upstream SSE events
// into imagepipe chunks keyed by field path. finish_reason is the explicit
// end-of-field signal; [DONE] marks graceful completion.
func (p *Provider) Stream(ctx context.Context, req *imagepipe.GenerationRequest) (<-chan imagepipe.StreamChunk, error) {
	httpReq, err := p.buildHTTPRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai HTTP request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.handleErrorResponse(resp)
	}

	chunks := make(chan imagepipe.StreamChunk, 10) // Buffered to prevent blocking

	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		if err := p.streamChunks(ctx, resp.Body, chunks); err != nil {
			chunks <- imagepipe.StreamChunk{Err: err}
		}
	}()

	return chunks, nil
}

// streamChunks reads SSE lines and emits content chunks.
func (p *Provider) streamChunks(ctx context.Context, body io.ReadCloser, chunks chan<- imagepipe.StreamChunk) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, sseInitialBufferSize), sseMaxLineSize)

	var usage json.RawMessage
	done := false

	send := func(sc imagepipe.StreamChunk) bool {
		select {
		case chunks <- sc:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			done = true
			send(imagepipe.StreamChunk{Done: true, Usage: usage})
			break
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Ignore unparseable lines (keep-alives and the like)
			continue
		}

		if len(chunk.Usage) > 0 {
			usage = chunk.Usage
		}

		if len(chunk.Choices) == 0 {
			// A choice-less event is either a usage-only chunk or a
			// mid-stream structured error.
			var errResp struct {
				Error struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			if json.Unmarshal([]byte(data), &errResp) == nil && errResp.Error.Message != "" {
				return fmt.Errorf("openai streaming error: %s", errResp.Error.Message)
			}
			continue
		}

		for _, choice := range chunk.Choices {
			path := fmt.Sprintf("choices.%d.delta.content", choice.Index)

			if choice.Delta.Content != nil && *choice.Delta.Content != "" {
				if !send(imagepipe.StreamChunk{Chunk: imagepipe.Chunk{
					Path:    path,
					Content: *choice.Delta.Content,
				}}) {
					return nil
				}
			}

			if choice.FinishReason != nil && *choice.FinishReason != "" {
				if !send(imagepipe.StreamChunk{Chunk: imagepipe.Chunk{
					Path:       path,
					EndOfField: true,
				}}) {
					return nil
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}
	if !done {
		log.Printf("[openai] stream ended without [DONE] marker")
	}
	return nil
}
