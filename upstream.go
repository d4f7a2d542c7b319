package imagepipe

import (
	"context"
	"encoding/json"
)

// Message is a single chat message forwarded to the upstream API.
type Message struct {
	// Role is "user", "assistant" or "system"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// GenerationRequest is the request handed to an upstream generator.
type GenerationRequest struct {
	// RequestID uniquely identifies this request for logging and tracing.
	RequestID string

	// Model is the upstream model name.
	Model string

	// Messages is the conversation slice forwarded upstream. The pipe keeps
	// only the last user message.
	Messages []Message

	// Extra holds every other inbound body field, forwarded to the upstream
	// untouched. Keys "model", "messages" and "stream" are never forwarded
	// from here.
	Extra map[string]json.RawMessage
}

// Generator is the upstream image-generation API, in both blocking and
// streaming form. Implementations live under providers/.
type Generator interface {
	// Generate performs a blocking request and returns the complete raw
	// response unit exactly as the upstream sent it.
	Generate(ctx context.Context, req *GenerationRequest) (json.RawMessage, error)

	// Stream performs a streaming request. The channel emits chunks as they
	// arrive and is closed when the stream ends. A final chunk with Done set
	// marks graceful completion; a close without one means the stream was
	// cut short.
	//
	// Usage:
	//   chunks, err := gen.Stream(ctx, req)
	//   if err != nil { return err }
	//   for chunk := range chunks { ... }
	Stream(ctx context.Context, req *GenerationRequest) (<-chan StreamChunk, error)

	// Name returns the provider name (e.g., "openai", "mockgen")
	Name() string
}

// StreamChunk is one event on a generator's stream: either a content Chunk
// or the terminal completion marker.
type StreamChunk struct {
	// Chunk is the content fragment (ignored when Done is set)
	Chunk Chunk

	// Done marks graceful upstream completion ([DONE] or equivalent)
	Done bool

	// Usage carries the upstream's usage object verbatim, if it sent one.
	// Only set on the Done chunk.
	Usage json.RawMessage

	// Err carries a mid-stream failure; the channel closes after it
	Err error
}
