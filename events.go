package imagepipe

import "encoding/json"

// StreamEvent represents a single event emitted to the front end.
// Each event carries either content, usage metadata, or an error.
type StreamEvent struct {
	// Content is transformed content ready to forward (nil if usage/error)
	Content *string

	// Usage contains pass-through usage/cost metadata, sent once when the
	// response completes (nil until then)
	Usage *UsageMetadata

	// Error contains any error that occurred while processing (nil if successful)
	Error error
}

// UsageMetadata carries the upstream's usage/cost fields. The Raw bytes are
// copied by identity — never read, reinterpreted, or reordered — so an
// external cost overlay sees exactly what the upstream sent.
type UsageMetadata struct {
	// Model is the model that produced the response
	Model string

	// Raw is the upstream usage object, byte-identical to the input
	Raw json.RawMessage
}
