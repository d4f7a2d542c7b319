package imagepipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Pipe is the host-facing adapter: it forwards a chat request to an upstream
// image-generation API and transforms the response so embedded Base64 image
// payloads become renderable artifacts, with all other fields passed through
// untouched.
type Pipe struct {
	valves   Valves
	upstream Generator
	pipeline *Pipeline
}

// NewPipe creates a pipe for the given upstream. Artifacts are emitted as
// markdown image markup so chat renderers display them inline.
func NewPipe(valves Valves, upstream Generator) (*Pipe, error) {
	if err := valves.Validate(); err != nil {
		return nil, err
	}
	if upstream == nil {
		return nil, errors.New("imagepipe: upstream generator is required")
	}
	return &Pipe{
		valves:   valves,
		upstream: upstream,
		pipeline: NewPipeline(nil, ArtifactEncoder{Mode: ArtifactMarkdown}),
	}, nil
}

// ID returns the fixed identifier the host matches against.
func (p *Pipe) ID() string {
	return PipeID
}

// Type returns the host-facing pipe type.
func (p *Pipe) Type() string {
	return PipeType
}

// Valves returns the pipe's configuration.
func (p *Pipe) Valves() Valves {
	return p.valves
}

// ModelListing is one entry in the host's model selector.
type ModelListing struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Models returns the selectable models. Empty when no model is configured,
// which hides the pipe from the selector.
func (p *Pipe) Models() []ModelListing {
	if p.valves.ModelID == "" {
		return nil
	}
	return []ModelListing{{
		ID:   p.valves.ModelID,
		Name: "Billed image model: " + p.valves.ModelID,
	}}
}

// RequestBody is the inbound chat request from the host. Fields other than
// model, messages and stream are captured in Extra and forwarded upstream
// untouched.
type RequestBody struct {
	Model    string
	Messages []Message
	Stream   bool
	Extra    map[string]json.RawMessage
}

// UnmarshalJSON splits the body into the known fields and the pass-through
// remainder.
func (b *RequestBody) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["model"]; ok {
		if err := json.Unmarshal(raw, &b.Model); err != nil {
			return fmt.Errorf("invalid 'model' field: %w", err)
		}
		delete(fields, "model")
	}
	if raw, ok := fields["messages"]; ok {
		if err := json.Unmarshal(raw, &b.Messages); err != nil {
			return fmt.Errorf("invalid 'messages' field: %w", err)
		}
		delete(fields, "messages")
	}
	if raw, ok := fields["stream"]; ok {
		if err := json.Unmarshal(raw, &b.Stream); err != nil {
			return fmt.Errorf("invalid 'stream' field: %w", err)
		}
		delete(fields, "stream")
	}
	b.Extra = fields
	return nil
}

// buildRequest shapes the upstream request: only the last user message is
// forwarded, the configured model replaces whatever the host sent, and every
// other body field passes through.
func (p *Pipe) buildRequest(body *RequestBody) *GenerationRequest {
	var messages []Message
	for i := len(body.Messages) - 1; i >= 0; i-- {
		if body.Messages[i].Role == "user" {
			messages = []Message{body.Messages[i]}
			break
		}
	}

	return &GenerationRequest{
		RequestID: uuid.NewString(),
		Model:     p.valves.ModelID,
		Messages:  messages,
		Extra:     body.Extra,
	}
}

// Run executes one generation request end-to-end. The returned channel emits
// transformed content, then usage metadata and the cost note on success, and
// is closed when the response completes. Errors are emitted on the channel;
// upstream failures propagate unchanged, without retry.
func (p *Pipe) Run(ctx context.Context, body *RequestBody) (<-chan StreamEvent, error) {
	if body == nil {
		return nil, errors.New("imagepipe: request body is required")
	}
	req := p.buildRequest(body)

	events := make(chan StreamEvent, 16)
	if body.Stream {
		go p.runStreaming(ctx, req, events)
	} else {
		go p.runBlocking(ctx, req, events)
	}
	return events, nil
}

func (p *Pipe) runBlocking(ctx context.Context, req *GenerationRequest, events chan<- StreamEvent) {
	defer close(events)

	raw, err := p.upstream.Generate(ctx, req)
	if err != nil {
		events <- StreamEvent{Error: err}
		return
	}

	transformed, err := p.pipeline.Transform(raw)
	if err != nil {
		log.Printf("[imagepipe] request %s: transform failed: %v", req.RequestID, err)
		events <- StreamEvent{Error: err}
		return
	}

	content := displayContent(transformed)
	events <- StreamEvent{Content: &content}

	p.emitTrailer(transformed, events)
}

func (p *Pipe) runStreaming(ctx context.Context, req *GenerationRequest, events chan<- StreamEvent) {
	defer close(events)

	chunks, err := p.upstream.Stream(ctx, req)
	if err != nil {
		events <- StreamEvent{Error: err}
		return
	}

	asm := NewStreamAssembler(p.pipeline)
	emit := func(evts []StreamEvent) bool {
		for _, e := range evts {
			select {
			case events <- e:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			// Caller aborted: discard buffers, forward nothing further.
			asm.Cancel()
			return
		case sc, ok := <-chunks:
			if !ok {
				// Stream cut short without a completion marker.
				if evts, err := asm.Finish(); err == nil {
					emit(evts)
				}
				return
			}
			if sc.Err != nil {
				asm.Cancel()
				events <- StreamEvent{Error: sc.Err}
				return
			}
			if sc.Done {
				evts, err := asm.Finish()
				if err != nil {
					return
				}
				if !emit(evts) {
					return
				}
				if len(sc.Usage) > 0 {
					if !emit([]StreamEvent{{Usage: &UsageMetadata{Model: req.Model, Raw: sc.Usage}}}) {
						return
					}
				}
				if note, ok := p.costNote(); ok {
					emit([]StreamEvent{{Content: &note}})
				}
				return
			}

			evts, err := asm.Push(sc.Chunk)
			if err != nil {
				events <- StreamEvent{Error: err}
				return
			}
			if !emit(evts) {
				return
			}
		}
	}
}

// emitTrailer forwards the usage object verbatim and the cost note for a
// completed blocking response.
func (p *Pipe) emitTrailer(transformed []byte, events chan<- StreamEvent) {
	model := gjson.GetBytes(transformed, "model").Str
	if model == "" {
		model = p.valves.ModelID
	}
	if usage := gjson.GetBytes(transformed, "usage"); usage.Exists() {
		events <- StreamEvent{Usage: &UsageMetadata{Model: model, Raw: json.RawMessage(usage.Raw)}}
	}
	if note, ok := p.costNote(); ok {
		events <- StreamEvent{Content: &note}
	}
}

// costNote is the billing line shown under the image, if billing is
// configured.
func (p *Pipe) costNote() (string, bool) {
	if p.valves.CostPerImage <= 0 {
		return "", false
	}
	return fmt.Sprintf("\n\nGeneration cost: %.4f", p.valves.CostPerImage), true
}

// displayContent extracts the front-end-visible content from a transformed
// response unit, covering the response shapes ScanUnit understands.
func displayContent(unit []byte) string {
	root := gjson.ParseBytes(unit)

	if content := root.Get("choices.0.message.content"); content.Type == gjson.String {
		return content.Str
	}

	if data := root.Get("data"); data.IsArray() {
		var parts []string
		for _, item := range data.Array() {
			if b64 := item.Get("b64_json"); b64.Type == gjson.String && b64.Str != "" {
				parts = append(parts, b64.Str)
			} else if url := item.Get("url"); url.Type == gjson.String && url.Str != "" {
				parts = append(parts, url.Str)
			}
		}
		if len(parts) > 0 {
			return joinParts(parts)
		}
	}

	if parts := root.Get("candidates.0.content.parts"); parts.IsArray() {
		var out []string
		for _, part := range parts.Array() {
			if text := part.Get("text"); text.Type == gjson.String && text.Str != "" {
				out = append(out, text.Str)
				continue
			}
			for _, key := range []string{"inlineData.data", "inline_data.data"} {
				if data := part.Get(key); data.Type == gjson.String && data.Str != "" {
					out = append(out, data.Str)
					break
				}
			}
		}
		if len(out) > 0 {
			return joinParts(out)
		}
	}

	if content := root.Get("content"); content.Type == gjson.String {
		return content.Str
	}

	return string(unit)
}

func joinParts(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n\n" + p
	}
	return out
}
