package imagepipe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

// staticGenerator answers every request with a fixed unit.
type staticGenerator struct {
	unit   json.RawMessage
	chunks []StreamChunk
	last   *GenerationRequest
}

func (g staticGenerator) Name() string { return "static" }

func (g staticGenerator) Generate(ctx context.Context, req *GenerationRequest) (json.RawMessage, error) {
	if g.last != nil {
		*g.last = *req
	}
	return g.unit, nil
}

func (g staticGenerator) Stream(ctx context.Context, req *GenerationRequest) (<-chan StreamChunk, error) {
	if g.last != nil {
		*g.last = *req
	}
	out := make(chan StreamChunk, len(g.chunks))
	for _, sc := range g.chunks {
		out <- sc
	}
	close(out)
	return out, nil
}

func collectEvents(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	for e := range events {
		out = append(out, e)
	}
	return out
}

func TestPipe_Models(t *testing.T) {
	valves := DefaultValves()
	valves.ModelID = "img-model-1"
	p, err := NewPipe(valves, staticGenerator{unit: []byte(`{}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	models := p.Models()
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(models))
	}
	if models[0].ID != "img-model-1" || models[0].Name != "Billed image model: img-model-1" {
		t.Errorf("unexpected listing: %+v", models[0])
	}
}

func TestPipe_Models_EmptyModelHidesPipe(t *testing.T) {
	valves := DefaultValves()
	valves.ModelID = ""
	p, err := NewPipe(valves, staticGenerator{unit: []byte(`{}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Models(); got != nil {
		t.Errorf("expected no models without a configured model, got %v", got)
	}
}

func TestPipe_Run_Blocking(t *testing.T) {
	unit := []byte(fmt.Sprintf(
		`{"model":"img-model-1","choices":[{"index":0,"message":{"role":"assistant","content":"%s"}}],"usage":{"total_tokens":42}}`,
		tinyPNGBase64))

	valves := DefaultValves()
	valves.CostPerImage = 0.1
	p, err := NewPipe(valves, staticGenerator{unit: unit})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := p.Run(context.Background(), &RequestBody{
		Messages: []Message{{Role: "user", Content: "draw a fox"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := collectEvents(t, events)
	if len(got) != 3 {
		t.Fatalf("expected content, usage and cost note, got %d events: %+v", len(got), got)
	}

	if got[0].Content == nil || !strings.HasPrefix(*got[0].Content, "![generated image](data:image/png;base64,") {
		t.Errorf("first event is not the image artifact: %+v", got[0])
	}
	if got[1].Usage == nil || string(got[1].Usage.Raw) != `{"total_tokens":42}` {
		t.Errorf("usage metadata not passed through verbatim: %+v", got[1])
	}
	if got[1].Usage.Model != "img-model-1" {
		t.Errorf("usage model not taken from the response: %+v", got[1].Usage)
	}
	if got[2].Content == nil || !strings.Contains(*got[2].Content, "Generation cost: 0.1000") {
		t.Errorf("cost note missing: %+v", got[2])
	}
}

func TestPipe_Run_NoCostNoteWhenFree(t *testing.T) {
	valves := DefaultValves()
	valves.CostPerImage = 0
	p, err := NewPipe(valves, staticGenerator{unit: []byte(`{"content":"hello world"}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := p.Run(context.Background(), &RequestBody{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := collectEvents(t, events)
	if len(got) != 1 {
		t.Fatalf("expected only the content event, got %+v", got)
	}
	if got[0].Content == nil || *got[0].Content != "hello world" {
		t.Errorf("plain response changed: %+v", got[0])
	}
}

func TestPipe_Run_KeepsOnlyLastUserMessage(t *testing.T) {
	var captured GenerationRequest
	valves := DefaultValves()
	valves.ModelID = "img-model-1"
	p, err := NewPipe(valves, staticGenerator{unit: []byte(`{}`), last: &captured})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := &RequestBody{
		Model: "whatever-the-host-sent",
		Messages: []Message{
			{Role: "system", Content: "be helpful"},
			{Role: "user", Content: "first prompt"},
			{Role: "assistant", Content: "previous answer"},
			{Role: "user", Content: "final prompt"},
		},
		Extra: map[string]json.RawMessage{"temperature": json.RawMessage(`0.5`)},
	}

	events, err := p.Run(context.Background(), body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	collectEvents(t, events)

	if len(captured.Messages) != 1 || captured.Messages[0].Content != "final prompt" {
		t.Errorf("expected only the last user message, got %+v", captured.Messages)
	}
	if captured.Model != "img-model-1" {
		t.Errorf("configured model must replace the host's, got %q", captured.Model)
	}
	if string(captured.Extra["temperature"]) != `0.5` {
		t.Errorf("extra body fields not forwarded: %+v", captured.Extra)
	}
	if captured.RequestID == "" {
		t.Errorf("request ID not assigned")
	}
}

func TestPipe_Run_Streaming(t *testing.T) {
	const path = "choices.0.delta.content"
	half := len(tinyPNGBase64) / 2

	valves := DefaultValves()
	valves.CostPerImage = 0.1
	p, err := NewPipe(valves, staticGenerator{chunks: []StreamChunk{
		{Chunk: Chunk{Path: path, Content: tinyPNGBase64[:half]}},
		{Chunk: Chunk{Path: path, Content: tinyPNGBase64[half:], EndOfField: true}},
		{Done: true, Usage: json.RawMessage(`{"total_tokens":42}`)},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := p.Run(context.Background(), &RequestBody{
		Stream:   true,
		Messages: []Message{{Role: "user", Content: "draw a fox"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := collectEvents(t, events)
	if len(got) != 3 {
		t.Fatalf("expected artifact, usage and cost note, got %+v", got)
	}
	if got[0].Content == nil || !strings.HasPrefix(*got[0].Content, "![generated image](") {
		t.Errorf("artifact not emitted after the final chunk: %+v", got[0])
	}
	if got[1].Usage == nil || string(got[1].Usage.Raw) != `{"total_tokens":42}` {
		t.Errorf("usage metadata not passed through: %+v", got[1])
	}
	if got[2].Content == nil || !strings.Contains(*got[2].Content, "Generation cost") {
		t.Errorf("cost note missing: %+v", got[2])
	}
}

func TestPipe_Run_StreamingCutShort(t *testing.T) {
	p, err := NewPipe(DefaultValves(), staticGenerator{chunks: []StreamChunk{
		{Chunk: Chunk{Path: "choices.0.delta.content", Content: tinyPNGBase64[:20]}},
		// Channel closes without a Done marker.
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, err := p.Run(context.Background(), &RequestBody{Stream: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := collectEvents(t, events)
	if len(got) != 1 {
		t.Fatalf("expected one placeholder event, got %+v", got)
	}
	if !IsIncompleteStream(got[0].Error) {
		t.Errorf("expected an incomplete-stream flag, got %+v", got[0])
	}
	if got[0].Content == nil || strings.Contains(*got[0].Content, tinyPNGBase64[:20]) {
		t.Errorf("partial base64 must never be forwarded: %+v", got[0].Content)
	}
}

func TestPipe_Run_CancelledContext(t *testing.T) {
	p, err := NewPipe(DefaultValves(), staticGenerator{chunks: []StreamChunk{
		{Chunk: Chunk{Path: "choices.0.delta.content", Content: tinyPNGBase64}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, err := p.Run(ctx, &RequestBody{Stream: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for e := range events {
		if e.Content != nil && strings.Contains(*e.Content, tinyPNGBase64) {
			t.Errorf("cancelled stream must not forward buffered payloads")
		}
	}
}

func TestRequestBody_UnmarshalJSON(t *testing.T) {
	data := []byte(`{"model":"m","stream":true,"messages":[{"role":"user","content":"hi"}],"temperature":0.7,"seed":11}`)

	var body RequestBody
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if body.Model != "m" || !body.Stream || len(body.Messages) != 1 {
		t.Errorf("known fields not parsed: %+v", body)
	}
	if string(body.Extra["temperature"]) != "0.7" || string(body.Extra["seed"]) != "11" {
		t.Errorf("extra fields not captured: %+v", body.Extra)
	}
	if _, ok := body.Extra["messages"]; ok {
		t.Errorf("known fields must not leak into Extra")
	}
}

func TestNewPipe_Validation(t *testing.T) {
	if _, err := NewPipe(DefaultValves(), nil); err == nil {
		t.Error("expected an error for a nil upstream")
	}

	bad := DefaultValves()
	bad.APIBaseURL = ""
	if _, err := NewPipe(bad, staticGenerator{unit: []byte(`{}`)}); err == nil {
		t.Error("expected an error for invalid valves")
	}
}
