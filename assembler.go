package imagepipe

import (
	"fmt"
	"strings"
)

// AssemblerState is the coarse state of a stream assembler.
type AssemblerState string

const (
	// StateIdle means no chunk has arrived yet.
	StateIdle AssemblerState = "idle"

	// StateAccumulating means at least one chunk has arrived and the stream
	// is still open.
	StateAccumulating AssemblerState = "accumulating"

	// StateTerminal means the stream has ended or was cancelled; no further
	// input is accepted.
	StateTerminal AssemblerState = "terminal"
)

// Chunk is one streamed fragment from an upstream generator.
type Chunk struct {
	// Path is the field path the fragment belongs to. Empty for pass-through
	// content that is not part of any image-bearing field.
	Path string

	// Content is the fragment text.
	Content string

	// EndOfField marks the upstream's explicit completion signal for Path
	// (e.g. finish_reason on an OpenAI-compatible stream). Truncation cannot
	// be reliably detected from Base64 content alone, so completion is only
	// ever signalled, never guessed.
	EndOfField bool
}

type fieldBuffer struct {
	content strings.Builder
	ready   bool
}

// StreamAssembler bridges per-chunk arrival to the unit-level contract of
// the pipeline. It buffers streamed content per field path so partial Base64
// sequences are never decoded prematurely, and emits completed artifacts in
// arrival order. Content outside image field paths passes through with no
// added latency.
//
// Each response stream owns its own assembler; there is no shared mutable
// state between instances, so independent requests need no locking.
type StreamAssembler struct {
	pipeline *Pipeline
	state    AssemblerState
	buffers  map[string]*fieldBuffer
	order    []string // field paths in arrival order
}

// NewStreamAssembler creates an assembler in the Idle state.
func NewStreamAssembler(p *Pipeline) *StreamAssembler {
	return &StreamAssembler{
		pipeline: p,
		state:    StateIdle,
		buffers:  make(map[string]*fieldBuffer),
	}
}

// State returns the assembler's current state.
func (a *StreamAssembler) State() AssemblerState {
	return a.state
}

// Push feeds one chunk into the assembler and returns any events now ready
// to forward. Pathless chunks are emitted immediately; path-bound chunks are
// buffered until their field's end-of-field signal, at which point the
// accumulated content is transformed and emitted.
//
// Returns ErrStreamClosed once the assembler is terminal.
func (a *StreamAssembler) Push(chunk Chunk) ([]StreamEvent, error) {
	if a.state == StateTerminal {
		return nil, ErrStreamClosed
	}
	a.state = StateAccumulating

	if chunk.Path == "" {
		if chunk.Content == "" {
			return nil, nil
		}
		content := chunk.Content
		return []StreamEvent{{Content: &content}}, nil
	}

	buf := a.buffers[chunk.Path]
	if buf == nil {
		buf = &fieldBuffer{}
		a.buffers[chunk.Path] = buf
		a.order = append(a.order, chunk.Path)
	}
	buf.content.WriteString(chunk.Content)

	if !chunk.EndOfField {
		return nil, nil
	}

	buf.ready = true
	transformed := a.pipeline.TransformContent(chunk.Path, buf.content.String())
	return []StreamEvent{{Content: &transformed}}, nil
}

// Finish signals upstream response completion and moves the assembler to the
// terminal state. Any field that accumulated content but never received its
// end-of-field signal is discarded: a visible placeholder is emitted in its
// place, flagged with *IncompleteStreamError, rather than corrupt binary
// data.
func (a *StreamAssembler) Finish() ([]StreamEvent, error) {
	if a.state == StateTerminal {
		return nil, ErrStreamClosed
	}
	a.state = StateTerminal

	var events []StreamEvent
	for _, path := range a.order {
		buf := a.buffers[path]
		if buf.ready || buf.content.Len() == 0 {
			continue
		}
		incomplete := &IncompleteStreamError{Path: path, Buffered: buf.content.Len()}
		placeholder := fmt.Sprintf("[image unavailable: stream ended before field '%s' completed]", path)
		events = append(events, StreamEvent{Content: &placeholder, Error: incomplete})
	}

	a.buffers = nil
	a.order = nil
	return events, nil
}

// Cancel discards all buffered content and moves the assembler to the
// terminal state. No further output is produced; no partial or corrupted
// artifact is ever forwarded.
func (a *StreamAssembler) Cancel() {
	a.state = StateTerminal
	a.buffers = nil
	a.order = nil
}
