package imagepipe

import "errors"

// Pipeline composes the four pure stages: scan, decode, encode, merge.
// One pipeline may serve many responses concurrently; it holds no per-request
// state.
type Pipeline struct {
	decoder *Decoder
	encoder ArtifactEncoder
}

// NewPipeline creates a pipeline. A nil table selects the embedded signature
// defaults.
func NewPipeline(table *SignatureTable, encoder ArtifactEncoder) *Pipeline {
	return &Pipeline{decoder: NewDecoder(table), encoder: encoder}
}

// Transform rewrites the image-bearing fields of a complete response unit
// into display artifacts, leaving every other byte of the unit untouched.
//
// A unit with no image candidates is returned unchanged. A candidate that
// fails to decode is left as its original text — content is recovered, never
// dropped. Only a scan/merge structure disagreement is surfaced as an error.
func (p *Pipeline) Transform(unit []byte) ([]byte, error) {
	candidates := ScanUnit(unit)
	if len(candidates) == 0 {
		return unit, nil
	}

	var subs []Substitution
	for _, c := range candidates {
		img, err := p.decoder.Decode(c)
		if err != nil {
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				// Not image data after all: forward the original text.
				continue
			}
			return nil, err
		}
		subs = append(subs, Substitution{Path: c.Path, Artifact: p.encoder.Encode(img)})
	}

	if len(subs) == 0 {
		return unit, nil
	}
	return ApplySubstitutions(unit, subs)
}

// TransformContent transforms a bare content string outside any JSON
// envelope. Used by the stream assembler once a field's accumulated content
// is complete. Content that is not a decodable image payload is returned
// unchanged.
func (p *Pipeline) TransformContent(path, content string) string {
	cand, ok := contentCandidate(content)
	if !ok {
		return content
	}
	cand.Path = path

	img, err := p.decoder.Decode(cand)
	if err != nil {
		return content
	}
	return string(p.encoder.Encode(img))
}
