package imagepipe

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// minCandidateLen is the minimum length of an untagged content string before
// it is considered as a possible Base64 image payload. Encoded image data is
// always far longer than this; short Base64-looking words are not.
const minCandidateLen = 64

// ScanUnit locates Base64 image candidates within a raw JSON response unit.
// It recognizes the image-bearing fields of the common generation response
// shapes (OpenAI chat/completions and images, Gemini generateContent, bare
// content objects) without mutating the unit. Candidates are returned in
// field order; the result is empty when the unit carries no image data.
//
// ScanUnit is a pure function: it never misidentifies ordinary text as an
// image unless the value satisfies the minimum length and alphabet
// constraints of encoded binary data, or the schema explicitly tags the
// field as an image.
func ScanUnit(unit []byte) []ImageCandidate {
	if !gjson.ValidBytes(unit) {
		return nil
	}

	root := gjson.ParseBytes(unit)
	var out []ImageCandidate

	// OpenAI images API: data.N.b64_json
	if data := root.Get("data"); data.IsArray() {
		for i, item := range data.Array() {
			b64 := item.Get("b64_json")
			if b64.Type != gjson.String || b64.Str == "" {
				continue
			}
			out = append(out, ImageCandidate{
				Raw:    b64.Str,
				Path:   fmt.Sprintf("data.%d.b64_json", i),
				Tagged: true,
			})
		}
	}

	// Gemini generateContent: candidates.N.content.parts.N.inlineData.data
	// (the REST API also spells the key inline_data / mime_type)
	if cands := root.Get("candidates"); cands.IsArray() {
		for i, cand := range cands.Array() {
			for j, part := range cand.Get("content.parts").Array() {
				for _, key := range []string{"inlineData", "inline_data"} {
					inline := part.Get(key)
					if !inline.Exists() {
						continue
					}
					raw := inline.Get("data")
					if raw.Type != gjson.String || raw.Str == "" {
						continue
					}
					mime := inline.Get("mimeType").Str
					if mime == "" {
						mime = inline.Get("mime_type").Str
					}
					out = append(out, ImageCandidate{
						Raw:      raw.Str,
						Path:     fmt.Sprintf("candidates.%d.content.parts.%d.%s.data", i, j, key),
						MIMEType: mime,
						Tagged:   true,
					})
				}
			}
		}
	}

	// OpenAI-compatible chat/completions: content strings that are either a
	// bare Base64 payload or a data URI.
	if choices := root.Get("choices"); choices.IsArray() {
		for i, choice := range choices.Array() {
			for _, sub := range []string{"message.content", "delta.content"} {
				content := choice.Get(sub)
				if content.Type != gjson.String {
					continue
				}
				if cand, ok := contentCandidate(content.Str); ok {
					cand.Path = fmt.Sprintf("choices.%d.%s", i, sub)
					out = append(out, cand)
				}
			}
		}
	}

	// Bare shape: {"content": "..."}
	if content := root.Get("content"); content.Type == gjson.String {
		if cand, ok := contentCandidate(content.Str); ok {
			cand.Path = "content"
			out = append(out, cand)
		}
	}

	return out
}

// contentCandidate decides whether a free-form content string carries an
// embedded image payload. Data URIs are explicit; anything else must look
// like a full Base64 value (length and alphabet) to qualify.
func contentCandidate(s string) (ImageCandidate, bool) {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "data:") {
		mime, payload, ok := splitDataURI(trimmed)
		if !ok || !strings.HasPrefix(mime, "image/") {
			return ImageCandidate{}, false
		}
		return ImageCandidate{Raw: payload, MIMEType: mime, Tagged: true}, true
	}

	if len(trimmed) < minCandidateLen {
		return ImageCandidate{}, false
	}
	if !isBase64Alphabet(trimmed) {
		return ImageCandidate{}, false
	}

	return ImageCandidate{Raw: trimmed}, true
}

// splitDataURI splits "data:<mime>;base64,<payload>" into its parts.
func splitDataURI(s string) (mime, payload string, ok bool) {
	rest := strings.TrimPrefix(s, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", "", false
	}
	meta, payload := rest[:comma], rest[comma+1:]
	if !strings.HasSuffix(meta, ";base64") || payload == "" {
		return "", "", false
	}
	return strings.TrimSuffix(meta, ";base64"), payload, true
}

// isBase64Alphabet reports whether s consists solely of standard Base64
// symbols, with '=' padding only in the final two positions.
func isBase64Alphabet(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+' || c == '/':
		case c == '=':
			if i < len(s)-2 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
