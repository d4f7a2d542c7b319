package imagepipe

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ArtifactMode selects the display encoding for decoded images. The mode is
// a fixed configuration decision made at construction, never data-dependent,
// so the output shape is predictable.
type ArtifactMode string

const (
	// ArtifactDataURI emits a self-contained data URI. Used when the front
	// end has no external storage: no data loss, no extra round trip.
	ArtifactDataURI ArtifactMode = "data_uri"

	// ArtifactMarkdown wraps the data URI in markdown image markup so chat
	// renderers treat it as an image rather than literal text.
	ArtifactMarkdown ArtifactMode = "markdown"
)

// defaultAltText is the markdown alt text when none is configured.
const defaultAltText = "generated image"

// ArtifactEncoder converts decoded images into front-end-renderable values.
// The zero value emits bare data URIs.
type ArtifactEncoder struct {
	Mode    ArtifactMode
	AltText string // markdown alt text; defaults to "generated image"
}

// Encode produces the display artifact for a decoded image. Pure function:
// the same image always yields the same artifact.
func (e ArtifactEncoder) Encode(img DecodedImage) DisplayArtifact {
	uri := "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Bytes)
	if e.Mode != ArtifactMarkdown {
		return DisplayArtifact(uri)
	}
	alt := e.AltText
	if alt == "" {
		alt = defaultAltText
	}
	return DisplayArtifact(fmt.Sprintf("![%s](%s)", alt, uri))
}

// DataURI extracts the data URI from an artifact, unwrapping markdown image
// markup when present. Returns false if the artifact holds no data URI.
func (a DisplayArtifact) DataURI() (string, bool) {
	s := string(a)
	if strings.HasPrefix(s, "![") {
		open := strings.Index(s, "](")
		if open < 0 || !strings.HasSuffix(s, ")") {
			return "", false
		}
		s = s[open+2 : len(s)-1]
	}
	if !strings.HasPrefix(s, "data:") {
		return "", false
	}
	return s, true
}

// DecodeArtifact decodes an artifact back into image bytes and MIME type.
// Round-trip guarantee: the bytes are identical to the DecodedImage the
// artifact was encoded from.
func DecodeArtifact(a DisplayArtifact) (DecodedImage, error) {
	uri, ok := a.DataURI()
	if !ok {
		return DecodedImage{}, &DecodeError{Reason: "artifact holds no data URI", Err: ErrNotImage}
	}
	mime, payload, ok := splitDataURI(uri)
	if !ok {
		return DecodedImage{}, &DecodeError{Reason: "malformed data URI", Err: ErrNotImage}
	}
	raw, err := decodeBase64(payload)
	if err != nil {
		return DecodedImage{}, &DecodeError{Reason: "invalid base64 payload", Err: err}
	}
	return DecodedImage{Bytes: raw, MIMEType: mime}, nil
}
