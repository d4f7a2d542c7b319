package imagepipe

// ImageCandidate is a located field value suspected to be Base64-encoded
// image data. Candidates are produced by scanning a response unit and carry
// enough context to substitute a display artifact back into the unit.
type ImageCandidate struct {
	// Raw is the encoded payload with any data-URI prefix stripped.
	Raw string

	// Path is the gjson/sjson path of the source field within the unit.
	Path string

	// MIMEType is the declared media type, if the upstream schema carried one
	// (data-URI header or an inline-data mime field). Empty when absent.
	MIMEType string

	// Tagged is true when the upstream schema explicitly marks the field as
	// image data (e.g. b64_json, inlineData.data, a data URI). Tagged
	// candidates fall back to a generic image type when byte-signature
	// sniffing fails; untagged ones must carry a recognizable signature.
	Tagged bool
}

// DecodedImage is the raw decoded byte sequence plus its resolved MIME type.
// Decoding is lossless and deterministic for a given encoded string.
type DecodedImage struct {
	Bytes    []byte
	MIMEType string
}

// DisplayArtifact is the value substituted into the response in place of the
// original Base64 field: either a self-contained data URI or embedded image
// markup wrapping one. Rendering it produces the same visual image as the
// decoded bytes.
type DisplayArtifact string

// Substitution pairs a field path with the display artifact replacing it.
type Substitution struct {
	Path     string
	Artifact DisplayArtifact
}
