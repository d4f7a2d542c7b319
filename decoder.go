package imagepipe

import (
	"encoding/base64"
)

// DefaultMIMEType is the fallback for schema-tagged candidates whose bytes
// match no known signature. Generation APIs overwhelmingly return PNG, and
// front-end renderers sniff the real format from the bytes anyway.
const DefaultMIMEType = "image/png"

// Decoder validates and decodes image candidates. Decoding is deterministic
// and side-effect-free; it never touches the network or disk.
type Decoder struct {
	table *SignatureTable
}

// NewDecoder creates a decoder using the given signature table, or the
// embedded defaults when table is nil.
func NewDecoder(table *SignatureTable) *Decoder {
	if table == nil {
		table = DefaultSignatureTable()
	}
	return &Decoder{table: table}
}

// Decode turns a candidate into a DecodedImage or fails with a *DecodeError
// when the payload is not valid Base64 or (for untagged candidates) decodes
// to bytes with no recognizable image signature.
//
// MIME resolution order: explicit annotation on the candidate, then
// byte-signature sniffing, then DefaultMIMEType for schema-tagged fields.
func (d *Decoder) Decode(c ImageCandidate) (DecodedImage, error) {
	raw, err := decodeBase64(c.Raw)
	if err != nil {
		return DecodedImage{}, &DecodeError{Path: c.Path, Reason: "invalid base64 payload", Err: err}
	}

	mime := c.MIMEType
	if mime == "" {
		mime = d.table.Sniff(raw)
	}
	if mime == "" {
		if !c.Tagged {
			return DecodedImage{}, &DecodeError{Path: c.Path, Reason: "no recognizable image signature", Err: ErrNotImage}
		}
		mime = DefaultMIMEType
	}

	return DecodedImage{Bytes: raw, MIMEType: mime}, nil
}

// decodeBase64 accepts standard Base64 with or without padding.
func decodeBase64(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return raw, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
