package imagepipe

import (
	"bytes"
	"strings"
	"testing"
)

func TestArtifactEncoder_DataURIRoundTrip(t *testing.T) {
	src := DecodedImage{
		Bytes:    []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3, 4},
		MIMEType: "image/png",
	}
	encoder := ArtifactEncoder{Mode: ArtifactDataURI}

	artifact := encoder.Encode(src)
	if !strings.HasPrefix(string(artifact), "data:image/png;base64,") {
		t.Fatalf("unexpected artifact prefix: %q", artifact)
	}

	decoded, err := DecodeArtifact(artifact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded.Bytes, src.Bytes) {
		t.Errorf("round trip changed the image bytes")
	}
	if decoded.MIMEType != src.MIMEType {
		t.Errorf("round trip changed the mime type: %q", decoded.MIMEType)
	}
}

func TestArtifactEncoder_MarkdownRoundTrip(t *testing.T) {
	src := DecodedImage{Bytes: []byte{0xff, 0xd8, 0xff, 0xe0, 9, 8, 7}, MIMEType: "image/jpeg"}
	encoder := ArtifactEncoder{Mode: ArtifactMarkdown}

	artifact := encoder.Encode(src)
	if !strings.HasPrefix(string(artifact), "![generated image](data:image/jpeg;base64,") {
		t.Fatalf("unexpected artifact prefix: %q", artifact)
	}
	if !strings.HasSuffix(string(artifact), ")") {
		t.Fatalf("markdown artifact not closed: %q", artifact)
	}

	decoded, err := DecodeArtifact(artifact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded.Bytes, src.Bytes) {
		t.Errorf("round trip changed the image bytes")
	}
}

func TestArtifactEncoder_CustomAltText(t *testing.T) {
	encoder := ArtifactEncoder{Mode: ArtifactMarkdown, AltText: "a fox"}
	artifact := encoder.Encode(DecodedImage{Bytes: []byte{1}, MIMEType: "image/png"})

	if !strings.HasPrefix(string(artifact), "![a fox](") {
		t.Errorf("custom alt text not used: %q", artifact)
	}
}

func TestArtifactEncoder_Deterministic(t *testing.T) {
	src := DecodedImage{Bytes: []byte{5, 6, 7}, MIMEType: "image/gif"}
	encoder := ArtifactEncoder{Mode: ArtifactMarkdown}

	if encoder.Encode(src) != encoder.Encode(src) {
		t.Errorf("encoding is not deterministic for the same image")
	}
}

func TestDisplayArtifact_DataURI(t *testing.T) {
	tests := []struct {
		name     string
		artifact DisplayArtifact
		expected string
		ok       bool
	}{
		{"bare data URI", "data:image/png;base64,AAAA", "data:image/png;base64,AAAA", true},
		{"markdown wrapped", "![x](data:image/png;base64,AAAA)", "data:image/png;base64,AAAA", true},
		{"plain text", "hello world", "", false},
		{"markdown without URI", "![x](https://example.test/a.png)", "", false},
		{"unterminated markdown", "![x](data:image/png;base64,AAAA", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.artifact.DataURI()
			if ok != tt.ok || got != tt.expected {
				t.Errorf("DataURI() = (%q, %v), want (%q, %v)", got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestDecodeArtifact_NotAnArtifact(t *testing.T) {
	if _, err := DecodeArtifact("just some text"); err == nil {
		t.Fatal("expected an error for a non-artifact value")
	}
}
