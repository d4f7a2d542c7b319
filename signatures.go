package imagepipe

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/signatures/default.yaml
var defaultSignaturesYAML []byte

// MIME-type inference from content is inherently heuristic, so the
// byte-signature table is an injectable, extensible lookup rather than a
// hardcoded chain: new formats can be added via YAML or Register() without
// touching decode logic.

// SignatureConfig is the YAML shape of a signature table.
type SignatureConfig struct {
	Version     string            `yaml:"version"`      // Semantic version (e.g., "1.0.0")
	LastUpdated string            `yaml:"last_updated"` // ISO 8601 date
	Formats     []FormatSignature `yaml:"formats"`
}

// FormatSignature describes the magic bytes of one image format.
type FormatSignature struct {
	Name     string           `yaml:"name"`
	MIMEType string           `yaml:"mime_type"`
	Prefix   string           `yaml:"prefix"`         // hex-encoded leading bytes
	Also     *OffsetSignature `yaml:"also,omitempty"` // secondary match at a fixed offset
}

// OffsetSignature is a secondary byte match at a fixed offset, used by
// container formats (e.g. WEBP inside RIFF) whose leading bytes are shared.
type OffsetSignature struct {
	Offset int    `yaml:"offset"`
	Hex    string `yaml:"hex"`
}

type compiledSignature struct {
	mimeType   string
	prefix     []byte
	alsoOffset int
	also       []byte
}

// SignatureTable resolves decoded bytes to a MIME type by magic-byte lookup.
// Safe for concurrent use.
type SignatureTable struct {
	mu         sync.RWMutex
	signatures []compiledSignature
}

// NewSignatureTable compiles a signature config into a lookup table.
func NewSignatureTable(cfg *SignatureConfig) (*SignatureTable, error) {
	t := &SignatureTable{}
	for _, f := range cfg.Formats {
		prefix, err := hex.DecodeString(f.Prefix)
		if err != nil || len(prefix) == 0 {
			return nil, fmt.Errorf("signature '%s': invalid prefix hex %q: %w", f.Name, f.Prefix, err)
		}
		sig := compiledSignature{mimeType: f.MIMEType, prefix: prefix}
		if f.Also != nil {
			also, err := hex.DecodeString(f.Also.Hex)
			if err != nil || len(also) == 0 {
				return nil, fmt.Errorf("signature '%s': invalid secondary hex %q: %w", f.Name, f.Also.Hex, err)
			}
			sig.alsoOffset = f.Also.Offset
			sig.also = also
		}
		t.signatures = append(t.signatures, sig)
	}
	return t, nil
}

// LoadSignatureTableFromFile loads a custom signature table from a YAML file,
// overriding the embedded defaults.
func LoadSignatureTableFromFile(path string) (*SignatureTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature config: %w", err)
	}
	var cfg SignatureConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse signature config: %w", err)
	}
	return NewSignatureTable(&cfg)
}

var (
	defaultTable     *SignatureTable
	defaultTableOnce sync.Once
)

// DefaultSignatureTable returns the table built from the embedded defaults
// (singleton). The embedded config is validated at build time by tests, so a
// parse failure here is a programming error.
func DefaultSignatureTable() *SignatureTable {
	defaultTableOnce.Do(func() {
		var cfg SignatureConfig
		if err := yaml.Unmarshal(defaultSignaturesYAML, &cfg); err != nil {
			panic(fmt.Sprintf("imagepipe: embedded signature config is invalid: %v", err))
		}
		t, err := NewSignatureTable(&cfg)
		if err != nil {
			panic(fmt.Sprintf("imagepipe: embedded signature config is invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Register adds a format to the table programmatically. Later registrations
// are checked after the existing entries.
func (t *SignatureTable) Register(mimeType string, prefix []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signatures = append(t.signatures, compiledSignature{
		mimeType: mimeType,
		prefix:   append([]byte(nil), prefix...),
	})
}

// Sniff returns the MIME type matching the leading bytes of data, or an
// empty string when no known signature matches.
func (t *SignatureTable) Sniff(data []byte) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, sig := range t.signatures {
		if !bytes.HasPrefix(data, sig.prefix) {
			continue
		}
		if sig.also != nil {
			end := sig.alsoOffset + len(sig.also)
			if len(data) < end || !bytes.Equal(data[sig.alsoOffset:end], sig.also) {
				continue
			}
		}
		return sig.mimeType
	}
	return ""
}
