package imagepipe

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ApplySubstitutions produces a new response unit identical to the original
// except the image-bearing fields are replaced by their display artifacts.
// Everything not targeted by a substitution — cost and usage metadata
// included — is copied byte-for-byte in its original order and nesting:
// sjson splices the replacement value into the document without
// re-serializing the rest.
//
// Fails with *SchemaMismatchError if a target path does not exist in the
// original unit; that means the scan and merge steps disagree on structure,
// which is an internal consistency fault, not a data error.
func ApplySubstitutions(unit []byte, subs []Substitution) ([]byte, error) {
	out := unit
	for _, sub := range subs {
		if !gjson.GetBytes(out, sub.Path).Exists() {
			return nil, &SchemaMismatchError{Path: sub.Path}
		}
		var err error
		out, err = sjson.SetBytes(out, sub.Path, string(sub.Artifact))
		if err != nil {
			return nil, &SchemaMismatchError{Path: sub.Path, Err: err}
		}
	}
	return out, nil
}
