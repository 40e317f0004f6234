package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/queryloom/internal/ir"
)

// Fingerprint computes a stable hash of the schema's structural shape.
// Used as a cache/versioning key: two schemas with identical tables and
// relationships share a fingerprint regardless of extraction time.
//
// The hash is SHA-256 over the canonical JSON of {tables, relationships}
// (database name and version excluded), truncated to 16 hex chars.
func Fingerprint(s *Schema) (string, error) {
	shape := map[string]any{
		"tables":        toPlain(s.Tables),
		"relationships": toPlain(s.Relationships),
	}

	canonical, err := ir.MarshalCanonical(shape)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16], nil
}

// toPlain round-trips a value through encoding/json to get the
// map/slice/scalar shape MarshalCanonical operates on.
func toPlain(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{}
	}
	return out
}
