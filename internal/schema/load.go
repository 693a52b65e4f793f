package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/coherence/api"
)

// LoadFile reads and compiles a schema from a JSON or YAML file,
// dispatching on the extension. Validation failures are fatal here —
// a malformed schema is never discovered per record.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON compiles a schema from JSON bytes.
func ParseJSON(data []byte) (*Schema, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("schema root must be an object, got %T", v)}
	}
	return Compile(raw)
}

// ParseYAML compiles a schema from YAML bytes.
func ParseYAML(data []byte) (*Schema, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid yaml: %v", err)}
	}
	raw, ok := normalizeYAML(v).(map[string]any)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("schema root must be a mapping, got %T", v)}
	}
	return Compile(raw)
}

// normalizeYAML rewrites yaml.v3's map[string]any / map[any]any mixtures
// into the plain map[string]any form the compiler expects.
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(api.RawSchema, len(x))
		for k, val := range x {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(api.RawSchema, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}
