package compose

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temporalab/modelconf/document"
)

// Override is a single key=value assignment into a document tree. The value
// is already YAML-decoded, so numerals, booleans, Null and flow sequences
// keep their types.
type Override struct {
	Path  document.Path
	Value any
}

// String returns the override in its key=value source form.
func (o Override) String() string {
	data, err := yaml.Marshal(o.Value)
	if err != nil {
		return fmt.Sprintf("%s=%v", o.Path.String(), o.Value)
	}
	return fmt.Sprintf("%s=%s", o.Path.String(), strings.TrimSuffix(string(data), "\n"))
}

// ParseOverride parses a "dotted.path=value" assignment. The value side is
// decoded as a YAML scalar or flow value: "epochs=40" is an int, "lr=1e-3"
// a float, "scaling=true" a bool, "ckpt=Null" null, "lags=[1,24]" a
// sequence. An empty value decodes to null.
func ParseOverride(s string) (Override, error) {
	key, rawValue, found := strings.Cut(s, "=")
	if !found {
		return Override{}, fmt.Errorf("invalid override %q: expected key=value", s)
	}

	path, err := document.ParsePath(strings.TrimSpace(key))
	if err != nil {
		return Override{}, fmt.Errorf("invalid override %q: %w", s, err)
	}

	var value any
	if err := yaml.Unmarshal([]byte(rawValue), &value); err != nil {
		return Override{}, fmt.Errorf("invalid override value %q: %w", rawValue, err)
	}

	return Override{Path: path, Value: value}, nil
}

// ParseOverrides parses a list of key=value assignments, preserving order.
func ParseOverrides(specs []string) ([]Override, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	overrides := make([]Override, 0, len(specs))
	for _, spec := range specs {
		o, err := ParseOverride(spec)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, nil
}

// Apply sets each override into the document in order, replacing whatever
// value is at the path. Ad-hoc overrides are deliberate, so they replace
// rather than merge and are exempt from conflict checking.
func Apply(doc *document.Document, overrides ...Override) (*document.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	result := doc
	for _, o := range overrides {
		updated, err := result.WithValue(o.Path, o.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to apply override %q: %w", o.String(), err)
		}
		result = updated
	}
	return result, nil
}
