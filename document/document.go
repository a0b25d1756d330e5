// Package document provides the configuration document model and YAML parsing.
//
// A Document is an immutable named mapping tree loaded from a YAML source.
// Values are scalars (string, int, float64, bool, nil), nested mappings,
// sequences, and strings carrying ${dotted.path} interpolation references.
// Documents support:
//   - Path-based lookup that distinguishes null values from absent keys
//   - Depth-first traversal with the dotted path of every value
//   - Flattening to a dotted-path leaf map for diffing and inspection
//   - Deep copying, so callers can never mutate a document through its views
//
// Composition and interpolation resolution live in the compose and resolve
// packages; both operate on copies and never modify their inputs.
package document

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Document is an immutable configuration tree with a source label used in
// error reports. The zero value is not usable; construct via Load, Parse or
// FromMap.
type Document struct {
	source string
	root   map[string]any
}

// FromMap builds a document from an existing tree. The tree is deep-copied so
// later mutation of the input cannot reach the document.
func FromMap(source string, root map[string]any) *Document {
	if root == nil {
		root = map[string]any{}
	}
	return &Document{source: source, root: copyMap(root)}
}

// Source returns the source label the document was loaded from, typically a
// file path or "<memory>".
func (d *Document) Source() string {
	return d.source
}

// Lookup resolves a path inside the tree. The boolean reports presence, so a
// present-but-null value returns (nil, true) while an absent key returns
// (nil, false). Lookup does not descend into sequences.
func (d *Document) Lookup(path Path) (any, bool) {
	current := any(d.root)
	for _, seg := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := m[seg]
		if !ok {
			return nil, false
		}
		current = next
	}
	return copyValue(current), true
}

// Get is Lookup for a dotted path string. Malformed paths report absence.
func (d *Document) Get(path string) (any, bool) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	return d.Lookup(p)
}

// GetString returns the string value at path, or "" when absent or not a
// string.
func (d *Document) GetString(path string) string {
	v, ok := d.Get(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Keys returns the sorted top-level keys of the document.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.root))
	for k := range d.root {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a deep copy of the whole tree.
func (d *Document) Map() map[string]any {
	return copyMap(d.root)
}

// WalkFunc receives the dotted path and value of every node visited by Walk.
// Returning an error stops the traversal and propagates the error.
type WalkFunc func(path Path, value any) error

// Walk traverses the tree depth-first in sorted key order, calling fn for
// every value including intermediate mappings. Sequence elements are visited
// with their index appended as a path segment.
func (d *Document) Walk(fn WalkFunc) error {
	return walkValue(nil, d.root, fn)
}

func walkValue(path Path, value any, fn WalkFunc) error {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			childPath := path.Child(k)
			if err := fn(childPath, v[k]); err != nil {
				return err
			}
			if err := walkValue(childPath, v[k], fn); err != nil {
				return err
			}
		}
	case []any:
		for i, elem := range v {
			childPath := path.Child(fmt.Sprintf("%d", i))
			if err := fn(childPath, elem); err != nil {
				return err
			}
			if err := walkValue(childPath, elem, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flatten returns a map of dotted leaf paths to values. Mappings contribute
// their leaves; sequences are treated as leaf values and are not expanded.
func (d *Document) Flatten() map[string]any {
	flat := make(map[string]any)
	flattenInto(nil, d.root, flat)
	return flat
}

func flattenInto(path Path, value any, flat map[string]any) {
	m, ok := value.(map[string]any)
	if !ok {
		flat[path.String()] = copyValue(value)
		return
	}
	if len(m) == 0 && len(path) > 0 {
		flat[path.String()] = map[string]any{}
		return
	}
	for k, v := range m {
		flattenInto(path.Child(k), v, flat)
	}
}

// Encode renders the document back to YAML with 2-space indentation.
func (d *Document) Encode() ([]byte, error) {
	return encodeYAML(d.root)
}

// WithValue returns a copy of the document with value set at path,
// creating intermediate mappings as needed. The receiver is unchanged.
// Setting through an existing non-mapping value is an error.
func (d *Document) WithValue(path Path, value any) (*Document, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path")
	}

	root := copyMap(d.root)
	current := root
	for i, seg := range path[:len(path)-1] {
		next, ok := current[seg]
		if !ok {
			child := map[string]any{}
			current[seg] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot set %q: %q is not a mapping", path.String(), Path(path[:i+1]).String())
		}
		current = child
	}
	current[path[len(path)-1]] = copyValue(value)

	return &Document{source: d.source, root: root}, nil
}

// copyMap deep-copies a mapping tree.
func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue deep-copies any tree value. Scalars are returned as-is.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyValue(elem)
		}
		return out
	default:
		return val
	}
}

// CopyValue deep-copies a tree value. It is exported for packages that build
// derived trees (composition, resolution, snapshots).
func CopyValue(v any) any {
	return copyValue(v)
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize YAML encoding: %w", err)
	}
	return buf.Bytes(), nil
}
