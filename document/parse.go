package document

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseError reports an unreadable or malformed configuration source.
// Line is 1-based and zero when the YAML layer could not attribute one.
type ParseError struct {
	Source string
	Line   int
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErrorf(source string, line int, format string, args ...any) *ParseError {
	return &ParseError{Source: source, Line: line, Err: fmt.Errorf(format, args...)}
}

// Load reads and parses a YAML configuration document from a file.
// Unreadable files and malformed content both surface as *ParseError; no
// partial document is ever returned.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	return Parse(data, path)
}

// LoadReader parses a document from a reader, labeling errors with source.
func LoadReader(r io.Reader, source string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	return Parse(data, source)
}

// Parse parses YAML bytes into a document. The root must be a mapping with
// string keys; an empty input parses to an empty document. Scalars follow the
// YAML core schema, so Null, null and ~ are null, and unquoted numerals keep
// their numeric types.
func Parse(data []byte, source string) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}

	// An empty file decodes to a zero node.
	if node.Kind == 0 || len(node.Content) == 0 {
		return &Document{source: source, root: map[string]any{}}, nil
	}

	root := node.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return &Document{source: source, root: map[string]any{}}, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, parseErrorf(source, root.Line, "top-level value must be a mapping, got %s", nodeKindName(root))
	}

	tree, err := mappingToTree(root, source)
	if err != nil {
		return nil, err
	}

	return &Document{source: source, root: tree}, nil
}

// mappingToTree converts a mapping node into a map tree, checking for
// duplicate and non-string keys.
func mappingToTree(node *yaml.Node, source string) (map[string]any, error) {
	tree := make(map[string]any, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		if keyNode.Kind != yaml.ScalarNode || keyNode.Tag != "!!str" {
			return nil, parseErrorf(source, keyNode.Line, "mapping key must be a string, got %s", nodeKindName(keyNode))
		}
		key := keyNode.Value
		if _, exists := tree[key]; exists {
			return nil, parseErrorf(source, keyNode.Line, "duplicate mapping key %q", key)
		}

		value, err := nodeToValue(valueNode, source)
		if err != nil {
			return nil, err
		}
		tree[key] = value
	}
	return tree, nil
}

// nodeToValue converts a YAML node into a tree value.
func nodeToValue(node *yaml.Node, source string) (any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		return mappingToTree(node, source)
	case yaml.SequenceNode:
		seq := make([]any, 0, len(node.Content))
		for _, elem := range node.Content {
			value, err := nodeToValue(elem, source)
			if err != nil {
				return nil, err
			}
			seq = append(seq, value)
		}
		return seq, nil
	case yaml.ScalarNode:
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, &ParseError{Source: source, Line: node.Line, Err: err}
		}
		return value, nil
	case yaml.AliasNode:
		return nodeToValue(node.Alias, source)
	default:
		return nil, parseErrorf(source, node.Line, "unsupported YAML node kind %d", node.Kind)
	}
}

func nodeKindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return fmt.Sprintf("%s scalar", node.Tag)
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
