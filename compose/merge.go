// Package compose implements configuration document composition.
//
// Composition merges a base document with an ordered list of override
// documents. Later documents win at the same key path: nested mappings merge
// recursively, while scalars and sequences replace wholesale. A mapping
// colliding with a non-mapping at the same path is a MergeConflictError
// unless the merger is built with WithReplaceOnConflict, with two carve-outs
// that never conflict: null values (replaceable in either direction) and
// strings carrying ${...} references, whose eventual type is unknown until
// resolution.
//
// Merging is associative in override order: composing A, B, C pairwise in any
// grouping produces the same tree.
package compose

import (
	"fmt"

	"github.com/temporalab/modelconf/document"
)

// MergeConflictError reports a mapping/non-mapping collision at a key path.
type MergeConflictError struct {
	Path         document.Path
	BaseKind     string
	OverrideKind string
}

// Error implements the error interface.
func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict at %q: cannot override %s with %s",
		e.Path.String(), e.BaseKind, e.OverrideKind)
}

// Merger merges configuration documents.
type Merger struct {
	replaceOnConflict bool
}

// Option configures a Merger.
type Option func(*Merger)

// WithReplaceOnConflict downgrades mapping/non-mapping collisions from an
// error to replace-wholesale, with the override winning.
func WithReplaceOnConflict() Option {
	return func(m *Merger) {
		m.replaceOnConflict = true
	}
}

// NewMerger creates a merger. The default is strict: type collisions between
// a mapping and a non-mapping surface as MergeConflictError.
func NewMerger(opts ...Option) *Merger {
	m := &Merger{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge composes base with overrides in order and returns a new document.
// None of the inputs are modified. The result carries the base document's
// source label.
func (m *Merger) Merge(base *document.Document, overrides ...*document.Document) (*document.Document, error) {
	if base == nil {
		return nil, fmt.Errorf("base document is nil")
	}

	merged := base.Map()
	for _, override := range overrides {
		if override == nil {
			return nil, fmt.Errorf("override document is nil")
		}
		if err := m.mergeMaps(nil, merged, override.Map()); err != nil {
			return nil, err
		}
	}

	return document.FromMap(base.Source(), merged), nil
}

// Merge composes documents with the default strict merger.
func Merge(base *document.Document, overrides ...*document.Document) (*document.Document, error) {
	return NewMerger().Merge(base, overrides...)
}

// mergeMaps merges override into base in place. Both maps are already deep
// copies owned by this merge.
func (m *Merger) mergeMaps(path document.Path, base, override map[string]any) error {
	for key, overrideVal := range override {
		childPath := path.Child(key)

		baseVal, exists := base[key]
		if !exists {
			base[key] = overrideVal
			continue
		}

		baseMap, baseIsMap := baseVal.(map[string]any)
		overrideMap, overrideIsMap := overrideVal.(map[string]any)

		// Two mappings merge recursively.
		if baseIsMap && overrideIsMap {
			if err := m.mergeMaps(childPath, baseMap, overrideMap); err != nil {
				return err
			}
			continue
		}

		// Everything else replaces wholesale, unless a mapping meets a
		// non-mapping under the strict default.
		if (baseIsMap || overrideIsMap) && !m.replaceOnConflict && !conflictExempt(baseVal, overrideVal) {
			return &MergeConflictError{
				Path:         childPath,
				BaseKind:     valueKind(baseVal),
				OverrideKind: valueKind(overrideVal),
			}
		}
		base[key] = overrideVal
	}
	return nil
}

// conflictExempt reports whether a type collision involving either value is
// permitted: nulls are always replaceable and reference strings have no
// settled type until resolution.
func conflictExempt(baseVal, overrideVal any) bool {
	if baseVal == nil || overrideVal == nil {
		return true
	}
	if s, ok := baseVal.(string); ok && document.ContainsReference(s) {
		return true
	}
	if s, ok := overrideVal.(string); ok && document.ContainsReference(s) {
		return true
	}
	return false
}

// valueKind names a tree value's kind for error reports.
func valueKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "mapping"
	case []any:
		return "sequence"
	default:
		return "scalar"
	}
}
