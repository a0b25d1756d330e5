// Package resolve implements interpolation reference resolution.
//
// Resolution substitutes every ${dotted.path} reference in a composed
// document against the document's own namespace, in one synchronous pass:
//   - A string that is exactly one reference takes the target's typed value,
//     so an int target stays an int and a mapping target is copied in whole
//   - References embedded in longer strings splice the target's scalar
//     rendering into the surrounding text
//   - Chained references (a -> b -> c) resolve recursively to a bounded
//     depth, with an explicit visit stack detecting cycles
//   - A reference to a present-but-null path resolves to null; only absent
//     paths are unresolved
//
// Resolution never mutates its input and never returns a partially resolved
// document: the first failure aborts the pass. A resolved document contains
// no residual ${...} text.
package resolve

import (
	"fmt"
	"sort"

	"github.com/temporalab/modelconf/document"
)

// DefaultMaxDepth bounds reference chains. Cycles are caught by the visit
// stack, so the bound only stops pathologically long acyclic chains.
const DefaultMaxDepth = 32

// Resolver substitutes interpolation references in documents.
type Resolver struct {
	maxDepth int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithMaxDepth overrides the reference chain depth bound.
func WithMaxDepth(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// NewResolver creates a resolver with the given options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve substitutes references with the default resolver.
func Resolve(doc *document.Document) (*document.Document, error) {
	return NewResolver().Resolve(doc)
}

// Resolve returns a new document with every reference substituted against
// doc's own namespace. The input document is unchanged.
func (r *Resolver) Resolve(doc *document.Document) (*document.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	state := &resolveState{
		resolver: r,
		source:   doc.Map(),
	}

	resolved, err := state.resolveValue(nil, state.source)
	if err != nil {
		return nil, err
	}

	return document.FromMap(doc.Source(), resolved.(map[string]any)), nil
}

// resolveState carries the source namespace and the stack of reference
// targets currently being resolved. Resolution is a single synchronous pass,
// so the state is confined to one Resolve call.
type resolveState struct {
	resolver *Resolver
	source   map[string]any
	stack    []document.Path
}

// resolveValue rebuilds a tree value with all references substituted. Maps
// and sequences are reconstructed, so the result shares no containers with
// the source.
func (s *resolveState) resolveValue(path document.Path, value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			resolved, err := s.resolveValue(path.Child(k), v[k])
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			resolved, err := s.resolveValue(path.Child(fmt.Sprintf("%d", i)), elem)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case string:
		return s.resolveString(path, v)
	default:
		return v, nil
	}
}

// resolveString substitutes references inside one string value.
func (s *resolveState) resolveString(path document.Path, value string) (any, error) {
	if !document.ContainsReference(value) {
		return value, nil
	}

	if pos := document.UnterminatedReference(value); pos >= 0 {
		return nil, fmt.Errorf("%w at %q: missing '}' in %q", ErrMalformedReference, path.String(), value)
	}

	// A full-string reference takes the target's typed value.
	if inner, ok := document.IsReference(value); ok {
		return s.resolveReference(path, inner)
	}

	// Embedded references splice scalar renderings into the string.
	return document.ReplaceReferences(value, func(ref string) (string, error) {
		target, err := s.resolveReference(path, ref)
		if err != nil {
			return "", err
		}
		text, ok := renderScalar(target)
		if !ok {
			return "", fmt.Errorf("%w: reference %q at %q resolves to a %s",
				ErrNonScalarInterpolation, ref, path.String(), kindName(target))
		}
		return text, nil
	})
}

// resolveReference resolves one ${ref} occurrence found at site. The target
// value is itself resolved recursively, with the visit stack guarding
// against cycles and the depth bound against runaway chains.
func (s *resolveState) resolveReference(site document.Path, ref string) (any, error) {
	refPath, err := document.ParsePath(ref)
	if err != nil {
		return nil, fmt.Errorf("%w at %q: %v", ErrMalformedReference, site.String(), err)
	}

	for _, visited := range s.stack {
		if visited.Equal(refPath) {
			return nil, &CyclicReferenceError{Chain: append(append([]document.Path{}, s.stack...), refPath)}
		}
	}
	if len(s.stack) >= s.resolver.maxDepth {
		return nil, fmt.Errorf("%w: chain from %q longer than %d", ErrMaxDepthExceeded, site.String(), s.resolver.maxDepth)
	}

	raw, ok := lookupRaw(s.source, refPath)
	if !ok {
		return nil, &UnresolvedReferenceError{Reference: refPath, Site: site}
	}

	s.stack = append(s.stack, refPath)
	resolved, err := s.resolveValue(refPath, raw)
	s.stack = s.stack[:len(s.stack)-1]
	return resolved, err
}

// lookupRaw walks the source tree without copying.
func lookupRaw(root map[string]any, path document.Path) (any, bool) {
	current := any(root)
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
	return current, true
}

// renderScalar renders a scalar for splicing into a string. Mappings and
// sequences report false.
func renderScalar(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "null", true
	case string:
		return val, true
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprintf("%v", val), true
	}
}

func kindName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "mapping"
	case []any:
		return "sequence"
	case nil:
		return "null"
	default:
		return "scalar"
	}
}
