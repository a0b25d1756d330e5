package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/temporalab/modelconf/document"
)

// Pre-defined errors for resolution failures.
var (
	// ErrMaxDepthExceeded indicates a reference chain longer than the
	// resolver's depth bound.
	ErrMaxDepthExceeded = errors.New("maximum reference depth exceeded")

	// ErrNonScalarInterpolation indicates a mapping or sequence target
	// referenced from inside a longer string.
	ErrNonScalarInterpolation = errors.New("cannot interpolate non-scalar value into a string")

	// ErrMalformedReference indicates a ${ with no closing brace or an
	// invalid dotted path between the braces.
	ErrMalformedReference = errors.New("malformed reference")
)

// UnresolvedReferenceError reports a ${...} reference whose target path does
// not exist in the composed namespace.
type UnresolvedReferenceError struct {
	Reference document.Path // the missing path
	Site      document.Path // the value that referenced it
}

// Error implements the error interface.
func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference %q at %q: path not found",
		e.Reference.String(), e.Site.String())
}

// CyclicReferenceError reports a reference chain that revisits a path
// already being resolved. Chain holds the full path sequence ending with the
// repeated entry.
type CyclicReferenceError struct {
	Chain []document.Path
}

// Error implements the error interface.
func (e *CyclicReferenceError) Error() string {
	parts := make([]string, 0, len(e.Chain))
	for _, p := range e.Chain {
		parts = append(parts, p.String())
	}
	return fmt.Sprintf("cyclic reference: %s", strings.Join(parts, " -> "))
}
