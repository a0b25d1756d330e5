package document

import (
	"fmt"
	"strings"
)

// Path is a dotted key path into a configuration tree, split into segments.
// "data.train.num_feat_dynamic_real" parses to ["data", "train",
// "num_feat_dynamic_real"]. Paths identify values in error reports and in
// interpolation references, so their string form is stable.
type Path []string

// ParsePath splits a dotted path string into a Path.
// Empty segments, surrounding whitespace and an empty input are rejected.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}

	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("path %q contains an empty segment", s)
		}
		if strings.TrimSpace(seg) != seg {
			return nil, fmt.Errorf("path %q contains whitespace around segment %q", s, seg)
		}
	}

	return Path(segments), nil
}

// MustParsePath is ParsePath for statically known paths; it panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the dotted form of the path.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Child returns a new path with key appended. The receiver is not modified.
func (p Path) Child(key string) Path {
	child := make(Path, 0, len(p)+1)
	child = append(child, p...)
	return append(child, key)
}

// Parent returns the path without its final segment and the final segment
// itself. The parent of a single-segment path is the empty path.
func (p Path) Parent() (Path, string) {
	if len(p) == 0 {
		return nil, ""
	}
	return p[:len(p)-1], p[len(p)-1]
}

// Equal reports whether two paths have identical segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}
