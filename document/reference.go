package document

import (
	"regexp"
	"strings"
)

// Interpolation references use ${dotted.path} syntax. The reference pattern
// is part of the document format itself, so the matching helpers live here;
// substitution is implemented by the resolve package.
var referencePattern = regexp.MustCompile(`\$\{([^${}]*)\}`)

// ContainsReference reports whether s holds at least one ${...} reference,
// well formed or not. An opening ${ without a closing brace counts, so
// malformed references are detected rather than silently passed through.
func ContainsReference(s string) bool {
	return strings.Contains(s, "${")
}

// IsReference reports whether s is exactly one ${dotted.path} reference and
// returns the inner path text. Strings that merely embed references among
// other characters return false.
func IsReference(s string) (string, bool) {
	m := referencePattern.FindStringSubmatch(s)
	if m == nil || m[0] != s {
		return "", false
	}
	return m[1], true
}

// References returns the inner path text of every well-formed ${...}
// reference in s, in order of appearance.
func References(s string) []string {
	matches := referencePattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}

// ReplaceReferences rewrites every well-formed ${...} reference in s with the
// replacement returned by fn, which receives the inner path text. Errors from
// fn abort the rewrite.
func ReplaceReferences(s string, fn func(ref string) (string, error)) (string, error) {
	var firstErr error
	out := referencePattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		inner := match[2 : len(match)-1]
		replaced, err := fn(inner)
		if err != nil {
			firstErr = err
			return match
		}
		return replaced
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// UnterminatedReference returns the position of a ${ with no closing brace,
// or -1 when every opener is terminated. Used to reject malformed references
// instead of leaving them in resolved output.
func UnterminatedReference(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '$' && s[i+1] == '{' {
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return i
			}
			i += end
		}
	}
	return -1
}
