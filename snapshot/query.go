package snapshot

import (
	"fmt"

	"github.com/jmespath/go-jmespath"
)

// Query evaluates a JMESPath expression against the resolved tree.
// Expressions address the tree directly, so `params.num_layers` or
// `trainer.epochs` select single values and `keys(params)` enumerates
// hyperparameter names.
func (s *Snapshot) Query(expr string) (any, error) {
	compiled, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}
	result, err := compiled.Search(s.Resolved)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", expr, err)
	}
	return result, nil
}
