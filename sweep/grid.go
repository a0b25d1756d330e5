// Package sweep expands override grids and resolves every combination.
//
// A sweep takes --set assignments whose values are comma-separated choice
// lists, builds the cartesian product of all choices, and composes one
// snapshot per combination through a bounded worker pool. Results keep the
// input order of the grid regardless of completion order.
package sweep

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temporalab/modelconf/compose"
	"github.com/temporalab/modelconf/document"
)

// Axis is one swept parameter: a dotted path and its candidate values.
type Axis struct {
	Path   document.Path
	Values []any
}

// Grid is an ordered list of axes. Axis order is the input order of the
// --set flags and fixes the combination order.
type Grid []Axis

// ParseAxis parses a "dotted.path=v1,v2,..." assignment. Commas split
// choices only at bracket depth zero, so sequence values keep their commas:
// "params.lags_seq=[1,24],[1,24,168]" is two choices. Each choice is decoded
// as a YAML value, like a single override. A plain "key=v" is an axis with
// one fixed choice.
func ParseAxis(s string) (Axis, error) {
	key, rawValues, found := strings.Cut(s, "=")
	if !found {
		return Axis{}, fmt.Errorf("invalid sweep assignment %q: expected key=value[,value...]", s)
	}

	path, err := document.ParsePath(strings.TrimSpace(key))
	if err != nil {
		return Axis{}, fmt.Errorf("invalid sweep assignment %q: %w", s, err)
	}

	choices := splitChoices(rawValues)
	values := make([]any, 0, len(choices))
	for _, choice := range choices {
		var value any
		if err := yaml.Unmarshal([]byte(choice), &value); err != nil {
			return Axis{}, fmt.Errorf("invalid sweep value %q: %w", choice, err)
		}
		values = append(values, value)
	}

	return Axis{Path: path, Values: values}, nil
}

// ParseGrid parses a list of assignments, preserving order.
func ParseGrid(specs []string) (Grid, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	grid := make(Grid, 0, len(specs))
	for _, spec := range specs {
		axis, err := ParseAxis(spec)
		if err != nil {
			return nil, err
		}
		grid = append(grid, axis)
	}
	return grid, nil
}

// splitChoices splits on commas outside brackets.
func splitChoices(s string) []string {
	var choices []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
		case ',':
			if depth == 0 {
				choices = append(choices, s[start:i])
				start = i + 1
			}
		}
	}
	return append(choices, s[start:])
}

// Size returns the number of combinations the grid expands to. An empty grid
// has exactly one combination: the run with no overrides.
func (g Grid) Size() int {
	total := 1
	for _, axis := range g {
		total *= len(axis.Values)
	}
	return total
}

// Combinations expands the cartesian product. Combinations are ordered like
// an odometer with the last axis varying fastest, so the expansion is stable
// across runs.
func (g Grid) Combinations() [][]compose.Override {
	total := g.Size()
	if total == 0 {
		return nil
	}

	combos := make([][]compose.Override, 0, total)
	indices := make([]int, len(g))
	for {
		combo := make([]compose.Override, len(g))
		for i, axis := range g {
			combo[i] = compose.Override{Path: axis.Path, Value: axis.Values[indices[i]]}
		}
		combos = append(combos, combo)

		i := len(g) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(g[i].Values) {
				break
			}
			indices[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return combos
}
