package main

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <variant-a> <variant-b>",
	Short: "Compare the resolved parameters of two variants",
	Long: `Composes both variants and compares their flattened parameter trees.
Additions print green, removals red and changed values yellow.

Examples:
  modelconf diff deepar deepvar
  modelconf diff tempflow transformer_tempflow`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reg := openRegistry()

	left, err := reg.Compose(ctx, args[0])
	if err != nil {
		return err
	}
	right, err := reg.Compose(ctx, args[1])
	if err != nil {
		return err
	}

	leftFlat, rightFlat := left.Flat(), right.Flat()

	paths := make([]string, 0, len(leftFlat)+len(rightFlat))
	seen := make(map[string]bool, len(leftFlat))
	for path := range leftFlat {
		paths = append(paths, path)
		seen[path] = true
	}
	for path := range rightFlat {
		if !seen[path] {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	color.Cyan("Diff %s → %s", args[0], args[1])
	color.Cyan(strings.Repeat("─", 72))

	var added, removed, changed int
	for _, path := range paths {
		lv, inLeft := leftFlat[path]
		rv, inRight := rightFlat[path]
		switch {
		case !inLeft:
			color.Green("+ %s = %v", path, rv)
			added++
		case !inRight:
			color.Red("- %s = %v", path, lv)
			removed++
		case !reflect.DeepEqual(lv, rv):
			color.Yellow("~ %s: %v → %v", path, lv, rv)
			changed++
		}
	}

	if added+removed+changed == 0 {
		color.Green("✅ No differences")
		return nil
	}
	fmt.Printf("\n%d added, %d removed, %d changed\n", added, removed, changed)
	return nil
}
