package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/temporalab/modelconf/persistence"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the model variants in the configuration directory",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	repo := persistence.NewFSRepository(confDir())
	names, err := repo.ListVariants()
	if err != nil {
		return fmt.Errorf("failed to list variants: %w", err)
	}
	if len(names) == 0 {
		color.Yellow("No variants found under %s", confDir())
		return nil
	}

	color.Cyan("Variants in %s", confDir())
	color.Cyan(strings.Repeat("─", 72))
	fmt.Printf(" %-24s %-8s %s\n", "VARIANT", "PARAMS", "FILE")
	for _, name := range names {
		params := "-"
		if doc, err := repo.LoadVariant(name); err == nil {
			if v, ok := doc.Get("params"); ok {
				if m, ok := v.(map[string]any); ok {
					params = fmt.Sprintf("%d", len(m))
				}
			}
		}
		fmt.Printf(" %-24s %-8s %s\n", name, params, repo.Path(name))
	}
	return nil
}
