package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <variant> <expression>",
	Short: "Evaluate a JMESPath expression against a composed variant",
	Long: `Composes the variant and evaluates a JMESPath expression against the
resolved tree. The result prints as JSON.

Examples:
  modelconf query deepar params.num_cells
  modelconf query deepvar trainer.epochs
  modelconf query timegrad 'params.{steps: diff_steps, loss: loss_type}'`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	reg := openRegistry()
	snap, err := reg.Compose(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	result, err := snap.Query(args[1])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
