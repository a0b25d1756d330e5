package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/temporalab/modelconf/compose"
	"github.com/temporalab/modelconf/snapshot"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <variant>",
	Short: "Compose a variant into a fully resolved snapshot",
	Long: `Merges the base document with the named variant, applies --set overrides
and substitutes every ${dotted.path} reference.

Examples:
  modelconf resolve deepar
  modelconf resolve timegrad --set trainer.epochs=40 --set params.diff_steps=200
  modelconf resolve deepvar --format json -o deepvar.json
  modelconf resolve tempflow --save redis --out-dir runs/`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var (
	resolveSet    []string
	resolveFormat string
	resolveOut    string
	resolveSave   string
	resolveOutDir string
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringArrayVar(&resolveSet, "set", nil, "Override as dotted.path=value (repeatable)")
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "yaml", "Output format: yaml or json")
	resolveCmd.Flags().StringVarP(&resolveOut, "output", "o", "", "Write the snapshot to a file instead of stdout")
	resolveCmd.Flags().StringVar(&resolveSave, "save", "", "Persist the snapshot: memory, redis or s3")
	resolveCmd.Flags().StringVar(&resolveOutDir, "out-dir", "", "Write a run directory under this path")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	overrides, err := compose.ParseOverrides(resolveSet)
	if err != nil {
		return err
	}

	reg := openRegistry()
	snap, err := reg.Compose(ctx, args[0], overrides...)
	if err != nil {
		return err
	}

	data, err := encodeSnapshot(snap, resolveFormat)
	if err != nil {
		return err
	}
	if err := writeOutput(data, resolveOut); err != nil {
		return err
	}
	if resolveOut != "" {
		color.Green("✅ Snapshot %s written to %s", snap.ID, resolveOut)
	}

	if resolveSave != "" {
		store, err := newRunStore(ctx, resolveSave)
		if err != nil {
			return err
		}
		if err := store.Save(ctx, snap); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		color.Green("✅ Snapshot %s saved to %s store", snap.ID, store.Backend())
	}

	if resolveOutDir != "" {
		runDir, err := snapshot.NewWriter(resolveOutDir).Write(snap)
		if err != nil {
			return err
		}
		color.Green("✅ Run directory %s", runDir)
	}

	return nil
}
