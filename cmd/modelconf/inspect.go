package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/temporalab/modelconf/snapshot"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <variant>",
	Short: "Show the composed structure of a variant",
	Long: `Composes the variant and summarizes the resolved document: model metadata,
top-level sections and, with --stats, the shape of the parameter tree.

Examples:
  modelconf inspect deepar
  modelconf inspect timegrad --stats
  modelconf inspect deepvar --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var (
	inspectFormat string
	inspectStats  bool
)

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text or json")
	inspectCmd.Flags().BoolVar(&inspectStats, "stats", false, "Include parameter statistics")
}

type inspectReport struct {
	Variant       string          `json:"variant"`
	Model         string          `json:"model"`
	SnapshotID    string          `json:"snapshot_id"`
	Digest        string          `json:"digest"`
	ToolVersion   string          `json:"tool_version,omitempty"`
	ComputeFlops  bool            `json:"compute_flops"`
	PlotForecasts *bool           `json:"plot_forecasts"`
	Sections      map[string]int  `json:"sections"`
	Parameters    int             `json:"parameters"`
	Stats         *inspectDetails `json:"stats,omitempty"`
}

type inspectDetails struct {
	Leaves      int            `json:"leaves"`
	ByType      map[string]int `json:"by_type"`
	DeepestPath string         `json:"deepest_path"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	reg := openRegistry()
	snap, err := reg.Compose(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	report := buildInspectReport(snap)
	if inspectStats {
		report.Stats = buildInspectStats(snap)
	}

	if inspectFormat == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printInspectReport(report)
	return nil
}

func buildInspectReport(snap *snapshot.Snapshot) *inspectReport {
	report := &inspectReport{
		Variant:      snap.Variant,
		Model:        snap.Name(),
		SnapshotID:   snap.ID,
		Digest:       snap.Digest,
		ToolVersion:  snap.ToolVersion,
		ComputeFlops: snap.ComputeFlops(),
		Sections:     make(map[string]int),
		Parameters:   len(snap.Params()),
	}
	if plot, ok := snap.PlotForecasts(); ok {
		report.PlotForecasts = &plot
	}
	for key, value := range snap.Resolved {
		if m, ok := value.(map[string]any); ok {
			report.Sections[key] = len(m)
		} else {
			report.Sections[key] = 1
		}
	}
	return report
}

func buildInspectStats(snap *snapshot.Snapshot) *inspectDetails {
	flat := snap.Flat()
	stats := &inspectDetails{Leaves: len(flat), ByType: make(map[string]int)}
	maxDepth := 0
	for path, value := range flat {
		stats.ByType[typeName(value)]++
		if depth := strings.Count(path, ".") + 1; depth > maxDepth {
			maxDepth = depth
			stats.DeepestPath = path
		}
	}
	return stats
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int, int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "list"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func printInspectReport(report *inspectReport) {
	color.Cyan("Variant %s", report.Variant)
	color.Cyan(strings.Repeat("─", 72))
	fmt.Printf(" %-16s %s\n", "Model:", report.Model)
	fmt.Printf(" %-16s %s\n", "Snapshot:", report.SnapshotID)
	fmt.Printf(" %-16s %s\n", "Digest:", shortDigest(report.Digest))
	if report.ToolVersion != "" {
		fmt.Printf(" %-16s %s\n", "Tool version:", report.ToolVersion)
	}
	fmt.Printf(" %-16s %t\n", "Compute FLOPS:", report.ComputeFlops)
	if report.PlotForecasts != nil {
		fmt.Printf(" %-16s %t\n", "Plot forecasts:", *report.PlotForecasts)
	} else {
		fmt.Printf(" %-16s %s\n", "Plot forecasts:", "not set")
	}
	fmt.Printf(" %-16s %d\n", "Parameters:", report.Parameters)

	fmt.Println()
	color.Cyan("Sections")
	color.Cyan(strings.Repeat("─", 72))
	for _, key := range sortedKeys(report.Sections) {
		fmt.Printf(" %-24s %d key(s)\n", key, report.Sections[key])
	}

	if report.Stats != nil {
		fmt.Println()
		color.Cyan("Statistics")
		color.Cyan(strings.Repeat("─", 72))
		fmt.Printf(" %-24s %d\n", "Leaf values", report.Stats.Leaves)
		fmt.Printf(" %-24s %s\n", "Deepest path", report.Stats.DeepestPath)
		for _, name := range sortedKeys(report.Stats.ByType) {
			fmt.Printf("   %-22s %d\n", name, report.Stats.ByType[name])
		}
	}
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
