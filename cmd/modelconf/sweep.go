package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/temporalab/modelconf/compose"
	"github.com/temporalab/modelconf/events"
	"github.com/temporalab/modelconf/logger"
	metricsprom "github.com/temporalab/modelconf/metrics/prometheus"
	"github.com/temporalab/modelconf/runstore"
	"github.com/temporalab/modelconf/snapshot"
	"github.com/temporalab/modelconf/sweep"
	"github.com/temporalab/modelconf/telemetry"
	"github.com/temporalab/modelconf/variant"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <variant>",
	Short: "Expand a value grid and compose every combination",
	Long: `Expands --set axes into the cross product of their values and composes one
snapshot per combination. Combinations run concurrently; the first failure
cancels the combinations not yet started.

When OTEL_EXPORTER_OTLP_ENDPOINT is set, the recorded sweep is exported as
one trace after the run, parented to TRACEPARENT when present.

Examples:
  modelconf sweep deepar --set trainer.epochs=10,20,40
  modelconf sweep timegrad --set params.diff_steps=50,100 --set trainer.learning_rate=1e-3,1e-4
  modelconf sweep deepvar --set params.num_cells=20,40 --max-parallel 2 --out-dir runs/ --save redis`,
	Args: cobra.ExactArgs(1),
	RunE: runSweep,
}

var (
	sweepSet         []string
	sweepMaxParallel int
	sweepOutDir      string
	sweepSave        string
)

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepSet, "set", nil, "Axis as dotted.path=v1,v2,... (repeatable)")
	sweepCmd.Flags().IntVar(&sweepMaxParallel, "max-parallel", 4, "Maximum concurrent compositions")
	sweepCmd.Flags().StringVar(&sweepOutDir, "out-dir", "", "Write one run directory per combination under this path")
	sweepCmd.Flags().StringVar(&sweepSave, "save", "", "Persist snapshots: memory, redis or s3")
	_ = sweepCmd.MarkFlagRequired("set")
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	grid, err := sweep.ParseGrid(sweepSet)
	if err != nil {
		return err
	}

	bus := events.NewEventBus()
	recorder := events.NewRecorder()
	bus.SubscribeAll(recorder.Record)

	// Long sweeps can be scraped while they run: MODELCONF_METRICS_ADDR
	// starts a /metrics endpoint fed by the event stream.
	if addr := viper.GetString("metrics_addr"); addr != "" {
		bus.SubscribeAll(metricsprom.NewMetricsListener().Listener())
		exporter := metricsprom.NewExporter(addr)
		go func() {
			if serveErr := exporter.Start(); serveErr != nil && serveErr != http.ErrServerClosed {
				logger.Warn("metrics exporter stopped", "addr", addr, "error", serveErr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if shutdownErr := exporter.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Warn("failed to stop metrics exporter", "error", shutdownErr)
			}
		}()
	}

	reg := openRegistry(variant.WithEventBus(bus))

	opts := []sweep.RunnerOption{
		sweep.WithWorkers(sweepMaxParallel),
		sweep.WithEventBus(bus),
	}
	if sweepSave != "" {
		store, err := newRunStore(ctx, sweepSave)
		if err != nil {
			bus.Close()
			return err
		}
		opts = append(opts, sweep.WithStore(runstore.Instrumented(store, bus)))
	}
	if sweepOutDir != "" {
		opts = append(opts, sweep.WithExporter(snapshot.NewWriter(sweepOutDir)))
	}

	summary, err := sweep.NewRunner(reg, opts...).Run(ctx, args[0], grid)

	// Close drains the queue, so the recorder holds the full event stream.
	bus.Close()
	if err != nil {
		return err
	}

	exportSweepTrace(ctx, summary.SweepID, recorder.Events())
	printSweepSummary(summary)

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d combinations failed", summary.Failed, len(summary.Results))
	}
	return nil
}

// exportSweepTrace converts the recorded events to one OTLP trace. Best
// effort: a missing endpoint skips the export, a failed one logs a warning.
func exportSweepTrace(ctx context.Context, sweepID string, recorded []events.Event) {
	endpoint := os.Getenv(telemetry.EndpointEnv)
	if endpoint == "" {
		return
	}

	traceCtx := telemetry.TraceContextFromEnv()
	converter := telemetry.NewEventConverter(telemetry.DefaultResource())
	spans, err := converter.ConvertSweepWithParent(sweepID, recorded, &traceCtx)
	if err != nil {
		logger.Warn("failed to convert sweep trace", "error", err)
		return
	}

	exporter := telemetry.NewOTLPExporter(endpoint)
	if err := exporter.Export(ctx, spans); err != nil {
		logger.Warn("failed to export sweep trace", "endpoint", endpoint, "error", err)
		return
	}
	if err := exporter.Shutdown(ctx); err != nil {
		logger.Warn("failed to flush sweep trace", "endpoint", endpoint, "error", err)
	}
}

func printSweepSummary(summary *sweep.Summary) {
	color.Cyan("Sweep %s (%s)", summary.SweepID, summary.Variant)
	color.Cyan(strings.Repeat("─", 72))
	for _, res := range summary.Results {
		label := overridesLabel(res.Overrides)
		switch {
		case res.Err != nil:
			color.Red(" ❌ run %-3d %s: %v", res.Index, label, res.Err)
		case res.RunDir != "":
			fmt.Printf(" ✅ run %-3d %s (%s)\n", res.Index, label, res.RunDir)
		default:
			fmt.Printf(" ✅ run %-3d %s (%s)\n", res.Index, label, res.Snapshot.ID)
		}
	}

	fmt.Println()
	if summary.Failed > 0 {
		color.Red("⚠️  %d succeeded, %d failed in %s", summary.Succeeded, summary.Failed, summary.Duration.Round(time.Millisecond))
	} else {
		color.Green("✅ %d combination(s) succeeded in %s", summary.Succeeded, summary.Duration.Round(time.Millisecond))
	}
}

func overridesLabel(overrides []compose.Override) string {
	parts := make([]string, len(overrides))
	for i, o := range overrides {
		parts[i] = o.String()
	}
	return strings.Join(parts, " ")
}
