package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/temporalab/modelconf/logger"
	"github.com/temporalab/modelconf/telemetry"
	"github.com/temporalab/modelconf/version"
)

// tracerProvider is the OTLP provider installed by the root command when
// OTEL_EXPORTER_OTLP_ENDPOINT is set; nil when tracing is disabled.
var tracerProvider *sdktrace.TracerProvider

var rootCmd = &cobra.Command{
	Use:           "modelconf",
	Short:         "Experiment configuration toolkit for probabilistic forecasting models",
	Version:       version.GetVersion(),
	SilenceUsage:  true,  // Don't print usage on error
	SilenceErrors: false, // Do print errors
	Long: `modelconf composes layered YAML experiment configurations for probabilistic
time-series forecasting models (deepar, deepvar, tempflow, transformer_tempflow,
timegrad).

A base document and a per-model variant merge into one resolved snapshot:
${dotted.path} references are substituted, the result is schema- and
rule-validated, and sweeps expand value grids into reproducible run
directories.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize logger based on verbose flag if present
		// This runs before all subcommands
		if cmd.Flags().Changed("verbose") {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting verbose flag: %v\n", err)
				return
			}
			logger.SetVerbose(verbose)
		}
		version.LogStartup()

		// The sweep command exports its recorded run as a single batch
		// trace after the fact; installing a live provider there would
		// emit every composition twice.
		if cmd.Name() != "sweep" {
			tp, err := telemetry.Init(cmd.Context(), "modelconf")
			if err != nil {
				logger.Warn("failed to initialize tracing", "error", err)
				return
			}
			tracerProvider = tp
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("conf-dir", "C", "conf", "Configuration directory containing config.yaml and model/")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose debug logging")

	viper.SetEnvPrefix("MODELCONF")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("redis_addr", "localhost:6379")

	_ = viper.BindPFlag("conf_dir", rootCmd.PersistentFlags().Lookup("conf-dir"))
}

// setupVersion configures the version display
func setupVersion() {
	// Set custom version template to show detailed version info
	rootCmd.SetVersionTemplate(version.GetVersionInfo() + "\n")
}

func Execute() {
	setupVersion()
	err := rootCmd.Execute()
	if shutdownErr := telemetry.Shutdown(context.Background(), tracerProvider); shutdownErr != nil {
		logger.Warn("failed to flush traces", "error", shutdownErr)
	}
	if err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}

func main() {
	Execute()
}
