package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/temporalab/modelconf/events"
	"github.com/temporalab/modelconf/schema"
	"github.com/temporalab/modelconf/telemetry"
	"github.com/temporalab/modelconf/validators"
	"github.com/temporalab/modelconf/variant"
)

var validateCmd = &cobra.Command{
	Use:   "validate [<variant>]",
	Short: "Validate composed variants against the schema and semantic rules",
	Long: `Composes each requested variant and checks the resolved document against
the JSON schema and the semantic rule table for its model family.

Examples:
  modelconf validate deepar
  modelconf validate --all
  modelconf validate timegrad --schema ./document.schema.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var (
	validateAll    bool
	validateSchema string
)

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateAll, "all", false, "Validate every variant in the configuration directory")
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "Schema override: an http(s) URL or a file path")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// With tracing enabled, store and validation checks become spans via
	// the event listener; compose spans come from the registry itself.
	var bus *events.EventBus
	if tracerProvider != nil {
		bus = events.NewEventBus()
		bus.SubscribeAll(telemetry.NewOTelEventListener(telemetry.Tracer(nil)).OnEvent)
		defer bus.Close()
	}
	reg := openRegistry(variant.WithEventBus(bus))

	var names []string
	switch {
	case validateAll:
		var err error
		if names, err = reg.List(); err != nil {
			return fmt.Errorf("failed to list variants: %w", err)
		}
	case len(args) == 1:
		names = args
	default:
		return fmt.Errorf("variant name required (or --all)")
	}

	loader, err := schema.ResolveLoader(ctx, validateSchema)
	if err != nil {
		return err
	}

	failed := 0
	for _, name := range names {
		snap, err := reg.Compose(ctx, name)
		if err != nil {
			color.Red("❌ %s: %v", name, err)
			failed++
			continue
		}
		doc := snap.Document()

		start := time.Now()
		emitter := events.NewEmitter(bus, name, "")
		var violations []string

		result, err := schema.ValidateDocumentWithLoader(doc, loader)
		switch {
		case err != nil:
			color.Red("❌ %s: schema check failed: %v", name, err)
			violations = append(violations, err.Error())
		case !result.Valid:
			color.Red("❌ %s: %d schema violation(s)", name, len(result.Errors))
			for _, verr := range result.Errors {
				color.Red("   • %s", verr.Error())
				violations = append(violations, verr.Error())
			}
		}

		report := validators.Apply(doc, name)
		if !report.OK() {
			color.Red("❌ %s: %d rule violation(s)", name, len(report.Violations))
			for _, v := range report.Violations {
				color.Red("   • %s: %s", v.Path, v.Message)
				violations = append(violations, fmt.Sprintf("%s: %s", v.Path, v.Message))
			}
		}

		rules := len(validators.DefaultRules(name)) + 1 // semantic rules plus the schema check
		if len(violations) == 0 {
			emitter.ValidationPassed(rules, time.Since(start))
			color.Green("✅ %s", name)
		} else {
			emitter.ValidationFailed(rules, violations, time.Since(start))
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d variant(s) failed validation", failed, len(names))
	}
	return nil
}
