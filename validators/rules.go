package validators

import (
	"fmt"
	"sort"

	"github.com/temporalab/modelconf/document"
)

// Rule binds a validator to a dotted path in a resolved document. Variants
// limits the rule to specific model variants; empty means every variant.
type Rule struct {
	Path      string          `json:"path" yaml:"path"`
	Required  bool            `json:"required,omitempty" yaml:"required,omitempty"`
	Validator ValidatorConfig `json:"validator" yaml:"validator"`
	Variants  []string        `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// Violation reports one failed rule.
type Violation struct {
	Path    string      `json:"path"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Report collects the violations of one validation run.
type Report struct {
	Variant    string      `json:"variant"`
	Violations []Violation `json:"violations,omitempty"`
}

// OK reports whether the run passed without violations.
func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

func enumRule(path string, values ...string) Rule {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return Rule{Path: path, Validator: ValidatorConfig{Type: "enum", Params: map[string]interface{}{"values": vals}}}
}

func rangeRule(path string, params map[string]interface{}) Rule {
	return Rule{Path: path, Validator: ValidatorConfig{Type: "range", Params: params}}
}

func positiveIntRule(path string, required bool, variants ...string) Rule {
	return Rule{
		Path:      path,
		Required:  required,
		Validator: ValidatorConfig{Type: "positive_int"},
		Variants:  variants,
	}
}

// defaultRules is the semantic rule table for the known model families.
// Paths address the composed document, so trainer and params rules coexist.
var defaultRules = []Rule{
	// Shared trainer settings.
	positiveIntRule("trainer.epochs", false),
	positiveIntRule("trainer.batch_size", false),
	rangeRule("trainer.learning_rate", map[string]interface{}{"exclusive_min": 0, "max": 1}),
	enumRule("trainer.monitor", "train_loss", "val_loss"),

	// Flags.
	{Path: "compute_flops", Validator: ValidatorConfig{Type: "bool"}},
	{Path: "plot_forecasts", Validator: ValidatorConfig{Type: "bool"}},

	// Common estimator knobs.
	rangeRule("params.dropout_rate", map[string]interface{}{"min": 0, "exclusive_max": 1}),
	positiveIntRule("params.num_parallel_samples", false),
	positiveIntRule("params.context_length", false),
	positiveIntRule("params.prediction_length", false),
	positiveIntRule("params.embedding_dimension", false),
	enumRule("params.cell_type", "LSTM", "GRU"),
	enumRule("params.scaler_type", "mean", "nops", "centered_mean", "mean_std"),

	// RNN-family depth and width.
	positiveIntRule("params.num_layers", true, "deepar", "deepvar"),
	positiveIntRule("params.num_cells", true, "deepar", "deepvar"),

	// Multivariate variants need a target dimension.
	positiveIntRule("params.target_dim", true, "deepvar", "tempflow", "transformer_tempflow", "timegrad"),
	positiveIntRule("params.conditioning_length", true, "tempflow", "transformer_tempflow", "timegrad"),

	// Normalizing-flow variants.
	{Path: "params.flow_type", Required: true,
		Validator: ValidatorConfig{Type: "enum", Params: map[string]interface{}{"values": []interface{}{"RealNVP", "MAF"}}},
		Variants:  []string{"tempflow", "transformer_tempflow"}},
	positiveIntRule("params.n_blocks", true, "tempflow", "transformer_tempflow"),
	positiveIntRule("params.hidden_size", true, "tempflow", "transformer_tempflow"),
	positiveIntRule("params.n_hidden", false, "tempflow", "transformer_tempflow"),

	// Transformer encoder shape.
	positiveIntRule("params.d_model", true, "transformer_tempflow"),
	positiveIntRule("params.num_heads", true, "transformer_tempflow"),

	// Diffusion variants.
	positiveIntRule("params.diff_steps", true, "timegrad"),
	positiveIntRule("params.residual_layers", false, "timegrad"),
	positiveIntRule("params.residual_channels", false, "timegrad"),
	positiveIntRule("params.dilation_cycle_length", false, "timegrad"),
	{Path: "params.loss_type", Validator: ValidatorConfig{Type: "enum", Params: map[string]interface{}{"values": []interface{}{"l1", "l2", "huber"}}},
		Variants: []string{"timegrad"}},
	{Path: "params.beta_schedule", Validator: ValidatorConfig{Type: "enum", Params: map[string]interface{}{"values": []interface{}{"linear", "quad", "const", "jsd", "sigmoid", "cosine"}}},
		Variants: []string{"timegrad"}},
	{Path: "params.beta_end", Validator: ValidatorConfig{Type: "range", Params: map[string]interface{}{"exclusive_min": 0, "max": 1}},
		Variants: []string{"timegrad"}},
}

// DefaultRules returns the rules applying to one variant, in table order.
func DefaultRules(variant string) []Rule {
	rules := make([]Rule, 0, len(defaultRules))
	for _, rule := range defaultRules {
		if ruleApplies(rule, variant) {
			rules = append(rules, rule)
		}
	}
	return rules
}

func ruleApplies(rule Rule, variant string) bool {
	if len(rule.Variants) == 0 {
		return true
	}
	for _, v := range rule.Variants {
		if v == variant {
			return true
		}
	}
	return false
}

// Apply runs the default rules for variant against a resolved document and
// returns a report. Absent optional paths are skipped; absent required paths
// are violations. Unknown validator types are violations too, so a typo in a
// rule table cannot silently pass.
func Apply(doc *document.Document, variant string) *Report {
	return ApplyWithRegistry(doc, variant, DefaultRegistry, DefaultRules(variant))
}

// ApplyWithRegistry runs an explicit rule set with an explicit registry.
func ApplyWithRegistry(doc *document.Document, variant string, registry *Registry, rules []Rule) *Report {
	report := &Report{Variant: variant}

	for _, rule := range rules {
		value, present := doc.Get(rule.Path)
		if !present {
			if rule.Required {
				report.Violations = append(report.Violations, Violation{
					Path:    rule.Path,
					Message: "required parameter is missing",
				})
			}
			continue
		}

		// Null satisfies presence but no further checks apply, except for
		// flags where the bool validator accepts null explicitly.
		if value == nil && rule.Validator.Type != "bool" {
			continue
		}

		factory, ok := registry.Get(rule.Validator.Type)
		if !ok {
			report.Violations = append(report.Violations, Violation{
				Path:    rule.Path,
				Message: fmt.Sprintf("unknown validator type %q", rule.Validator.Type),
			})
			continue
		}

		result := factory(rule.Validator.Params).Validate(value, rule.Validator.Params)
		if !result.OK {
			report.Violations = append(report.Violations, Violation{
				Path:    rule.Path,
				Message: fmt.Sprintf("%v", result.Details),
				Value:   value,
			})
		}
	}

	sort.SliceStable(report.Violations, func(i, j int) bool {
		return report.Violations[i].Path < report.Violations[j].Path
	})
	return report
}
