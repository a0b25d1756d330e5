// Package validators provides semantic validation of resolved hyperparameters.
//
// Schema validation checks document shape; this package checks meaning:
//   - Numeric ranges (dropout rates, beta schedules, learning rates)
//   - Enum membership (cell types, scaler types, loss types)
//   - Positive integer counts (layers, cells, epochs, diffusion steps)
//   - Per-variant required parameters
//
// Validators run against composed and resolved documents, after every
// reference has been substituted, so values carry their final types.
package validators

import (
	"fmt"
	"math"
)

// ValidationResult holds the result of a validation check.
type ValidationResult struct {
	OK      bool        `json:"ok"`
	Details interface{} `json:"details,omitempty"`
}

// Validator interface for all hyperparameter checks.
type Validator interface {
	Validate(value any, params map[string]interface{}) ValidationResult
}

// RangeValidator checks that a numeric value lies within configured bounds.
type RangeValidator struct{}

// NewRangeValidator creates a numeric range validator. Bounds come from the
// params at validation time under "min", "max", "exclusive_min" and
// "exclusive_max".
func NewRangeValidator() *RangeValidator {
	return &RangeValidator{}
}

// Validate checks value against the configured bounds. Non-numeric values
// fail; missing bounds are open on that side.
func (v *RangeValidator) Validate(value any, params map[string]interface{}) ValidationResult {
	num, ok := toFloat(value)
	if !ok {
		return ValidationResult{OK: false, Details: fmt.Sprintf("expected a number, got %T", value)}
	}

	if min, ok := toFloat(params["min"]); ok && num < min {
		return ValidationResult{OK: false, Details: fmt.Sprintf("%v is below minimum %v", value, params["min"])}
	}
	if max, ok := toFloat(params["max"]); ok && num > max {
		return ValidationResult{OK: false, Details: fmt.Sprintf("%v is above maximum %v", value, params["max"])}
	}
	if min, ok := toFloat(params["exclusive_min"]); ok && num <= min {
		return ValidationResult{OK: false, Details: fmt.Sprintf("%v must be greater than %v", value, params["exclusive_min"])}
	}
	if max, ok := toFloat(params["exclusive_max"]); ok && num >= max {
		return ValidationResult{OK: false, Details: fmt.Sprintf("%v must be less than %v", value, params["exclusive_max"])}
	}

	return ValidationResult{OK: true}
}

// EnumValidator checks membership in a fixed value set.
type EnumValidator struct {
	allowed []string
}

// NewEnumValidator creates an enum validator over the allowed values.
func NewEnumValidator(allowed []string) *EnumValidator {
	return &EnumValidator{allowed: allowed}
}

// Validate checks that value is one of the allowed strings.
func (v *EnumValidator) Validate(value any, params map[string]interface{}) ValidationResult {
	s, ok := value.(string)
	if !ok {
		return ValidationResult{OK: false, Details: fmt.Sprintf("expected a string, got %T", value)}
	}
	for _, a := range v.allowed {
		if s == a {
			return ValidationResult{OK: true}
		}
	}
	return ValidationResult{
		OK:      false,
		Details: fmt.Sprintf("%q is not one of %v", s, v.allowed),
	}
}

// PositiveIntValidator checks for integers >= 1.
type PositiveIntValidator struct{}

// NewPositiveIntValidator creates a positive integer validator.
func NewPositiveIntValidator() *PositiveIntValidator {
	return &PositiveIntValidator{}
}

// Validate checks that value is an integer greater than zero. Whole-valued
// floats are accepted since YAML override parsing may widen them.
func (v *PositiveIntValidator) Validate(value any, params map[string]interface{}) ValidationResult {
	switch n := value.(type) {
	case int:
		if n >= 1 {
			return ValidationResult{OK: true}
		}
	case int64:
		if n >= 1 {
			return ValidationResult{OK: true}
		}
	case float64:
		if n >= 1 && n == math.Trunc(n) {
			return ValidationResult{OK: true}
		}
	default:
		return ValidationResult{OK: false, Details: fmt.Sprintf("expected an integer, got %T", value)}
	}
	return ValidationResult{OK: false, Details: fmt.Sprintf("%v is not a positive integer", value)}
}

// BoolValidator checks for boolean values, permitting null.
type BoolValidator struct{}

// NewBoolValidator creates a boolean flag validator.
func NewBoolValidator() *BoolValidator {
	return &BoolValidator{}
}

// Validate checks that value is a bool or null.
func (v *BoolValidator) Validate(value any, params map[string]interface{}) ValidationResult {
	if value == nil {
		return ValidationResult{OK: true}
	}
	if _, ok := value.(bool); ok {
		return ValidationResult{OK: true}
	}
	return ValidationResult{OK: false, Details: fmt.Sprintf("expected a boolean, got %T", value)}
}

// toFloat widens any numeric tree value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
