package validators

import (
	"sync"
)

// ValidatorConfig defines a validator type and its parameters, as carried by
// a rule.
type ValidatorConfig struct {
	Type   string                 `json:"type" yaml:"type"`
	Params map[string]interface{} `json:"params" yaml:"params"`
}

// ValidatorFactory creates a validator instance from configuration params.
// Params are passed at construction time to allow validators to pre-build
// lookup state.
type ValidatorFactory func(params map[string]interface{}) Validator

// Registry maps validator type names to factory functions.
type Registry struct {
	factories map[string]ValidatorFactory
	mu        sync.RWMutex
}

// NewRegistry creates a new validator registry with built-in validators.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]ValidatorFactory),
	}

	// Register built-in validators
	r.Register("range", func(params map[string]interface{}) Validator {
		return NewRangeValidator()
	})
	r.Register("enum", func(params map[string]interface{}) Validator {
		var allowed []string
		if values, ok := params["values"]; ok {
			switch vs := values.(type) {
			case []string:
				allowed = vs
			case []interface{}:
				for _, item := range vs {
					if s, ok := item.(string); ok {
						allowed = append(allowed, s)
					}
				}
			}
		}
		return NewEnumValidator(allowed)
	})
	r.Register("positive_int", func(params map[string]interface{}) Validator {
		return NewPositiveIntValidator()
	})
	r.Register("bool", func(params map[string]interface{}) Validator {
		return NewBoolValidator()
	})

	return r
}

// Register adds a validator factory to the registry.
func (r *Registry) Register(validatorType string, factory ValidatorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[validatorType] = factory
}

// Get retrieves a validator factory by type.
func (r *Registry) Get(validatorType string) (ValidatorFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[validatorType]
	return factory, ok
}

// HasValidator returns true if a validator type is registered.
func (r *Registry) HasValidator(validatorType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[validatorType]
	return ok
}

// DefaultRegistry is the global validator registry.
var DefaultRegistry = NewRegistry()
