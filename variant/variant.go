// Package variant ties the configuration tree together for model variants.
//
// This package implements a registry system for loading, composing, and
// resolving model-variant configurations via repository interfaces:
//   - Base-plus-variant document composition with ad-hoc overrides
//   - Interpolation resolution at composition time
//   - Shape validation of the composed document (name, flags, params, semver)
//   - Immutable snapshot production with content digests
//   - Document caching with explicit invalidation
//
// The Registry uses the repository pattern to load configuration documents,
// avoiding direct file I/O. It merges the shared base context with the chosen
// variant document, applies overrides, resolves every ${dotted.path}
// reference, and emits a snapshot ready for model construction.
//
// # Usage
//
// Create a registry with a repository:
//
//	repo := persistence.NewFSRepository("conf")
//	registry := variant.NewRegistry(repo)
//	snap, err := registry.Compose(ctx, "deepar")
//
// Known variants shipped in the conf tree: deepar, deepvar, tempflow,
// transformer_tempflow, timegrad.
package variant

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/temporalab/modelconf/document"
)

// Reserved top-level keys of a variant document. Every other top-level key is
// shared context (data, trainer, evaluation, ...) that interpolation
// references may point into.
const (
	KeyName          = "name"
	KeyVersion       = "version"
	KeyComputeFlops  = "compute_flops"
	KeyPlotForecasts = "plot_forecasts"
	KeyParams        = "params"
)

// Definition is the typed view of a composed and resolved variant document.
// PlotForecasts is nil when the document sets the flag to null or omits it.
type Definition struct {
	Name          string
	Version       string
	ComputeFlops  bool
	PlotForecasts *bool
	Params        map[string]any
}

// DefinitionError reports a shape violation in a composed variant document.
type DefinitionError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid variant document at %q: %s", e.Path, e.Message)
}

// NewDefinition extracts the typed view from a resolved document and checks
// its shape: the name must be a non-empty string, the flags boolean or null,
// params a mapping, and the version (when set) a semantic version.
func NewDefinition(doc *document.Document) (*Definition, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	def := &Definition{}

	nameVal, ok := doc.Get(KeyName)
	if !ok || nameVal == nil {
		return nil, &DefinitionError{Path: KeyName, Message: "variant name is missing"}
	}
	name, isString := nameVal.(string)
	if !isString || name == "" {
		return nil, &DefinitionError{Path: KeyName, Message: fmt.Sprintf("variant name must be a non-empty string, got %T", nameVal)}
	}
	def.Name = name

	if v, ok := doc.Get(KeyVersion); ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return nil, &DefinitionError{Path: KeyVersion, Message: fmt.Sprintf("version must be a string, got %T", v)}
		}
		if err := validateSemanticVersion(s); err != nil {
			return nil, &DefinitionError{Path: KeyVersion, Message: err.Error()}
		}
		def.Version = s
	}

	computeFlops, err := boolFlag(doc, KeyComputeFlops)
	if err != nil {
		return nil, err
	}
	def.ComputeFlops = computeFlops != nil && *computeFlops

	def.PlotForecasts, err = boolFlag(doc, KeyPlotForecasts)
	if err != nil {
		return nil, err
	}

	if p, ok := doc.Get(KeyParams); ok && p != nil {
		params, isMap := p.(map[string]any)
		if !isMap {
			return nil, &DefinitionError{Path: KeyParams, Message: fmt.Sprintf("params must be a mapping, got %T", p)}
		}
		def.Params = params
	} else {
		def.Params = map[string]any{}
	}

	return def, nil
}

// boolFlag reads an optional boolean flag. Null and absent both yield nil.
func boolFlag(doc *document.Document, key string) (*bool, error) {
	v, ok := doc.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return nil, &DefinitionError{Path: key, Message: fmt.Sprintf("flag must be a boolean or null, got %T", v)}
	}
	return &b, nil
}

// validateSemanticVersion validates that a version string follows Semantic Versioning 2.0.0.
// It accepts versions with or without the 'v' prefix and requires MAJOR.MINOR.PATCH format.
//
// Valid examples:
//   - "1.0.0"
//   - "v2.1.3"
//   - "1.0.0-alpha"
//
// Invalid examples:
//   - "1.0" (missing patch)
//   - "latest" (not a version number)
//   - "" (empty)
func validateSemanticVersion(version string) error {
	if version == "" {
		return fmt.Errorf("version is empty")
	}

	// Strip 'v' prefix if present (e.g., "v1.0.0" -> "1.0.0")
	cleanVersion := strings.TrimPrefix(version, "v")

	// Use StrictNewVersion to require MAJOR.MINOR.PATCH format
	// (NewVersion would auto-complete "1.0" to "1.0.0")
	_, err := semver.StrictNewVersion(cleanVersion)
	if err != nil {
		return fmt.Errorf("invalid semantic version: %w", err)
	}

	return nil
}
