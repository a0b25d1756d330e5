package schema

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"

	"github.com/temporalab/modelconf/document"
)

// ValidationError represents a single schema validation error with
// field-level detail.
type ValidationError struct {
	Field       string
	Description string
	Value       interface{}
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Description, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidationResult contains the results of JSON schema validation.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidateDocument validates a document tree against the embedded schema.
// Validation runs on composed and resolved documents; raw variant files may
// still carry reference strings where the schema expects typed values.
func ValidateDocument(doc *document.Document) (*ValidationResult, error) {
	loader, err := Loader("")
	if err != nil {
		return nil, err
	}
	return ValidateDocumentWithLoader(doc, loader)
}

// ValidateDocumentWithLoader validates a document against an explicit schema
// loader.
func ValidateDocumentWithLoader(doc *document.Document, schemaLoader gojsonschema.JSONLoader) (*ValidationResult, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	// The schema layer speaks JSON, so the YAML tree converts first.
	jsonData, err := json.Marshal(doc.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to convert document to JSON: %w", err)
	}

	documentLoader := gojsonschema.NewBytesLoader(jsonData)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	return convertResult(result), nil
}

// convertResult converts a gojsonschema result into a ValidationResult.
func convertResult(result *gojsonschema.Result) *ValidationResult {
	vr := &ValidationResult{
		Valid:  result.Valid(),
		Errors: make([]ValidationError, 0),
	}

	if !result.Valid() {
		for _, e := range result.Errors() {
			vr.Errors = append(vr.Errors, ValidationError{
				Field:       e.Field(),
				Description: e.Description(),
				Value:       e.Value(),
			})
		}
	}

	return vr
}
