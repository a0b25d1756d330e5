package schema

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temporalab/modelconf/document"
)

func parseDoc(t *testing.T, yaml string) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(yaml), "test.yaml")
	require.NoError(t, err)
	return doc
}

func TestValidateDocument_Valid(t *testing.T) {
	doc := parseDoc(t, `
name: deepar
compute_flops: false
plot_forecasts: Null
params:
  num_layers: 2
  dropout_rate: 0.1
data:
  freq: H
`)

	result, err := ValidateDocument(doc)
	require.NoError(t, err)
	assert.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
}

func TestValidateDocument_MissingRequiredFields(t *testing.T) {
	doc := parseDoc(t, "trainer:\n  epochs: 30\n")

	result, err := ValidateDocument(doc)
	require.NoError(t, err)
	require.False(t, result.Valid)

	fields := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "(root)")
}

func TestValidateDocument_BadVariantName(t *testing.T) {
	doc := parseDoc(t, "name: DeepAR\nparams: {}\n")

	result, err := ValidateDocument(doc)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidateDocument_ParamsMustBeMapping(t *testing.T) {
	doc := parseDoc(t, "name: deepar\nparams: fast\n")

	result, err := ValidateDocument(doc)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidateDocument_FlagTypes(t *testing.T) {
	doc := parseDoc(t, "name: deepar\ncompute_flops: yes please\nparams: {}\n")

	result, err := ValidateDocument(doc)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestValidationError_Message(t *testing.T) {
	e := ValidationError{Field: "params", Description: "Invalid type", Value: "fast"}
	assert.Contains(t, e.Error(), "params")
	assert.Contains(t, e.Error(), "fast")
}

func TestFetchLoader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/schema+json")
		_, _ = w.Write([]byte(Embedded()))
	}))
	defer server.Close()

	loader, err := FetchLoader(context.Background(), server.URL)
	require.NoError(t, err)

	doc := parseDoc(t, "name: tempflow\nparams:\n  n_blocks: 3\n")
	result, err := ValidateDocumentWithLoader(doc, loader)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestFetchLoader_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := FetchLoader(context.Background(), server.URL)
	assert.Error(t, err)
}
