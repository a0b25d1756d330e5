// Package schema provides the embedded document schema and shared schema
// validation utilities.
package schema

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed document.schema.json
var embeddedSchema string

// DefaultSchemaURL is the canonical URL for the document schema.
const DefaultSchemaURL = "https://modelconf.temporalab.dev/schema/v1/document.schema.json"

// SchemaSourceEnvVar overrides where the schema is loaded from.
// Values: "local" (embedded), "remote" (fetch from URL), or a file path.
const SchemaSourceEnvVar = "MODELCONF_SCHEMA_SOURCE"

// Loader returns a gojsonschema loader for the document schema.
// Priority:
//  1. If MODELCONF_SCHEMA_SOURCE is "local" or unset, use the embedded schema
//  2. If MODELCONF_SCHEMA_SOURCE is a file path, load from that file
//  3. If MODELCONF_SCHEMA_SOURCE is "remote", fetch schemaURL (or the default)
//  4. Anything else is treated as a URL
func Loader(schemaURL string) (gojsonschema.JSONLoader, error) {
	source := os.Getenv(SchemaSourceEnvVar)

	switch {
	case source == "local" || source == "":
		return gojsonschema.NewStringLoader(embeddedSchema), nil

	case source == "remote":
		url := schemaURL
		if url == "" {
			url = DefaultSchemaURL
		}
		return gojsonschema.NewReferenceLoader(url), nil

	case strings.HasPrefix(source, "/") || strings.HasPrefix(source, "./"):
		data, err := os.ReadFile(source) //nolint:gosec // source is from trusted env var, not user input
		if err != nil {
			return nil, fmt.Errorf("failed to read schema from %s: %w", source, err)
		}
		return gojsonschema.NewStringLoader(string(data)), nil

	default:
		return gojsonschema.NewReferenceLoader(source), nil
	}
}

// ResolveLoader builds a loader from an explicit schema reference: an
// http(s) URL is fetched eagerly, any other non-empty value is read as a
// file path, and an empty reference falls back to Loader's environment
// handling.
func ResolveLoader(ctx context.Context, ref string) (gojsonschema.JSONLoader, error) {
	switch {
	case ref == "":
		return Loader("")

	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return FetchLoader(ctx, ref)

	default:
		data, err := os.ReadFile(ref) //nolint:gosec // ref comes from an operator flag
		if err != nil {
			return nil, fmt.Errorf("failed to read schema from %s: %w", ref, err)
		}
		return gojsonschema.NewStringLoader(string(data)), nil
	}
}

// Embedded returns the embedded schema text.
func Embedded() string {
	return embeddedSchema
}
