package schema

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/temporalab/modelconf/logger"
)

const fetchTimeout = 10 * time.Second

// schemaClient carries trace context on schema fetches.
var schemaClient = &http.Client{
	Timeout:   fetchTimeout,
	Transport: otelhttp.NewTransport(http.DefaultTransport),
}

// FetchLoader downloads a schema over HTTP and returns a bytes-backed
// loader, so validation itself needs no further network access. Non-2xx
// responses are errors.
func FetchLoader(ctx context.Context, url string) (gojsonschema.JSONLoader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema request: %w", err)
	}
	req.Header.Set("Accept", "application/schema+json, application/json")

	logger.APIRequest("schema", http.MethodGet, url, nil, nil)
	resp, err := schemaClient.Do(req)
	if err != nil {
		logger.APIResponse("schema", 0, "", err)
		return nil, fmt.Errorf("failed to fetch schema from %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	logger.APIResponse("schema", resp.StatusCode, "", nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("schema fetch from %s returned %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema body: %w", err)
	}

	return gojsonschema.NewBytesLoader(data), nil
}
