package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"tienda-orders/internal/metrics"
	"tienda-orders/internal/telemetry"
)

// Options configures a directory client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Logger     *log.Logger
	Metrics    *metrics.Metrics
	HTTPClient *http.Client
}

type httpClient struct {
	dependency string
	baseURL    string
	http       *http.Client
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// errDependency marks responses that count as a dependency failure.
var errDependency = errors.New("dependency error")

func newHTTPClient(dependency string, opts Options) *httpClient {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &httpClient{
		dependency: dependency,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		http:       hc,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// do sends a JSON request and decodes a 2xx body into out. 404 and 409 are
// returned as status codes with a nil error; any other non-2xx status, a
// transport failure or an undecodable body is an errDependency.
func (c *httpClient) do(ctx context.Context, op, method, path string, in, out any) (int, error) {
	ctx, span := telemetry.Tracer().Start(ctx, c.dependency+"."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.path", path))

	status, err := c.roundTrip(ctx, method, path, in, out)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return status, err
}

func (c *httpClient) roundTrip(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("%w: encode request: %v", errDependency, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", errDependency, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", errDependency, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusConflict:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("%w: %s %s returned %d", errDependency, method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode %s %s: %v", errDependency, method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *httpClient) observe(outcome Outcome) {
	c.metrics.ObserveDependency(c.dependency, outcome.String())
}
