package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

const instrumentationName = "github.com/vicodes/process-flow-canvas-dream/internal/services"

// maxPages bounds ListAllProcessInstances against a backend that never reports a last page.
const maxPages = 1000

// HTTPBackend talks to the orchestration REST API. It does not retry, cache or
// de-duplicate requests.
type HTTPBackend struct {
	baseURL  string
	client   *http.Client
	pageSize int
	logger   *logging.Logger

	tracer   trace.Tracer
	requests metric.Int64Counter
	failures metric.Int64Counter
}

// NewHTTPBackend creates a client for the API rooted at baseURL.
func NewHTTPBackend(baseURL string, timeout time.Duration, pageSize int, logger *logging.Logger) (*HTTPBackend, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	if logger == nil {
		logger = logging.Nop()
	}

	meter := otel.Meter(instrumentationName)
	requests, err := meter.Int64Counter("orchestt.backend.requests",
		metric.WithDescription("Requests sent to the orchestration backend"))
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	failures, err := meter.Int64Counter("orchestt.backend.failures",
		metric.WithDescription("Backend requests that failed or returned a non-2xx status"))
	if err != nil {
		return nil, fmt.Errorf("failed to create failure counter: %w", err)
	}

	return &HTTPBackend{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		pageSize: pageSize,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		requests: requests,
		failures: failures,
	}, nil
}

func (b *HTTPBackend) ListProcessDefinitions(ctx context.Context) ([]models.ProcessDefinition, error) {
	var defs []models.ProcessDefinition
	if err := b.getJSON(ctx, "/api/processDefinitions", &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (b *HTTPBackend) ListProcessInstances(ctx context.Context, page, size int) (*models.Page[models.ProcessInstance], error) {
	if size <= 0 {
		size = b.pageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var p models.Page[models.ProcessInstance]
	if err := b.getJSON(ctx, "/api/processInstances?"+q.Encode(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *HTTPBackend) ListAllProcessInstances(ctx context.Context) ([]models.ProcessInstance, error) {
	var all []models.ProcessInstance
	for page := 0; page < maxPages; page++ {
		p, err := b.ListProcessInstances(ctx, page, b.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Content...)
		if p.Last() || len(p.Content) == 0 {
			return all, nil
		}
	}
	b.logger.Warn("stopped paging process instances", "pages", maxPages)
	return all, nil
}

func (b *HTTPBackend) GetProcessInstance(ctx context.Context, id string) (*models.ProcessInstance, error) {
	var inst models.ProcessInstance
	if err := b.getJSON(ctx, "/api/processInstance/"+url.PathEscape(id), &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (b *HTTPBackend) GetProcessDefinitionXML(ctx context.Context, id string) (string, error) {
	body, err := b.get(ctx, "/api/processDefinition/"+url.PathEscape(id), "application/xml, text/xml, */*")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (b *HTTPBackend) getJSON(ctx context.Context, endpoint string, out any) error {
	body, err := b.get(ctx, endpoint, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

func (b *HTTPBackend) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	route := endpoint
	if i := strings.IndexByte(route, '?'); i >= 0 {
		route = route[:i]
	}
	ctx, span := b.tracer.Start(ctx, "GET "+route, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("endpoint", route))
	b.requests.Add(ctx, 1, attrs)

	body, err := b.do(ctx, endpoint, accept)
	if err != nil {
		b.failures.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Error("backend request failed", "endpoint", route, "error", err)
		return nil, err
	}
	return body, nil
}

func (b *HTTPBackend) do(ctx context.Context, endpoint, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("API Error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
