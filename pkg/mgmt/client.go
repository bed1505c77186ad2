package mgmt

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuemby/olrunner/pkg/log"
	"github.com/cuemby/olrunner/pkg/metrics"
	"github.com/cuemby/olrunner/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultResourcesPath is the discovery root of the REST connector
	DefaultResourcesPath = "/IBMJMXConnectorREST/mbeans"

	// DefaultTimeout bounds every single HTTP request
	DefaultTimeout = 5 * time.Second

	// DefaultRetryDelay is the fixed pause between attempts
	DefaultRetryDelay = time.Second

	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3

	invokeBody = `{"params":[],"signature":[]}`
)

// Config holds the settings for a management client
type Config struct {
	// Endpoint is the management endpoint; only scheme and host are used
	Endpoint string

	Username string
	Password string

	// Timeout bounds each HTTP request (default: 5s)
	Timeout time.Duration

	// MaxRetries is the number of retries after a transient failure
	MaxRetries int

	// RetryDelay is the fixed delay between attempts (default: 1s)
	RetryDelay time.Duration

	// ResourcesPath overrides DefaultResourcesPath
	ResourcesPath string

	// Transport overrides the TLS-relaxed default transport
	Transport http.RoundTripper
}

// Client talks to the management endpoint of one server. It discovers
// resources by query and navigates the links embedded in their documents.
type Client struct {
	base          *url.URL
	resourcesPath string
	authHeader    string
	httpClient    *http.Client
	maxRetries    int
	retryDelay    time.Duration
	logger        zerolog.Logger
}

// NewClient validates cfg and creates a client
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, &ConfigurationError{Field: "endpoint", Reason: "is required"}
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Host == "" {
		return nil, &ConfigurationError{Field: "endpoint", Reason: fmt.Sprintf("%q is not an absolute URL", cfg.Endpoint)}
	}
	if cfg.Username == "" {
		return nil, &ConfigurationError{Field: "username", Reason: "must not be empty"}
	}
	if cfg.Password == "" {
		return nil, &ConfigurationError{Field: "password", Reason: "must not be empty"}
	}
	if cfg.MaxRetries < 0 {
		return nil, &ConfigurationError{Field: "max retries", Reason: fmt.Sprintf("must not be negative, got %d", cfg.MaxRetries)}
	}
	if cfg.Timeout < 0 {
		return nil, &ConfigurationError{Field: "timeout", Reason: "must not be negative"}
	}
	if cfg.RetryDelay < 0 {
		return nil, &ConfigurationError{Field: "retry delay", Reason: "must not be negative"}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}
	resourcesPath := cfg.ResourcesPath
	if resourcesPath == "" {
		resourcesPath = DefaultResourcesPath
	}

	transport := cfg.Transport
	if transport == nil {
		transport = newInsecureTransport()
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))

	return &Client{
		base:          baseURL(endpoint),
		resourcesPath: resourcesPath,
		authHeader:    "Basic " + credentials,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
		logger:     log.WithComponent("mgmt-client"),
	}, nil
}

// newInsecureTransport accepts the server's locally generated certificate.
// The relaxation is scoped to management clients only.
func newInsecureTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: true, // Server uses a self-signed development certificate
		MinVersion:         tls.VersionTLS12,
	}
	return transport
}

// BaseURL returns the scheme and host the client talks to
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// resourceEntry is one element of a discovery response
type resourceEntry struct {
	ObjectName string `json:"objectName"`
	ClassName  string `json:"className"`
	URL        string `json:"URL"`
}

// ListResources returns every resource the server exposes
func (c *Client) ListResources(ctx context.Context) ([]types.ManagedResourceRef, error) {
	return c.Discover(ctx, "", "")
}

// Discover returns the resources matching the object and class queries.
// Either query may be empty. Zero matches is not an error.
func (c *Client) Discover(ctx context.Context, objectQuery, classQuery string) ([]types.ManagedResourceRef, error) {
	target := c.discoveryURL(objectQuery, classQuery)

	data, err := c.do(ctx, http.MethodGet, target, nil, c.maxRetries)
	if err != nil {
		return nil, err
	}
	return decodeResources(target, data)
}

func (c *Client) discoveryURL(objectQuery, classQuery string) string {
	u := c.BaseURL()
	u.Path = c.resourcesPath

	query := url.Values{}
	if objectQuery != "" {
		query.Set("objectName", objectQuery)
	}
	if classQuery != "" {
		query.Set("className", classQuery)
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func decodeResources(target string, data []byte) ([]types.ManagedResourceRef, error) {
	var entries []resourceEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &ResourceShapeError{URL: target, Err: err}
	}

	refs := make([]types.ManagedResourceRef, 0, len(entries))
	for i, entry := range entries {
		if entry.ObjectName == "" {
			return nil, &ResourceShapeError{URL: target, Field: fmt.Sprintf("[%d].objectName", i)}
		}
		if entry.URL == "" {
			return nil, &ResourceShapeError{URL: target, Field: fmt.Sprintf("[%d].URL", i)}
		}
		refs = append(refs, types.ManagedResourceRef{
			ResourceID:   entry.ObjectName,
			ResourceType: entry.ClassName,
			DetailURL:    entry.URL,
		})
	}
	return refs, nil
}

// detailDocument is the resource detail document
type detailDocument struct {
	AttributesURL string           `json:"attributes_URL"`
	Operations    *[]operationItem `json:"operations"`
}

type operationItem struct {
	Name      string            `json:"name"`
	URL       string            `json:"URL"`
	Signature []json.RawMessage `json:"signature"`
}

func (c *Client) fetchDetail(ctx context.Context, ref types.ManagedResourceRef) (string, *detailDocument, error) {
	if ref.DetailURL == "" {
		return "", nil, &ResourceShapeError{URL: ref.ResourceID, Field: "URL"}
	}
	target, err := c.resolve(ref.DetailURL)
	if err != nil {
		return "", nil, err
	}

	data, err := c.do(ctx, http.MethodGet, target, nil, c.maxRetries)
	if err != nil {
		return "", nil, err
	}

	var doc detailDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return target, nil, &ResourceShapeError{URL: target, Err: err}
	}
	return target, &doc, nil
}

// attributeItem is one element of an attributes document
type attributeItem struct {
	Name  string `json:"name"`
	Value *struct {
		Value json.RawMessage `json:"value"`
		Type  string          `json:"type"`
	} `json:"value"`
}

// FetchAttributes reads all attributes of a resource by following the
// attributes link of its detail document.
func (c *Client) FetchAttributes(ctx context.Context, ref types.ManagedResourceRef) ([]types.TypedAttribute, error) {
	detailURL, doc, err := c.fetchDetail(ctx, ref)
	if err != nil {
		return nil, err
	}
	if doc.AttributesURL == "" {
		return nil, &ResourceShapeError{URL: detailURL, Field: "attributes_URL"}
	}

	target, err := c.resolve(doc.AttributesURL)
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodGet, target, nil, c.maxRetries)
	if err != nil {
		return nil, err
	}

	var items []attributeItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &ResourceShapeError{URL: target, Err: err}
	}

	attrs := make([]types.TypedAttribute, 0, len(items))
	for _, item := range items {
		attr := types.TypedAttribute{Name: item.Name}
		if item.Value != nil {
			attr.Value = rawText(item.Value.Value)
			attr.DeclaredType = item.Value.Type
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// ListOperations returns the operations declared by a resource's detail document
func (c *Client) ListOperations(ctx context.Context, ref types.ManagedResourceRef) ([]types.OperationDescriptor, error) {
	detailURL, doc, err := c.fetchDetail(ctx, ref)
	if err != nil {
		return nil, err
	}
	if doc.Operations == nil {
		return nil, &ResourceShapeError{URL: detailURL, Field: "operations"}
	}

	ops := make([]types.OperationDescriptor, 0, len(*doc.Operations))
	for _, item := range *doc.Operations {
		op := types.OperationDescriptor{
			Name:      item.Name,
			InvokeURL: item.URL,
			Signature: make([]string, 0, len(item.Signature)),
		}
		for _, param := range item.Signature {
			op.Signature = append(op.Signature, signatureType(param))
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Invoke runs the named no-argument operation on a resource. The operation
// list is fetched on every call, one extra round trip, because operation URLs
// can change across server restarts. A missing operation returns false with a
// nil error; callers must check the result.
func (c *Client) Invoke(ctx context.Context, ref types.ManagedResourceRef, operation string) (bool, error) {
	logger := c.logger.With().Str("resource_id", ref.ResourceID).Str("operation", operation).Logger()

	ops, err := c.ListOperations(ctx, ref)
	if err != nil {
		return false, err
	}

	for _, op := range ops {
		if op.Name != operation {
			continue
		}
		if op.InvokeURL == "" {
			return false, &ResourceShapeError{URL: ref.DetailURL, Field: "operations[" + operation + "].URL"}
		}
		target, err := c.resolve(op.InvokeURL)
		if err != nil {
			return false, err
		}
		if _, err := c.do(ctx, http.MethodPost, target, []byte(invokeBody), c.maxRetries); err != nil {
			logger.Error().Err(err).Msg("Operation invocation failed")
			return false, err
		}
		logger.Debug().Msg("Operation invoked")
		return true, nil
	}

	logger.Debug().Int("available", len(ops)).Msg("Operation not found")
	return false, nil
}

// IsReachable reports whether the endpoint answers an authenticated
// discovery request. It makes a single attempt and never returns an error.
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.do(ctx, http.MethodGet, c.discoveryURL("", ""), nil, 0)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Management endpoint not reachable")
		return false
	}
	return true
}

func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", &ResourceShapeError{URL: ref, Err: err}
	}
	return c.base.ResolveReference(u).String(), nil
}

// do sends a request, retrying transient failures up to maxRetries times
// with a fixed delay between attempts.
func (c *Client) do(ctx context.Context, method, target string, body []byte, maxRetries int) ([]byte, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ManagementRequestDuration, method)

	attempts := maxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Debug().Str("method", method).Str("url", target).Int("attempt", attempt).Msg("Sending request")
		data, err := c.attempt(ctx, method, target, body)
		if err == nil {
			metrics.ManagementRequestsTotal.WithLabelValues(method, "success").Inc()
			return data, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			metrics.ManagementRequestsTotal.WithLabelValues(method, "permanent").Inc()
			return nil, c.failure(method, target, attempt, err)
		}
		if attempt == attempts {
			break
		}

		metrics.ManagementRetriesTotal.Inc()
		c.logger.Debug().Err(err).Str("url", target).Dur("delay", c.retryDelay).Msg("Transient failure, retrying")
		if err := c.pause(ctx); err != nil {
			metrics.ManagementRequestsTotal.WithLabelValues(method, "cancelled").Inc()
			return nil, c.failure(method, target, attempt, lastErr)
		}
	}

	metrics.ManagementRequestsTotal.WithLabelValues(method, "exhausted").Inc()
	c.logger.Warn().Err(lastErr).Str("url", target).Int("attempts", attempts).Msg("Request failed after retries")
	return nil, c.failure(method, target, attempts, lastErr)
}

// pause waits the full retry delay after a failed attempt. The limiter is
// created with its only token spent, so Wait blocks for one whole interval.
func (c *Client) pause(ctx context.Context) error {
	pacer := rate.NewLimiter(rate.Every(c.retryDelay), 1)
	pacer.Allow()
	return pacer.Wait(ctx)
}

func (c *Client) failure(method, target string, attempts int, err error) *RequestFailedError {
	rf := &RequestFailedError{
		Method:   method,
		URL:      target,
		Attempts: attempts,
		Err:      err,
	}
	if se, ok := err.(*statusError); ok {
		rf.StatusCode = se.StatusCode
		rf.Server = se.Server
	}
	return rf
}

func (c *Client) attempt(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &permanentError{err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &statusError{
			StatusCode: resp.StatusCode,
			Server:     decodeServerError(data),
		}
	}
	return data, nil
}

// decodeServerError parses {"error": ..., "throwable": base64}
func decodeServerError(data []byte) *ServerError {
	var body struct {
		Error     string `json:"error"`
		Throwable string `json:"throwable"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return nil
	}

	se := &ServerError{Message: body.Error}
	if body.Throwable != "" {
		if decoded, err := base64.StdEncoding.DecodeString(body.Throwable); err == nil {
			se.Throwable = string(decoded)
		} else {
			se.Throwable = body.Throwable
		}
	}
	return se
}

// rawText renders a JSON value as text, unquoting strings
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// signatureType accepts either a bare type string or {"name":..,"type":..}
func signatureType(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var param struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &param); err == nil && param.Type != "" {
		return param.Type
	}
	return string(raw)
}
