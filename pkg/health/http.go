package health

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"
)

// HTTPChecker probes an application URL served by the server
type HTTPChecker struct {
	// URL is the URL to request (e.g., "https://localhost:9443/health")
	URL string

	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 499)
	ExpectedStatusMax int

	Client *http.Client
}

// NewHTTPChecker creates a probe for url. Any response below 500 means the
// server is up, even if the application answers with an error.
func NewHTTPChecker(url string) *HTTPChecker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: true, // Development servers use self-signed certificates
		MinVersion:         tls.VersionTLS12,
	}

	return &HTTPChecker{
		URL:               url,
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 499,
		Client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}
}

// Check performs the HTTP probe
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return result(start, false, "failed to create request: %v", err)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return result(start, false, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < h.ExpectedStatusMin || resp.StatusCode > h.ExpectedStatusMax {
		return result(start, false, "HTTP %d %s (expected %d-%d)",
			resp.StatusCode, http.StatusText(resp.StatusCode), h.ExpectedStatusMin, h.ExpectedStatusMax)
	}
	return result(start, true, "HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

// Type returns the probe type
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

// WithStatusRange sets the expected status code range
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout sets the HTTP client timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}
