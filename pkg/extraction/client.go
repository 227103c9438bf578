// Package extraction provides a client for the check scanning service that
// turns lockbox document images into structured donation records.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/donation-cli/internal/model"
	"github.com/sells-group/donation-cli/internal/resilience"
)

// Client defines the extraction service operations.
type Client interface {
	// ExtractDocument uploads a scanned document and returns the donation
	// records the service read out of it.
	ExtractDocument(ctx context.Context, filename string, content io.Reader) ([]model.RawRecord, error)
}

// extractResponse is the parsed service response.
type extractResponse struct {
	Records []map[string]string `json:"records"`
}

// Option configures the extraction client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithCircuitBreaker sets the breaker guarding the service.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	breaker *resilience.CircuitBreaker
}

// NewClient creates an extraction service client.
func NewClient(apiKey, baseURL string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitConfig{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ExtractDocument(ctx context.Context, filename string, content io.Reader) ([]model.RawRecord, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return nil, eris.Wrap(err, "extraction: create form file")
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, eris.Wrap(err, "extraction: copy document")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "extraction: close form")
	}

	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]model.RawRecord, error) {
		return c.extract(ctx, &buf, mw.FormDataContentType())
	})
}

func (c *httpClient) extract(ctx context.Context, body io.Reader, contentType string) ([]model.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/v1/extract", c.baseURL), body)
	if err != nil {
		return nil, eris.Wrap(err, "extraction: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "extraction: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "extraction: read response body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("extraction: status %d: %s", resp.StatusCode, string(respBody)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("extraction: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result extractResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "extraction: unmarshal response")
	}

	records := make([]model.RawRecord, len(result.Records))
	for i, r := range result.Records {
		records[i] = model.RawRecord(r)
	}
	return records, nil
}
