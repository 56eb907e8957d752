// Package platform provides REST access to the downstream order platform.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/resilience"
)

// Client defines the platform operations used by the pipeline.
type Client interface {
	ListPatients(ctx context.Context, pgCompanyID string) ([]model.PlatformPatient, error)
	CreatePatient(ctx context.Context, req CreatePatientRequest) (string, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (string, error)
	UploadOrderPDF(ctx context.Context, orderID, filename string, pdf []byte) error
	ListEntities(ctx context.Context, entityType string) ([]Entity, error)
	ListOrders(ctx context.Context, pgCompanyID string) ([]ExistingOrder, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithRateLimit sets a per-second rate limit for platform calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL     string
	functionKey string
	http        *http.Client
	limiter     *rate.Limiter
	breaker     *resilience.CircuitBreaker
}

// NewClient creates a platform API client. functionKey is optional and sent
// as x-functions-key when present.
func NewClient(baseURL, functionKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		functionKey: functionKey,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: resilience.NewCircuitBreaker(5, 30*time.Second),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "platform: rate limit")
	}
	if err := c.breaker.Allow(); err != nil {
		return nil, eris.Wrapf(err, "platform: %s %s", method, path)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, eris.Wrap(err, "platform: create request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.functionKey != "" {
		req.Header.Set("x-functions-key", c.functionKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		wrapped := eris.Wrapf(resilience.NewTransientError(err), "platform: %s %s", method, path)
		c.breaker.Record(wrapped)
		return nil, wrapped
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "platform: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		wrapped := eris.Wrapf(resilience.NewStatusError(resp.StatusCode, string(respBody)), "platform: %s %s", method, path)
		c.breaker.Record(wrapped)
		return nil, wrapped
	}
	c.breaker.Record(nil)
	return respBody, nil
}

func (c *httpClient) ListPatients(ctx context.Context, pgCompanyID string) ([]model.PlatformPatient, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/Patient/company/pg/"+pgCompanyID, nil, "")
	if err != nil {
		return nil, err
	}

	var patients []model.PlatformPatient
	if err := json.Unmarshal(body, &patients); err != nil {
		return nil, eris.Wrap(err, "platform: unmarshal patient catalog")
	}
	return patients, nil
}

func (c *httpClient) CreatePatient(ctx context.Context, req CreatePatientRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", eris.Wrap(err, "platform: marshal patient")
	}

	body, err := c.do(ctx, http.MethodPost, "/api/Patient/create", bytes.NewReader(payload), "application/json")
	if err != nil {
		return "", err
	}
	return parseCreatedID(body), nil
}

func (c *httpClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", eris.Wrap(err, "platform: marshal order")
	}

	body, err := c.do(ctx, http.MethodPost, "/api/Order", bytes.NewReader(payload), "application/json")
	if err != nil {
		return "", err
	}
	return parseCreatedID(body), nil
}

func (c *httpClient) UploadOrderPDF(ctx context.Context, orderID, filename string, pdf []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("orderId", orderID); err != nil {
		return eris.Wrap(err, "platform: write orderId field")
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return eris.Wrap(err, "platform: create form file")
	}
	if _, err := part.Write(pdf); err != nil {
		return eris.Wrap(err, "platform: write pdf bytes")
	}
	if err := mw.Close(); err != nil {
		return eris.Wrap(err, "platform: close multipart writer")
	}

	_, err = c.do(ctx, http.MethodPost, "/api/OrderPdfUpload/upload", &buf, mw.FormDataContentType())
	return err
}

func (c *httpClient) ListEntities(ctx context.Context, entityType string) ([]Entity, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/Entity?EntityType="+entityType, nil, "")
	if err != nil {
		return nil, err
	}

	var entities []Entity
	if err := json.Unmarshal(body, &entities); err != nil {
		return nil, eris.Wrap(err, "platform: unmarshal entities")
	}
	return entities, nil
}

func (c *httpClient) ListOrders(ctx context.Context, pgCompanyID string) ([]ExistingOrder, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/Order/pg/"+pgCompanyID, nil, "")
	if err != nil {
		return nil, err
	}

	var orders []ExistingOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, eris.Wrap(err, "platform: unmarshal orders")
	}
	return orders, nil
}

// parseCreatedID extracts the created record id from a 2xx body: either a
// JSON object with an id field or a bare string.
func parseCreatedID(body []byte) string {
	var withID struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &withID); err == nil && withID.ID != "" {
		return withID.ID
	}

	var bare string
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare
	}
	return strings.Trim(strings.TrimSpace(string(body)), `"`)
}
