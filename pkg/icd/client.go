// Package icd validates ICD-10/9 diagnosis codes against the public
// icd10api service.
package icd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/silverline-health/ordersync/internal/resilience"
)

// codeShapeRe is a cheap pre-filter: ICD-10-CM (letter, two digits, optional
// dotted extension) or numeric ICD-9.
var codeShapeRe = regexp.MustCompile(`^(?:[A-TV-Z]\d[0-9A-Z](?:\.[0-9A-Z]{1,4})?|\d{3}(?:\.\d{1,2})?)$`)

// WellFormed reports whether a code has a plausible ICD shape. Codes failing
// this check are rejected without an API call.
func WellFormed(code string) bool {
	return codeShapeRe.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}

// Client validates diagnosis codes.
type Client interface {
	Validate(ctx context.Context, code string) (bool, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps validation calls per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]bool
}

// NewClient creates an ICD validation client with a run-scoped result cache.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		cache:   make(map[string]bool),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Validate reports whether the code is a known ICD-10/9 code. The presence
// of a Description in the response is the validity signal.
func (c *httpClient) Validate(ctx context.Context, code string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !WellFormed(code) {
		return false, nil
	}

	c.mu.Lock()
	if valid, ok := c.cache[code]; ok {
		c.mu.Unlock()
		return valid, nil
	}
	c.mu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, eris.Wrap(err, "icd: rate limit")
		}
	}

	valid, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) (bool, error) {
		return c.lookup(ctx, code)
	})
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.cache[code] = valid
	c.mu.Unlock()
	return valid, nil
}

func (c *httpClient) lookup(ctx context.Context, code string) (bool, error) {
	q := url.Values{}
	q.Set("code", code)
	q.Set("r", "json")
	q.Set("desc", "long")
	q.Set("type", "cm")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return false, eris.Wrap(err, "icd: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, eris.Wrapf(err, "icd: lookup %s", code)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, eris.Wrap(err, "icd: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return false, eris.Wrapf(resilience.NewStatusError(resp.StatusCode, string(body)), "icd: lookup %s", code)
	}

	var decoded struct {
		Description string `json:"Description"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return false, eris.Wrapf(err, "icd: unmarshal response for %s", code)
	}
	return decoded.Description != "", nil
}
