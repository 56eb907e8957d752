// Package portalapi provides bearer-authenticated access to the clinician
// portal's single-document API.
package portalapi

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"context"

	"github.com/rotisserie/eris"

	"github.com/silverline-health/ordersync/internal/resilience"
)

// Client defines the portal document API operations used by the pipeline.
type Client interface {
	GetFile(ctx context.Context, docID string) (*Document, error)
}

// DocumentType is the portal's type descriptor for a document.
type DocumentType struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

// Name returns the display name, falling back to the code.
func (t DocumentType) Name() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Code
}

// Document is the decoded payload of one portal document.
type Document struct {
	DocumentType      DocumentType
	PatientName       string
	PatientID         string
	SendDate          string
	PhysicianSignDate string
	CareProvider      string
	Buffer            []byte
}

type getFileResponse struct {
	IsSuccess bool   `json:"isSuccess"`
	Message   string `json:"message"`
	Value     struct {
		DocumentType      DocumentType `json:"documentType"`
		PatientName       string       `json:"patientName"`
		PatientID         string       `json:"patientId"`
		SendDate          string       `json:"sendDate"`
		PhysicianSignDate string       `json:"physicianSigndate"`
		CareProvider      string       `json:"careProvider"`
		DocumentBuffer    string       `json:"documentBuffer"`
	} `json:"value"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a portal document API client.
func NewClient(baseURL, token string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetFile fetches one document by portal ID and decodes its PDF buffer.
func (c *httpClient) GetFile(ctx context.Context, docID string) (*Document, error) {
	url := c.baseURL + "/document/getfile?docId.id=" + docID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "portalapi: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "portalapi: get file %s", docID)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "portalapi: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Wrapf(resilience.NewStatusError(resp.StatusCode, string(body)), "portalapi: get file %s", docID)
	}

	var decoded getFileResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, eris.Wrapf(err, "portalapi: unmarshal response for %s", docID)
	}
	if !decoded.IsSuccess {
		return nil, eris.Errorf("portalapi: get file %s: success flag false: %s", docID, decoded.Message)
	}

	buf, err := base64.StdEncoding.DecodeString(decoded.Value.DocumentBuffer)
	if err != nil {
		return nil, eris.Wrapf(err, "portalapi: decode document buffer for %s", docID)
	}

	return &Document{
		DocumentType:      decoded.Value.DocumentType,
		PatientName:       decoded.Value.PatientName,
		PatientID:         decoded.Value.PatientID,
		SendDate:          decoded.Value.SendDate,
		PhysicianSignDate: decoded.Value.PhysicianSignDate,
		CareProvider:      decoded.Value.CareProvider,
		Buffer:            buf,
	}, nil
}
