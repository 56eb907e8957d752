package portalapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverline-health/ordersync/internal/resilience"
)

func TestGetFile(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake content")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "8843621", r.URL.Query().Get("docId.id"))
		fmt.Fprintf(w, `{
			"isSuccess": true,
			"value": {
				"documentType": {"code": "485", "displayName": "Plan of Care"},
				"patientName": "DOE, JANE",
				"patientId": "P-1",
				"sendDate": "07/03/2025",
				"physicianSigndate": "07/02/2025",
				"careProvider": "Example Home Health",
				"documentBuffer": %q
			}
		}`, base64.StdEncoding.EncodeToString(pdf))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	doc, err := c.GetFile(context.Background(), "8843621")
	require.NoError(t, err)

	assert.Equal(t, pdf, doc.Buffer)
	assert.Equal(t, "Plan of Care", doc.DocumentType.Name())
	assert.Equal(t, "DOE, JANE", doc.PatientName)
	assert.Equal(t, "07/03/2025", doc.SendDate)
	assert.Equal(t, "Example Home Health", doc.CareProvider)
}

func TestGetFile_TypeNameFallsBackToCode(t *testing.T) {
	dt := DocumentType{Code: "485"}
	assert.Equal(t, "485", dt.Name())
}

func TestGetFile_SuccessFlagFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"isSuccess": false, "message": "document not available"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.GetFile(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "success flag false")
}

func TestGetFile_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such document", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.GetFile(context.Background(), "999")
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
	assert.False(t, resilience.IsTransient(err))
}

func TestGetFile_BadBase64(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"isSuccess": true, "value": {"documentBuffer": "!!!not-base64!!!"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	_, err := c.GetFile(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode document buffer")
}
