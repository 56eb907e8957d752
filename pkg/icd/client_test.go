package icd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWellFormed(t *testing.T) {
	assert.True(t, WellFormed("I10"))
	assert.True(t, WellFormed("E11.9"))
	assert.True(t, WellFormed("M54.50"))
	assert.True(t, WellFormed("250.00")) // ICD-9
	assert.False(t, WellFormed("U07"))   // U-codes excluded from CM letter set
	assert.False(t, WellFormed("NOTACODE"))
	assert.False(t, WellFormed(""))
	assert.False(t, WellFormed("1"))
}

func TestValidate(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Query().Get("code") {
		case "I10":
			fmt.Fprint(w, `{"Name": "I10", "Description": "Essential (primary) hypertension"}`)
		default:
			fmt.Fprint(w, `{"Response": "False"}`)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	valid, err := c.Validate(context.Background(), "I10")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = c.Validate(context.Background(), "Z99.9")
	require.NoError(t, err)
	assert.False(t, valid)

	// Second lookup of the same code hits the cache.
	_, err = c.Validate(context.Background(), "I10")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestValidate_MalformedShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no API call expected for malformed codes")
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	valid, err := c.Validate(context.Background(), "garbage")
	require.NoError(t, err)
	assert.False(t, valid)
}
