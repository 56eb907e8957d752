package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverline-health/ordersync/internal/config"
	"github.com/silverline-health/ordersync/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	runs := []model.Run{
		{
			ID: "run-1", CompanyKey: "acme", Status: model.RunStatusComplete,
			Result:    &model.RunResult{Documents: 12, Uploaded: 10, Failed: 2},
			UpdatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID: "run-2", CompanyKey: "beta", Status: model.RunStatusFailed,
			UpdatedAt: time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "acme")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "12")
	// Runs without a result render placeholders.
	assert.Contains(t, out, "-")
}

func TestCompanyByKey(t *testing.T) {
	old := cfg
	defer func() { cfg = old }()
	cfg = &config.Config{Companies: []model.CompanyConfig{{Key: "acme", Name: "Acme"}}}

	company, err := companyByKey("acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", company.Name)

	_, err = companyByKey("missing")
	assert.ErrorContains(t, err, "unknown company key")
}
