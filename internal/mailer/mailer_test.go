package mailer

import (
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverline-health/ordersync/internal/config"
	"github.com/silverline-health/ordersync/internal/model"
)

func summaries() []CompanySummary {
	return []CompanySummary{
		{CompanyName: "Acme Home Health", Status: model.RunStatusComplete,
			Documents: 20, Uploaded: 18, Failed: 2, ReportPath: "/out/acme/report.xlsx"},
		{CompanyName: "Beta Care", Status: model.RunStatusSkipped,
			SkipReason: "no documents in window"},
	}
}

func TestComposeSummary(t *testing.T) {
	subject, body := composeSummary(summaries())

	assert.Equal(t, "Order sync: 2 companies, 18 uploaded, 2 failed", subject)
	assert.Contains(t, body, "Acme Home Health: complete")
	assert.Contains(t, body, "documents: 20, uploaded: 18, failed: 2")
	assert.Contains(t, body, "Beta Care: skipped")
	assert.Contains(t, body, "skipped: no documents in window")
	assert.Contains(t, body, "Totals: 20 documents, 18 uploaded, 2 failed")
}

func TestSendRunSummary(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	m := New(config.SMTPConfig{
		Host: "mail.example.com", Port: 587,
		Username: "svc", Password: "secret",
		From: "ordersync@example.com", To: []string{"ops@example.com"},
	})
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.SendRunSummary(summaries()))

	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, "ordersync@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Order sync")
	assert.Contains(t, string(gotMsg), "Acme Home Health")
}

func TestSendSkippedWithoutConfig(t *testing.T) {
	m := New(config.SMTPConfig{})
	called := false
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	require.NoError(t, m.SendRunSummary(summaries()))
	assert.False(t, called, "no smtp host means no delivery attempt")
}
