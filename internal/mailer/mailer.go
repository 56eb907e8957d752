// Package mailer delivers the end-of-run summary over SMTP.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/config"
	"github.com/silverline-health/ordersync/internal/model"
)

// sendFunc matches smtp.SendMail, substituted in tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends run summaries. A Mailer with no host configured is a no-op.
type Mailer struct {
	cfg  config.SMTPConfig
	send sendFunc
}

// New creates a Mailer from config.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// CompanySummary is one company's line in the summary email.
type CompanySummary struct {
	CompanyName string
	Status      model.RunStatus
	Documents   int
	Uploaded    int
	Failed      int
	SkipReason  string
	ReportPath  string
}

// SendRunSummary emails the per-company outcome table. With no SMTP host
// configured the summary is logged and delivery is skipped.
func (m *Mailer) SendRunSummary(summaries []CompanySummary) error {
	subject, body := composeSummary(summaries)

	if m.cfg.Host == "" || len(m.cfg.To) == 0 {
		zap.L().Info("smtp not configured, skipping summary email",
			zap.String("subject", subject))
		return nil
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		m.cfg.From, strings.Join(m.cfg.To, ", "), subject, body))

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, m.cfg.To, msg); err != nil {
		return eris.Wrapf(err, "mailer: send via %s", m.cfg.Host)
	}

	zap.L().Info("summary email sent",
		zap.Strings("to", m.cfg.To), zap.Int("companies", len(summaries)))
	return nil
}

func composeSummary(summaries []CompanySummary) (subject, body string) {
	totalDocs, totalUploaded, totalFailed := 0, 0, 0
	for _, s := range summaries {
		totalDocs += s.Documents
		totalUploaded += s.Uploaded
		totalFailed += s.Failed
	}
	subject = fmt.Sprintf("Order sync: %d companies, %d uploaded, %d failed",
		len(summaries), totalUploaded, totalFailed)

	var b strings.Builder
	b.WriteString("Order ingestion run summary\n\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "%s: %s\n", s.CompanyName, s.Status)
		if s.SkipReason != "" {
			fmt.Fprintf(&b, "  skipped: %s\n", s.SkipReason)
			continue
		}
		fmt.Fprintf(&b, "  documents: %d, uploaded: %d, failed: %d\n",
			s.Documents, s.Uploaded, s.Failed)
		if s.ReportPath != "" {
			fmt.Fprintf(&b, "  report: %s\n", s.ReportPath)
		}
	}
	fmt.Fprintf(&b, "\nTotals: %d documents, %d uploaded, %d failed\n",
		totalDocs, totalUploaded, totalFailed)
	return subject, b.String()
}
