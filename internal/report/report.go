// Package report derives the two-sheet processing report from upload
// outcomes and lays out the per-run artifact folder tree.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/workbook"
	"github.com/silverline-health/ordersync/pkg/drive"
)

// Summary counts the classification result for the run summary email.
type Summary struct {
	Total      int
	Successful int
	Failed     int
	ReportPath string
}

// Reporter writes processing reports. uploader may be nil; failed rows then
// carry no PDF link.
type Reporter struct {
	uploader drive.Uploader
}

// New creates a Reporter.
func New(uploader drive.Uploader) *Reporter {
	return &Reporter{uploader: uploader}
}

// Write splits records by the success predicate and writes the two-sheet
// report to path.
func (r *Reporter) Write(ctx context.Context, path string, company model.CompanyConfig, records []model.SupremeRecord, outcomes []model.UploadOutcome) (*Summary, error) {
	if len(records) != len(outcomes) {
		return nil, eris.Errorf("report: %d records but %d outcomes", len(records), len(outcomes))
	}

	var success, failed []workbook.Row
	for i, outcome := range outcomes {
		if outcome.Successful() {
			success = append(success, workbook.OutcomeToRow(records[i], outcome))
			continue
		}
		failed = append(failed, r.failedRow(ctx, company, records[i], outcome))
	}

	sheets := []workbook.Sheet{
		{Schema: workbook.SuccessSchema, Rows: success},
		{Schema: workbook.FailedSchema, Rows: failed},
	}
	if err := workbook.WriteSheets(path, sheets); err != nil {
		return nil, err
	}

	zap.L().Info("report written",
		zap.String("company", company.Key),
		zap.String("path", path),
		zap.Int("successful", len(success)),
		zap.Int("failed", len(failed)))

	return &Summary{
		Total:      len(outcomes),
		Successful: len(success),
		Failed:     len(failed),
		ReportPath: path,
	}, nil
}

// failedRow projects one failed record onto the Failed sheet, enriching it
// with a shared PDF link when a drive is configured. Link failures are
// tolerated; the row ships without one.
func (r *Reporter) failedRow(ctx context.Context, company model.CompanyConfig, rec model.SupremeRecord, outcome model.UploadOutcome) workbook.Row {
	row := workbook.Row{
		"docid":          rec.Doc.DocID,
		"patient_name":   rec.Fields.PatientName,
		"dob":            rec.Fields.DOB,
		"dabackofficeid": rec.DABackOfficeID,
		"mrn_number":     rec.Fields.MRN,
		"pg_name":        company.Name,
		"agency_name":    rec.CareProvider,
		"reason":         outcome.FailureReason(),
	}
	if row["patient_name"] == "" {
		row["patient_name"] = rec.PatientName
	}

	if r.uploader != nil && rec.PDFReady && rec.PDFPath != "" {
		if pdf, err := os.ReadFile(rec.PDFPath); err == nil {
			object := fmt.Sprintf("%s/%s.pdf", company.Key, rec.Doc.DocID)
			link, err := r.uploader.UploadPDF(ctx, object, pdf)
			if err != nil {
				zap.L().Warn("pdf link upload failed",
					zap.String("docid", rec.Doc.DocID), zap.Error(err))
			} else {
				row["pdf_link"] = link
			}
		}
	}
	return row
}

// RunDirs is the per-company, per-window artifact tree.
type RunDirs struct {
	Root         string
	Intermediate string
	Uploads      string
	Reports      string
}

// Stage artifact locations within the tree. The pdf directory is created
// lazily by the acquisition stage.

func (d *RunDirs) DocumentsPath() string { return filepath.Join(d.Intermediate, "documents.xlsx") }
func (d *RunDirs) CombinedPath() string  { return filepath.Join(d.Intermediate, "combined.xlsx") }
func (d *RunDirs) SupremePath() string   { return filepath.Join(d.Intermediate, "supreme.xlsx") }
func (d *RunDirs) UploadsPath() string   { return filepath.Join(d.Uploads, "uploads.xlsx") }
func (d *RunDirs) ReportPath() string    { return filepath.Join(d.Reports, "report.xlsx") }
func (d *RunDirs) PDFDir() string        { return filepath.Join(d.Intermediate, "pdfs") }

// MakeRunDirs creates outputs/<Company>/<start>__to__<end>/{intermediate,
// uploads,reports}. An existing tree gets a numeric suffix rather than being
// reused.
func MakeRunDirs(baseDir string, company model.CompanyConfig) (*RunDirs, error) {
	window := fmt.Sprintf("%s__to__%s",
		strings.ReplaceAll(company.StartDate, "/", "-"),
		strings.ReplaceAll(company.EndDate, "/", "-"))
	root := filepath.Join(baseDir, sanitizeName(company.Name), window)

	candidate := root
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			break
		}
		candidate = fmt.Sprintf("%s_%d", root, i)
	}

	dirs := &RunDirs{
		Root:         candidate,
		Intermediate: filepath.Join(candidate, "intermediate"),
		Uploads:      filepath.Join(candidate, "uploads"),
		Reports:      filepath.Join(candidate, "reports"),
	}
	for _, d := range []string{dirs.Intermediate, dirs.Uploads, dirs.Reports} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, eris.Wrapf(err, "report: create run dir %s", d)
		}
	}
	return dirs, nil
}

var nameSanitizer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unnamed"
	}
	return nameSanitizer.Replace(name)
}
