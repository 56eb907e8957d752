package textextract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var richText = `HOME HEALTH CERTIFICATION

Patient Name: Jane Doe
Date of Birth: 03/14/1952
MRN: AB12345
Address: 100 Main St, Springfield, TX 75001
Phone: (214) 555-0188

Physician: Dr. John Smith, NPI 1234567890
Agency: Silverline Home Health

Diagnosis: I10, E11.9
Plan of Care: skilled nurse visits twice weekly for medication management.
Start of Care: 01/05/2026
Certification episode 01/05/2026 through 03/05/2026.
Order signature on file.
` + strings.Repeat("Skilled nursing assessment and treatment notes for the episode. ", 20)

type stubEngine struct {
	name string
	text string
	err  error
	runs int
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Extract(_ context.Context, _ string) (string, error) {
	s.runs++
	return s.text, s.err
}

func tempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644))
	return path
}

func TestScoreRichMedicalText(t *testing.T) {
	score, m := Score(richText)
	assert.Greater(t, score, 60.0)
	assert.Greater(t, m.PrintableRatio, 0.95)
	assert.GreaterOrEqual(t, m.MedicalHits, 10)
	assert.GreaterOrEqual(t, m.Completeness, 3)
}

func TestScoreEmptyAndGarbage(t *testing.T) {
	score, _ := Score("")
	assert.Equal(t, 0.0, score)

	score, _ = Score("\x00\x01\x02\x03 xx")
	assert.Less(t, score, 40.0)
}

func TestExtractPicksBestEngine(t *testing.T) {
	good := &stubEngine{name: "pdftotext_layout", text: richText}
	bad := &stubEngine{name: "pdftotext_raw", text: "a b c"}
	ocr := &stubEngine{name: "ocr_psm3", text: richText}

	ex := newWithEngines([]Engine{bad, good}, []Engine{ocr}, 40)
	res, err := ex.Extract(context.Background(), tempPDF(t))
	require.NoError(t, err)

	assert.Equal(t, "pdftotext_layout", res.Method)
	assert.Equal(t, 0, ocr.runs, "ocr should not run when text engines score above threshold")
	assert.Greater(t, res.Confidence, 0.4)
}

func TestExtractFallsBackToOCR(t *testing.T) {
	weak := &stubEngine{name: "pdftotext_layout", text: "scanned page artifact"}
	ocr := &stubEngine{name: "ocr_psm3", text: richText}

	ex := newWithEngines([]Engine{weak}, []Engine{ocr}, 40)
	res, err := ex.Extract(context.Background(), tempPDF(t))
	require.NoError(t, err)

	assert.Equal(t, "ocr_psm3", res.Method)
	assert.Equal(t, 1, ocr.runs)
}

func TestExtractAllFail(t *testing.T) {
	failing := &stubEngine{name: "pdftotext_layout", err: eris.New("boom")}
	ocrFail := &stubEngine{name: "ocr_psm3", err: eris.New("no tesseract")}

	ex := newWithEngines([]Engine{failing}, []Engine{ocrFail}, 40)
	_, err := ex.Extract(context.Background(), tempPDF(t))
	assert.Error(t, err)
}

func TestExtractCaches(t *testing.T) {
	eng := &stubEngine{name: "pdftotext_layout", text: richText}
	ex := newWithEngines([]Engine{eng}, nil, 40)

	path := tempPDF(t)
	_, err := ex.Extract(context.Background(), path)
	require.NoError(t, err)
	_, err = ex.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, eng.runs)
}
