package textextract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Engine extracts text from a PDF file using one particular strategy.
type Engine interface {
	Name() string
	Extract(ctx context.Context, pdfPath string) (string, error)
}

// PdfToText runs the pdftotext CLI with a fixed set of flags.
type PdfToText struct {
	binPath string
	mode    string
	flags   []string
}

// NewPdfToText creates a pdftotext engine. mode names the strategy in results
// ("pdftotext_layout", "pdftotext_raw", "pdftotext_default").
func NewPdfToText(binPath, mode string, flags ...string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath, mode: mode, flags: flags}
}

func (p *PdfToText) Name() string { return p.mode }

func (p *PdfToText) Extract(ctx context.Context, pdfPath string) (string, error) {
	args := append(append([]string{}, p.flags...), pdfPath, "-")
	cmd := exec.CommandContext(ctx, p.binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "textextract: %s failed for %s: %s", p.mode, pdfPath, stderr.String())
	}

	return stdout.String(), nil
}

// Mutool runs mutool draw in text mode, which handles some layouts that
// pdftotext garbles.
type Mutool struct {
	binPath string
}

func NewMutool(binPath string) *Mutool {
	if binPath == "" {
		binPath = "mutool"
	}
	return &Mutool{binPath: binPath}
}

func (m *Mutool) Name() string { return "mutool_text" }

func (m *Mutool) Extract(ctx context.Context, pdfPath string) (string, error) {
	cmd := exec.CommandContext(ctx, m.binPath, "draw", "-F", "text", "-o", "-", pdfPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "textextract: mutool failed for %s: %s", pdfPath, stderr.String())
	}

	return stdout.String(), nil
}

// Tesseract performs OCR on a rasterized PDF page set. Pages are rendered
// through mutool and then recognized with a given page-segmentation mode.
type Tesseract struct {
	binPath    string
	mutoolPath string
	psm        int
}

func NewTesseract(binPath, mutoolPath string, psm int) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	if mutoolPath == "" {
		mutoolPath = "mutool"
	}
	return &Tesseract{binPath: binPath, mutoolPath: mutoolPath, psm: psm}
}

func (t *Tesseract) Name() string { return fmt.Sprintf("ocr_psm%d", t.psm) }

func (t *Tesseract) Extract(ctx context.Context, pdfPath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "ordersync-ocr-*")
	if err != nil {
		return "", eris.Wrap(err, "textextract: create ocr temp dir")
	}
	defer os.RemoveAll(tmpDir)

	pattern := filepath.Join(tmpDir, "page-%03d.png")
	render := exec.CommandContext(ctx, t.mutoolPath, "draw", "-r", "300", "-o", pattern, pdfPath)
	var renderErr bytes.Buffer
	render.Stderr = &renderErr
	if err := render.Run(); err != nil {
		return "", eris.Wrapf(err, "textextract: rasterize %s: %s", pdfPath, renderErr.String())
	}

	pages, err := filepath.Glob(filepath.Join(tmpDir, "page-*.png"))
	if err != nil || len(pages) == 0 {
		return "", eris.Errorf("textextract: no pages rendered for %s", pdfPath)
	}

	var out bytes.Buffer
	for _, page := range pages {
		cmd := exec.CommandContext(ctx, t.binPath, page, "stdout", "--psm", fmt.Sprintf("%d", t.psm))
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return "", eris.Wrapf(err, "textextract: tesseract psm %d on %s: %s", t.psm, page, stderr.String())
		}
		out.Write(stdout.Bytes())
		out.WriteString("\n")
	}

	return out.String(), nil
}
