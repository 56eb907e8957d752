// Package textextract turns order PDFs into text by racing several extraction
// strategies and scoring their output. When the best text-engine result scores
// below a threshold the document is assumed to be a scan and OCR competes too.
package textextract

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/config"
)

// Result is the outcome of extracting text from a single PDF.
type Result struct {
	Text         string  `json:"text"`
	Method       string  `json:"method"`
	QualityScore float64 `json:"quality_score"`
	Confidence   float64 `json:"confidence"`
	Metrics      Metrics `json:"metrics"`
}

// Extractor selects the best text rendering of a PDF.
type Extractor struct {
	textEngines []Engine
	ocrEngines  []Engine
	threshold   float64

	mu    sync.Mutex
	cache map[cacheKey]*Result
}

type cacheKey struct {
	path  string
	mtime int64
}

// New builds an extractor from config. The text engines are three pdftotext
// configurations plus mutool; OCR runs tesseract at PSM modes 3, 4 and 6.
func New(cfg config.TextExtractConfig) *Extractor {
	threshold := cfg.OCRThreshold
	if threshold <= 0 {
		threshold = 40.0
	}
	return &Extractor{
		textEngines: []Engine{
			NewPdfToText(cfg.PdfToTextPath, "pdftotext_layout", "-layout"),
			NewPdfToText(cfg.PdfToTextPath, "pdftotext_raw", "-raw"),
			NewPdfToText(cfg.PdfToTextPath, "pdftotext_default"),
			NewMutool(cfg.MutoolPath),
		},
		ocrEngines: []Engine{
			NewTesseract(cfg.TesseractPath, cfg.MutoolPath, 3),
			NewTesseract(cfg.TesseractPath, cfg.MutoolPath, 4),
			NewTesseract(cfg.TesseractPath, cfg.MutoolPath, 6),
		},
		threshold: threshold,
		cache:     make(map[cacheKey]*Result),
	}
}

// newWithEngines is the test seam.
func newWithEngines(text, ocr []Engine, threshold float64) *Extractor {
	return &Extractor{
		textEngines: text,
		ocrEngines:  ocr,
		threshold:   threshold,
		cache:       make(map[cacheKey]*Result),
	}
}

// Extract returns the best-quality text for pdfPath. Results are cached per
// (path, mtime) so repeated stages within a run pay extraction once.
func (e *Extractor) Extract(ctx context.Context, pdfPath string) (*Result, error) {
	info, err := os.Stat(pdfPath)
	if err != nil {
		return nil, eris.Wrapf(err, "textextract: stat %s", pdfPath)
	}
	key := cacheKey{path: pdfPath, mtime: info.ModTime().UnixNano()}

	e.mu.Lock()
	if cached, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	best, errs := e.runEngines(ctx, e.textEngines, pdfPath, nil)

	if best == nil || best.QualityScore < e.threshold {
		zap.L().Debug("text engines below threshold, running ocr",
			zap.String("pdf", pdfPath),
			zap.Float64("threshold", e.threshold))
		best, errs = e.runEngines(ctx, e.ocrEngines, pdfPath, best)
	}

	if best == nil {
		return nil, eris.Errorf("textextract: all strategies failed for %s: %v", pdfPath, errs)
	}

	e.mu.Lock()
	e.cache[key] = best
	e.mu.Unlock()

	zap.L().Info("text extracted",
		zap.String("pdf", pdfPath),
		zap.String("method", best.Method),
		zap.Float64("quality", best.QualityScore),
		zap.Int("words", best.Metrics.WordCount))

	return best, nil
}

// runEngines executes each engine, scores its text and keeps the winner.
// incumbent, when non-nil, competes against the new candidates.
func (e *Extractor) runEngines(ctx context.Context, engines []Engine, pdfPath string, incumbent *Result) (*Result, []error) {
	best := incumbent
	bestSel := -1.0
	if best != nil {
		bestSel = selectionScore(best.QualityScore, best.Metrics)
	}

	var errs []error
	for _, eng := range engines {
		if ctx.Err() != nil {
			return best, append(errs, ctx.Err())
		}
		text, err := eng.Extract(ctx, pdfPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", eng.Name(), err))
			continue
		}
		score, metrics := Score(text)
		sel := selectionScore(score, metrics)
		if sel > bestSel {
			bestSel = sel
			best = &Result{
				Text:         text,
				Method:       eng.Name(),
				QualityScore: score,
				Confidence:   score / 100,
				Metrics:      metrics,
			}
		}
	}
	return best, errs
}
