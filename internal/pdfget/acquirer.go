// Package pdfget downloads order PDFs through the portal document API and
// validates them before handing paths to the extraction stages.
package pdfget

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/silverline-health/ordersync/internal/config"
	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/resilience"
	"github.com/silverline-health/ordersync/pkg/portalapi"
)

const minPDFSize = 100

var pdfMagic = []byte("%PDF-")

// Acquired is one successfully downloaded PDF plus the API metadata that
// came with it.
type Acquired struct {
	DocID    string
	Path     string
	Size     int64
	Document *portalapi.Document
}

// Acquirer downloads PDFs with bounded concurrency.
type Acquirer struct {
	api   portalapi.Client
	dir   string
	conc  int
	retry resilience.RetryConfig
}

// New creates an Acquirer writing PDFs into dir.
func New(api portalapi.Client, dir string, cfg config.DownloadConfig) *Acquirer {
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = 5
	}
	return &Acquirer{
		api:   api,
		dir:   dir,
		conc:  conc,
		retry: resilience.FromConfig(cfg.MaxAttempts, cfg.InitialBackoffMs),
	}
}

// AcquireAll downloads every referenced document. Failures are logged and
// omitted from the result; the stage never fails the whole batch.
func (a *Acquirer) AcquireAll(ctx context.Context, refs []model.DocumentRef) ([]Acquired, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pdfget: create dir %s", a.dir)
	}

	var mu sync.Mutex
	var out []Acquired

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.conc)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			acq, err := a.Acquire(gctx, ref.DocID)
			if err != nil {
				zap.L().Warn("pdf acquisition failed",
					zap.String("docid", ref.DocID), zap.Error(err))
				return nil
			}
			mu.Lock()
			out = append(out, *acq)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	zap.L().Info("pdf acquisition complete",
		zap.Int("requested", len(refs)), zap.Int("acquired", len(out)))
	return out, nil
}

// Acquire downloads one document, validates it, and writes it to disk.
// Transient failures retry with backoff; a 404 fails immediately.
func (a *Acquirer) Acquire(ctx context.Context, docID string) (*Acquired, error) {
	doc, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*portalapi.Document, error) {
		return a.api.GetFile(ctx, docID)
	})
	if err != nil {
		return nil, err
	}

	if len(doc.Buffer) < minPDFSize {
		return nil, eris.Errorf("pdfget: document %s too small (%d bytes)", docID, len(doc.Buffer))
	}
	if !bytes.HasPrefix(doc.Buffer, pdfMagic) {
		return nil, eris.Errorf("pdfget: document %s is not a PDF", docID)
	}

	path, err := a.writeFile(docID, doc.Buffer)
	if err != nil {
		return nil, err
	}

	return &Acquired{
		DocID:    docID,
		Path:     path,
		Size:     int64(len(doc.Buffer)),
		Document: doc,
	}, nil
}

// writeFile writes through a temp file so partial downloads never surface
// under the final name.
func (a *Acquirer) writeFile(docID string, buf []byte) (string, error) {
	tmp, err := os.CreateTemp(a.dir, docID+"-*.pdf.tmp")
	if err != nil {
		return "", eris.Wrap(err, "pdfget: create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", eris.Wrapf(err, "pdfget: write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", eris.Wrapf(err, "pdfget: close %s", tmpName)
	}

	final := filepath.Join(a.dir, docID+".pdf")
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", eris.Wrapf(err, "pdfget: rename to %s", final)
	}
	return final, nil
}
