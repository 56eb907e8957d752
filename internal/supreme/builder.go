// Package supreme reconciles extraction results with portal document
// metadata and the downstream platform's patient catalog, producing the
// per-document rows the uploader consumes.
package supreme

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/pkg/platform"
	"github.com/silverline-health/ordersync/pkg/portalapi"
)

// SexInferrer fills a blank patient sex from a first name. The field
// extractor provides the cached LLM-backed implementation.
type SexInferrer interface {
	InferSex(ctx context.Context, patientName string) string
}

// Input is one document entering the build: the extractor's fields plus the
// acquisition outcome.
type Input struct {
	Doc     model.DocumentRef
	Fields  model.ExtractedFields
	Quality model.ResultQuality
	PDFPath string
}

// Builder assembles SupremeRecords for one company.
type Builder struct {
	api      portalapi.Client
	platform platform.Client
	inferrer SexInferrer
	prefetch int

	mu        sync.Mutex
	metaCache map[string]*portalapi.Document
}

// New creates a Builder. inferrer may be nil when no LLM is configured.
func New(api portalapi.Client, pf platform.Client, inferrer SexInferrer, prefetchWorkers int) *Builder {
	if prefetchWorkers <= 0 {
		prefetchWorkers = 4
	}
	return &Builder{
		api:       api,
		platform:  pf,
		inferrer:  inferrer,
		prefetch:  prefetchWorkers,
		metaCache: make(map[string]*portalapi.Document),
	}
}

// Build produces exactly one SupremeRecord per input. The patient catalog is
// fetched once per company; document metadata is prefetched concurrently and
// cached for the run.
func (b *Builder) Build(ctx context.Context, company model.CompanyConfig, inputs []Input) ([]model.SupremeRecord, error) {
	patients, err := b.platform.ListPatients(ctx, company.PGCompanyID)
	if err != nil {
		zap.L().Error("patient catalog fetch failed, matching disabled",
			zap.String("company", company.Key), zap.Error(err))
		patients = nil
	}
	index := indexPatients(patients)

	b.prefetchMetadata(ctx, inputs)

	records := make([]model.SupremeRecord, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.prefetch)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			records[i] = b.buildOne(gctx, company, in, index)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matched := 0
	for _, r := range records {
		if r.PatientExist {
			matched++
		}
	}
	zap.L().Info("supreme records built",
		zap.String("company", company.Key),
		zap.Int("records", len(records)),
		zap.Int("matched", matched))
	return records, nil
}

func (b *Builder) buildOne(ctx context.Context, company model.CompanyConfig, in Input, index *patientIndex) model.SupremeRecord {
	rec := model.SupremeRecord{
		Doc:         in.Doc,
		Fields:      in.Fields,
		PGCompanyID: company.PGCompanyID,
		Quality:     in.Quality,
	}

	var backOfficeID string
	if meta := b.metadata(ctx, in.Doc.DocID); meta != nil {
		rec.DocumentType = meta.DocumentType.Name()
		rec.DocumentName = meta.DocumentType.Name()
		rec.PhysicianSignDate = model.NormalizeDate(meta.PhysicianSignDate)
		rec.PatientName = meta.PatientName
		rec.SendDate = model.NormalizeDate(meta.SendDate)
		rec.CareProvider = meta.CareProvider
		backOfficeID = meta.PatientID
	}
	if rec.DocumentName == "" {
		rec.DocumentName = rec.Doc.DocType
	}

	if rec.Fields.OrderDate == "" && rec.SendDate != "" {
		rec.Fields.OrderDate = rec.SendDate
	}

	rec.Fields.PatientSex = model.NormalizeSex(rec.Fields.PatientSex)
	if rec.Fields.PatientSex == "" && b.inferrer != nil {
		name := rec.Fields.PatientName
		if name == "" {
			name = rec.PatientName
		}
		rec.Fields.PatientSex = b.inferrer.InferSex(ctx, name)
	}

	if match := index.find(rec.Fields.MRN, backOfficeID); match != nil {
		rec.PatientExist = true
		rec.PatientID = match.ID
		rec.DABackOfficeID = match.DABackOfficeID
		rec.CompanyID = match.AgencyCompanyID
		if match.PGCompanyID != "" {
			rec.PGCompanyID = match.PGCompanyID
		}
		fillEpisodeDates(&rec.Fields, match)
	}

	rec.PDFPath = in.PDFPath
	if in.PDFPath != "" {
		if info, err := os.Stat(in.PDFPath); err == nil {
			rec.PDFAvailable = true
			rec.PDFSize = info.Size()
			rec.PDFReady = info.Size() > 0
		}
	}

	return rec
}

// prefetchMetadata warms the document metadata cache with a worker pool.
func (b *Builder) prefetchMetadata(ctx context.Context, inputs []Input) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.prefetch)
	for _, in := range inputs {
		docID := in.Doc.DocID
		g.Go(func() error {
			b.metadata(gctx, docID)
			return nil
		})
	}
	_ = g.Wait()
}

// metadata returns cached document metadata, fetching on first use. Fetch
// failures are cached as nil so each document is asked about once per run.
func (b *Builder) metadata(ctx context.Context, docID string) *portalapi.Document {
	b.mu.Lock()
	if doc, ok := b.metaCache[docID]; ok {
		b.mu.Unlock()
		return doc
	}
	b.mu.Unlock()

	doc, err := b.api.GetFile(ctx, docID)
	if err != nil {
		zap.L().Debug("document metadata fetch failed",
			zap.String("docid", docID), zap.Error(err))
		doc = nil
	}

	b.mu.Lock()
	b.metaCache[docID] = doc
	b.mu.Unlock()
	return doc
}

// patientIndex supports MRN and back-office id lookups.
type patientIndex struct {
	byMRN        map[string]*model.PlatformPatient
	byBackOffice map[string]*model.PlatformPatient
}

func indexPatients(patients []model.PlatformPatient) *patientIndex {
	idx := &patientIndex{
		byMRN:        make(map[string]*model.PlatformPatient, len(patients)),
		byBackOffice: make(map[string]*model.PlatformPatient, len(patients)),
	}
	for i := range patients {
		p := &patients[i]
		if mrn := strings.ToUpper(strings.TrimSpace(p.MRN)); mrn != "" {
			idx.byMRN[mrn] = p
		}
		if bo := strings.TrimSpace(p.DABackOfficeID); bo != "" {
			idx.byBackOffice[bo] = p
		}
	}
	return idx
}

func (idx *patientIndex) find(mrn, backOfficeID string) *model.PlatformPatient {
	if m := strings.ToUpper(strings.TrimSpace(mrn)); m != "" {
		if p, ok := idx.byMRN[m]; ok {
			return p
		}
	}
	if bo := strings.TrimSpace(backOfficeID); bo != "" {
		if p, ok := idx.byBackOffice[bo]; ok {
			return p
		}
	}
	return nil
}

// fillEpisodeDates fills missing soc and cert period fields from the episode
// whose start matches the extracted soe, else from the first episode.
func fillEpisodeDates(f *model.ExtractedFields, p *model.PlatformPatient) {
	if len(p.Episodes) == 0 {
		return
	}
	if f.SOC != "" && f.CertPeriod.SOE != "" && f.CertPeriod.EOE != "" {
		return
	}

	ep := &p.Episodes[0]
	if f.CertPeriod.SOE != "" {
		for i := range p.Episodes {
			if model.NormalizeDate(p.Episodes[i].CertPeriodSOE) == f.CertPeriod.SOE {
				ep = &p.Episodes[i]
				break
			}
		}
	}

	if f.SOC == "" {
		f.SOC = model.NormalizeDate(ep.SOC)
	}
	if f.CertPeriod.SOE == "" {
		f.CertPeriod.SOE = model.NormalizeDate(ep.CertPeriodSOE)
	}
	if f.CertPeriod.EOE == "" {
		f.CertPeriod.EOE = model.NormalizeDate(ep.CertPeriodEOE)
	}
}
