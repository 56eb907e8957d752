// Package fieldextract pulls structured order fields out of extracted PDF
// text. Three strategies compete: a chunked primary LLM, anchored regex
// patterns, and a local fallback LLM, with a deterministic merge and a final
// pass of domain corrections.
package fieldextract

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/config"
	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/pkg/anthropic"
	"github.com/silverline-health/ordersync/pkg/icd"
	"github.com/silverline-health/ordersync/pkg/localllm"
)

// Result pairs the final field set with its quality assessment.
type Result struct {
	Fields     model.ExtractedFields
	Confidence float64
	Quality    model.ResultQuality
	Strategies []string
	Reason     string
}

// Extractor coordinates the tiered extraction strategies.
type Extractor struct {
	claude    anthropic.Client
	local     localllm.Client
	icd       icd.Client
	model     string
	maxChunks int
	chunkSize int
	maxTokens int

	sexMu    sync.Mutex
	sexCache map[string]string
}

// New builds an Extractor. claude and local may be nil when the corresponding
// tier is not configured; the remaining tiers still run.
func New(cfg config.AnthropicConfig, claude anthropic.Client, local localllm.Client, icdClient icd.Client) *Extractor {
	maxChunks := cfg.MaxChunks
	if maxChunks <= 0 {
		maxChunks = 3
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 3000
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Extractor{
		claude:    claude,
		local:     local,
		icd:       icdClient,
		model:     cfg.Model,
		maxChunks: maxChunks,
		chunkSize: chunkSize,
		maxTokens: maxTokens,
		sexCache:  make(map[string]string),
	}
}

var (
	structuredDateRe = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	vocabRe          = regexp.MustCompile(`(?i)\b(patient|physician|diagnosis|order|episode|certification|mrn)\b`)
)

// Extract runs strategy selection, cross-validation and domain corrections
// for one document's text.
func (e *Extractor) Extract(ctx context.Context, docID, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		fields := e.applyCorrections(ctx, docID, model.ExtractedFields{})
		return Result{
			Fields:  fields,
			Quality: model.QualityFailed,
			Reason:  "no text extracted",
		}
	}

	var (
		chunked, pattern, fallback model.ExtractedFields
		chunkedOK, fallbackOK      bool
		strategies                 []string
	)

	useChunked := e.claude != nil &&
		structuredDateRe.MatchString(text) &&
		len(vocabRe.FindAllString(text, 3)) >= 2

	if useChunked {
		var err error
		chunked, err = e.chunkedExtract(ctx, text)
		if err != nil {
			zap.L().Warn("chunked extraction unavailable", zap.String("docid", docID), zap.Error(err))
		} else {
			chunkedOK = true
			strategies = append(strategies, "chunked_llm")
		}
	}

	pattern = patternExtract(text)
	strategies = append(strategies, "pattern")

	if e.local != nil && !chunkedOK && (e.claude == nil || needsFallback(pattern)) {
		var err error
		fallback, err = e.fallbackExtract(ctx, text)
		if err != nil {
			zap.L().Warn("fallback extraction failed", zap.String("docid", docID), zap.Error(err))
		} else {
			fallbackOK = true
			strategies = append(strategies, "fallback_llm")
		}
	}

	// Fixed priority: chunked results win, then patterns, then the fallback.
	merged := pattern
	if fallbackOK {
		merged = mergeFirstNonEmpty(merged, fallback)
	}
	if chunkedOK {
		merged = mergeFirstNonEmpty(chunked, merged)
	}

	merged = e.applyCorrections(ctx, docID, merged)
	merged.ICDCodes = e.validateICD(ctx, merged.ICDCodes)

	conf := confidence(merged)
	return Result{
		Fields:     merged,
		Confidence: conf,
		Quality:    model.QualityFromConfidence(conf),
		Strategies: strategies,
	}
}

// needsFallback reports whether pattern results are too thin: fewer than two
// critical fields (MRN, SOC, patient name), unless one critical field comes
// with at least two auxiliary ones.
func needsFallback(f model.ExtractedFields) bool {
	critical := 0
	if f.MRN != "" {
		critical++
	}
	if f.SOC != "" {
		critical++
	}
	if f.PatientName != "" {
		critical++
	}
	if critical >= 2 {
		return false
	}

	aux := 0
	for _, v := range []string{f.OrderNo, f.OrderDate, f.DOB, f.Address, f.CertPeriod.SOE} {
		if v != "" {
			aux++
		}
	}
	if len(f.ICDCodes) > 0 {
		aux++
	}
	return !(critical == 1 && aux >= 2)
}

// applyCorrections is the final deterministic pass over merged fields.
func (e *Extractor) applyCorrections(ctx context.Context, docID string, f model.ExtractedFields) model.ExtractedFields {
	if !model.ValidOrderNo(f.OrderNo) {
		f.OrderNo = "NOF" + docID
	}

	f.OrderDate = model.NormalizeDate(f.OrderDate)
	f.SOC = model.NormalizeDate(f.SOC)
	f.DOB = model.NormalizeDate(f.DOB)
	f.CertPeriod.SOE = model.NormalizeDate(f.CertPeriod.SOE)
	f.CertPeriod.EOE = model.NormalizeDate(f.CertPeriod.EOE)

	if f.SOC != "" && f.CertPeriod.SOE == "" {
		f.CertPeriod.SOE = f.SOC
	}
	if f.CertPeriod.SOE != "" && f.SOC == "" {
		f.SOC = f.CertPeriod.SOE
	}

	if soe, ok := model.ParseFlexibleDate(f.CertPeriod.SOE); ok {
		if f.CertPeriod.EOE == "" {
			f.CertPeriod.EOE = model.FormatDate(soe.AddDate(0, 0, 60))
		} else if eoe, ok := model.ParseFlexibleDate(f.CertPeriod.EOE); ok {
			days := int(eoe.Sub(soe) / (24 * time.Hour))
			switch {
			case days < 30:
				f.CertPeriod.EOE = model.FormatDate(soe.AddDate(0, 0, 60))
			case days > 120:
				f.CertPeriod.EOE = model.FormatDate(soe.AddDate(0, 0, 90))
			}
		}
	}

	f.PatientSex = model.NormalizeSex(f.PatientSex)
	if f.PatientSex == "" && f.PatientName != "" {
		f.PatientSex = e.InferSex(ctx, f.PatientName)
	}

	if !model.ValidMRN(f.MRN) {
		f.MRN = ""
	}

	return f
}

// InferSex guesses MALE/FEMALE from a first name via the primary LLM. Answers
// are cached per name for the life of the extractor.
func (e *Extractor) InferSex(ctx context.Context, patientName string) string {
	if e.claude == nil {
		return ""
	}
	first := firstName(patientName)
	if first == "" {
		return ""
	}

	e.sexMu.Lock()
	if cached, ok := e.sexCache[first]; ok {
		e.sexMu.Unlock()
		return cached
	}
	e.sexMu.Unlock()

	resp, err := e.claude.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 8,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: "Answer with exactly one word, MALE or FEMALE or UNKNOWN. What sex is the first name \"" + first + "\" most commonly associated with?",
		}},
	})
	if err != nil {
		zap.L().Debug("sex inference failed", zap.String("name", first), zap.Error(err))
		return ""
	}

	sex := model.NormalizeSex(resp.Text())
	e.sexMu.Lock()
	e.sexCache[first] = sex
	e.sexMu.Unlock()
	return sex
}

// validateICD keeps only codes the ICD API confirms. API failures keep the
// well-formed code rather than dropping data on an outage.
func (e *Extractor) validateICD(ctx context.Context, codes []string) []string {
	if e.icd == nil || len(codes) == 0 {
		return codes
	}
	var out []string
	for _, code := range codes {
		valid, err := e.icd.Validate(ctx, code)
		if err != nil {
			zap.L().Debug("icd validation error, keeping code", zap.String("code", code), zap.Error(err))
			out = append(out, code)
			continue
		}
		if valid {
			out = append(out, code)
		}
	}
	return out
}

// confidence scores a merged field set. Critical fields dominate.
func confidence(f model.ExtractedFields) float64 {
	c := 0.0
	if model.ValidMRN(f.MRN) {
		c += 0.25
	}
	if f.PatientName != "" {
		c += 0.2
	}
	if f.SOC != "" {
		c += 0.15
	}
	if f.DOB != "" {
		c += 0.1
	}
	if f.CertPeriod.SOE != "" && f.CertPeriod.EOE != "" {
		c += 0.1
	}
	if f.OrderDate != "" {
		c += 0.05
	}
	if !strings.HasPrefix(f.OrderNo, "NOF") {
		c += 0.05
	}
	if len(f.ICDCodes) > 0 {
		c += 0.05
	}
	if f.Address != "" {
		c += 0.05
	}
	return c
}

func firstName(full string) string {
	full = strings.TrimSpace(full)
	if full == "" {
		return ""
	}
	// "Last, First" as well as "First Last".
	if i := strings.IndexByte(full, ','); i >= 0 {
		full = strings.TrimSpace(full[i+1:])
	}
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return ""
	}
	return strings.ToUpper(parts[0])
}
