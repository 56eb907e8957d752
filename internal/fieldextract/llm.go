package fieldextract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/pkg/anthropic"
	"github.com/silverline-health/ordersync/pkg/localllm"
)

const extractionSystemPrompt = `You extract fields from home-health medical order documents.
Return ONLY a JSON object with these keys (use "" for absent values):
{
  "orderno": "", "orderdate": "", "mrn": "", "soc": "",
  "cert_period": {"soe": "", "eoe": ""},
  "icd_codes": [], "patient_name": "", "dob": "", "address": "", "patient_sex": ""
}
Dates as MM/DD/YYYY. patient_sex as MALE or FEMALE. No prose, no markdown.`

// llmFields mirrors the JSON shape both LLMs are prompted to return.
type llmFields struct {
	OrderNo    string `json:"orderno"`
	OrderDate  string `json:"orderdate"`
	MRN        string `json:"mrn"`
	SOC        string `json:"soc"`
	CertPeriod struct {
		SOE string `json:"soe"`
		EOE string `json:"eoe"`
	} `json:"cert_period"`
	ICDCodes    []string `json:"icd_codes"`
	PatientName string   `json:"patient_name"`
	DOB         string   `json:"dob"`
	Address     string   `json:"address"`
	PatientSex  string   `json:"patient_sex"`
}

func (l llmFields) toModel() model.ExtractedFields {
	return model.ExtractedFields{
		OrderNo:     strings.TrimSpace(l.OrderNo),
		OrderDate:   strings.TrimSpace(l.OrderDate),
		MRN:         strings.TrimSpace(l.MRN),
		SOC:         strings.TrimSpace(l.SOC),
		CertPeriod:  model.CertPeriod{SOE: strings.TrimSpace(l.CertPeriod.SOE), EOE: strings.TrimSpace(l.CertPeriod.EOE)},
		ICDCodes:    l.ICDCodes,
		PatientName: strings.TrimSpace(l.PatientName),
		DOB:         strings.TrimSpace(l.DOB),
		Address:     strings.TrimSpace(l.Address),
		PatientSex:  strings.TrimSpace(l.PatientSex),
	}
}

func parseLLMFields(raw string) (model.ExtractedFields, error) {
	obj := firstJSONObject(raw)
	if obj == "" {
		return model.ExtractedFields{}, eris.New("fieldextract: no JSON object in response")
	}
	var f llmFields
	if err := json.Unmarshal([]byte(obj), &f); err != nil {
		return model.ExtractedFields{}, eris.Wrap(err, "fieldextract: parse response JSON")
	}
	return f.toModel(), nil
}

// chunkedExtract calls the primary LLM once per chunk and merges responses
// per field, first non-empty value winning.
func (e *Extractor) chunkedExtract(ctx context.Context, text string) (model.ExtractedFields, error) {
	chunks := splitChunks(text, e.maxChunks, e.chunkSize)
	if len(chunks) == 0 {
		return model.ExtractedFields{}, eris.New("fieldextract: empty text")
	}

	var merged model.ExtractedFields
	var lastErr error
	got := false
	for i, chunk := range chunks {
		resp, err := e.claude.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.model,
			MaxTokens: int64(e.maxTokens),
			System:    anthropic.BuildCachedSystemBlocks(extractionSystemPrompt, ""),
			Messages:  []anthropic.Message{{Role: "user", Content: chunk}},
		})
		if err != nil {
			lastErr = err
			zap.L().Warn("chunked extraction call failed",
				zap.Int("chunk", i+1), zap.Error(err))
			continue
		}
		resp.Usage.LogUsage(e.model, "fieldextract")
		fields, err := parseLLMFields(resp.Text())
		if err != nil {
			lastErr = err
			continue
		}
		merged = mergeFirstNonEmpty(merged, fields)
		got = true
	}
	if !got {
		if lastErr == nil {
			lastErr = eris.New("fieldextract: chunked extraction produced nothing")
		}
		return model.ExtractedFields{}, lastErr
	}
	return merged, nil
}

// fallbackExtract uses the local OpenAI-compatible LLM over the first chunk.
func (e *Extractor) fallbackExtract(ctx context.Context, text string) (model.ExtractedFields, error) {
	chunks := splitChunks(text, 1, e.chunkSize)
	if len(chunks) == 0 {
		return model.ExtractedFields{}, eris.New("fieldextract: empty text")
	}

	resp, err := e.local.ChatCompletion(ctx, localllm.ChatCompletionRequest{
		Messages: []localllm.Message{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: chunks[0]},
		},
	})
	if err != nil {
		return model.ExtractedFields{}, eris.Wrap(err, "fieldextract: fallback llm")
	}
	return parseLLMFields(resp.Text())
}

// mergeFirstNonEmpty fills empty fields of base from next.
func mergeFirstNonEmpty(base, next model.ExtractedFields) model.ExtractedFields {
	if base.OrderNo == "" {
		base.OrderNo = next.OrderNo
	}
	if base.OrderDate == "" {
		base.OrderDate = next.OrderDate
	}
	if base.MRN == "" {
		base.MRN = next.MRN
	}
	if base.SOC == "" {
		base.SOC = next.SOC
	}
	if base.CertPeriod.SOE == "" {
		base.CertPeriod.SOE = next.CertPeriod.SOE
	}
	if base.CertPeriod.EOE == "" {
		base.CertPeriod.EOE = next.CertPeriod.EOE
	}
	if len(base.ICDCodes) == 0 {
		base.ICDCodes = next.ICDCodes
	}
	if base.PatientName == "" {
		base.PatientName = next.PatientName
	}
	if base.DOB == "" {
		base.DOB = next.DOB
	}
	if base.Address == "" {
		base.Address = next.Address
	}
	if base.PatientSex == "" {
		base.PatientSex = next.PatientSex
	}
	return base
}
