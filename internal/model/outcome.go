package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// UploadStatus is one atomic per-row upload outcome.
type UploadStatus string

const (
	UploadTrue    UploadStatus = "TRUE"
	UploadFalse   UploadStatus = "FALSE"
	UploadSkipped UploadStatus = "SKIPPED"
)

// duplicateMarkers are server-response fragments that map a rejected write
// to SKIPPED with success semantics in reporting.
var duplicateMarkers = []string{
	"already exist",
	"already exists",
	"duplicate",
	"exists",
	"conflict",
}

// negatedExistRe masks "does not exist" style phrases so the bare "exists"
// marker never fires on an absence message.
var negatedExistRe = regexp.MustCompile(`\b(?:does |do |did )?not exists?\b`)

// IsDuplicateMarker reports whether a remark or server body names an
// already-present record.
func IsDuplicateMarker(s string) bool {
	lower := negatedExistRe.ReplaceAllString(strings.ToLower(s), "")
	for _, m := range duplicateMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// UploadOutcome is the per-row result of the upload stage. Order-stage
// remarks are tracked separately because the success predicate matches
// duplicate markers against the order response only.
type UploadOutcome struct {
	DocID         string       `json:"doc_id"`
	PatientUpload UploadStatus `json:"patient_upload"`
	OrderUpload   UploadStatus `json:"order_upload"`
	PDFUpload     UploadStatus `json:"pdf_upload"`
	OrderID       string       `json:"order_id,omitempty"`
	PatientID     string       `json:"patient_id,omitempty"`
	Remarks       []string     `json:"remarks"`
	OrderRemarks  []string     `json:"order_remarks,omitempty"`
}

// AddRemark appends a timestamped entry to the row's remark trail.
func (o *UploadOutcome) AddRemark(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	o.Remarks = append(o.Remarks, time.Now().UTC().Format("2006-01-02T15:04:05Z")+" "+msg)
}

// AddOrderRemark records an order-stage remark in both the full trail and
// the order-scoped trail the success predicate inspects.
func (o *UploadOutcome) AddOrderRemark(format string, args ...any) {
	o.AddRemark(format, args...)
	o.OrderRemarks = append(o.OrderRemarks, fmt.Sprintf(format, args...))
}

// RemarkText joins the remark trail for workbook persistence.
func (o UploadOutcome) RemarkText() string {
	return strings.Join(o.Remarks, "; ")
}

// OrderRemarkText joins the order-stage remarks.
func (o UploadOutcome) OrderRemarkText() string {
	return strings.Join(o.OrderRemarks, "; ")
}

// Successful applies the reporting success predicate: order upload TRUE with
// patient TRUE or SKIPPED, or an order-stage remark naming a duplicate. A
// patient-stage duplicate never makes the row successful on its own.
func (o UploadOutcome) Successful() bool {
	if o.OrderUpload == UploadTrue &&
		(o.PatientUpload == UploadTrue || o.PatientUpload == UploadSkipped) {
		return true
	}
	return IsDuplicateMarker(o.OrderRemarkText())
}

// FailureReason concatenates the non-success statuses and the remark trail
// for the Failed sheet.
func (o UploadOutcome) FailureReason() string {
	var parts []string
	if o.PatientUpload == UploadFalse {
		parts = append(parts, "patient upload FALSE")
	}
	if o.OrderUpload != UploadTrue {
		parts = append(parts, "order upload "+string(o.OrderUpload))
	}
	if o.PDFUpload == UploadFalse {
		parts = append(parts, "pdf upload FALSE")
	}
	if rt := o.RemarkText(); rt != "" {
		parts = append(parts, rt)
	}
	return strings.Join(parts, "; ")
}
