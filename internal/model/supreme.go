package model

// SupremeRecord is the reconciled per-document row: extractor output joined
// with portal document metadata and the platform patient match outcome.
// Exactly one exists per accepted DocumentRef.
type SupremeRecord struct {
	Doc    DocumentRef     `json:"doc"`
	Fields ExtractedFields `json:"fields"`

	// Portal document API metadata.
	DocumentType      string `json:"document_type"`
	DocumentName      string `json:"document_name"`
	PhysicianSignDate string `json:"physician_sign_date"`
	PatientName       string `json:"patient_name"`
	SendDate          string `json:"send_date"`
	CareProvider      string `json:"care_provider"`

	// Patient match outcome.
	PatientExist   bool   `json:"patient_exist"`
	PatientID      string `json:"patientid"`
	DABackOfficeID string `json:"dabackofficeid"`
	PGCompanyID    string `json:"pgcompanyid"`
	CompanyID      string `json:"company_id"`

	// PDF readiness for the upload stage.
	PDFAvailable bool   `json:"pdf_available"`
	PDFReady     bool   `json:"pdf_ready"`
	PDFSize      int64  `json:"pdf_size"`
	PDFPath      string `json:"pdf_path,omitempty"`

	Quality ResultQuality `json:"quality"`
}
