package workbook

import (
	"strconv"
	"strings"

	"github.com/silverline-health/ordersync/internal/model"
)

// Stage artifact schemas. Column order is the on-disk order.
var (
	// DocumentNPISchema is the portal extractor's output.
	DocumentNPISchema = Schema{
		Sheet:    "DocumentID_NPI",
		Columns:  []string{"docid", "doctype", "source", "received_date", "npi"},
		Optional: []string{"received_date", "npi"},
	}

	// CombinedSchema is the field extractor's output, one row per document.
	CombinedSchema = Schema{
		Sheet: "Combined",
		Columns: []string{
			"docid", "doctype", "source", "npi",
			"orderno", "orderdate", "mrn", "soc", "soe", "eoe",
			"icd_codes", "patient_name", "dob", "address", "patient_sex",
			"quality",
		},
		Optional: []string{"npi", "quality"},
	}

	// SupremeSchema is the reconciled per-document row.
	SupremeSchema = Schema{
		Sheet: "Supreme",
		Columns: []string{
			"docid", "doctype", "source", "npi",
			"orderno", "orderdate", "mrn", "soc", "soe", "eoe",
			"icd_codes", "patient_name", "dob", "address", "patient_sex",
			"document_type", "document_name", "physician_sign_date",
			"da_patient_name", "send_date", "care_provider",
			"patient_exist", "patientid", "dabackofficeid", "pgcompanyid", "companyid",
			"pdf_available", "pdf_ready", "pdf_size", "pdf_path",
			"quality",
		},
		Optional: []string{"npi", "document_name", "physician_sign_date", "da_patient_name", "pdf_path", "quality", "dabackofficeid"},
	}

	// UploadsSchema is the supreme row enriched with upload outcomes.
	UploadsSchema = Schema{
		Sheet: "Uploads",
		Columns: append(append([]string{}, SupremeSchema.Columns...),
			"patient_upload", "order_upload", "pdf_upload", "order_id", "remarks", "order_remarks"),
		Optional: append(append([]string{}, SupremeSchema.Optional...), "order_id", "order_remarks"),
	}

	// SuccessSchema is the Successful sheet of the processing report.
	SuccessSchema = Schema{
		Sheet:    "Successful_Records",
		Columns:  UploadsSchema.Columns,
		Optional: UploadsSchema.Optional,
	}

	// FailedSchema is the Failed sheet projection of the processing report.
	FailedSchema = Schema{
		Sheet: "Failed_Records",
		Columns: []string{
			"docid", "patient_name", "dob", "dabackofficeid", "mrn_number",
			"pg_name", "agency_name", "reason", "pdf_link",
		},
		Optional: []string{"pdf_link", "dabackofficeid"},
	}
)

// DocRefToRow converts a harvested document reference to a worksheet row.
func DocRefToRow(d model.DocumentRef) Row {
	return Row{
		"docid":         d.DocID,
		"doctype":       d.DocType,
		"source":        string(d.Source),
		"received_date": d.ReceivedDate,
		"npi":           d.NPI,
	}
}

// RowToDocRef converts a DocumentNPI row back to a DocumentRef.
func RowToDocRef(r Row) model.DocumentRef {
	return model.DocumentRef{
		DocID:        r["docid"],
		DocType:      r["doctype"],
		Source:       model.SourceView(r["source"]),
		ReceivedDate: r["received_date"],
		NPI:          r["npi"],
	}
}

func fieldsToRow(row Row, f model.ExtractedFields) {
	row["orderno"] = f.OrderNo
	row["orderdate"] = f.OrderDate
	row["mrn"] = f.MRN
	row["soc"] = f.SOC
	row["soe"] = f.CertPeriod.SOE
	row["eoe"] = f.CertPeriod.EOE
	row["icd_codes"] = strings.Join(f.ICDCodes, ",")
	row["patient_name"] = f.PatientName
	row["dob"] = f.DOB
	row["address"] = f.Address
	row["patient_sex"] = f.PatientSex
}

func rowToFields(r Row) model.ExtractedFields {
	var codes []string
	if r["icd_codes"] != "" {
		for _, c := range strings.Split(r["icd_codes"], ",") {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, c)
			}
		}
	}
	return model.ExtractedFields{
		OrderNo:     r["orderno"],
		OrderDate:   r["orderdate"],
		MRN:         r["mrn"],
		SOC:         r["soc"],
		CertPeriod:  model.CertPeriod{SOE: r["soe"], EOE: r["eoe"]},
		ICDCodes:    codes,
		PatientName: r["patient_name"],
		DOB:         r["dob"],
		Address:     r["address"],
		PatientSex:  r["patient_sex"],
	}
}

// CombinedToRow converts extractor output plus its document reference.
func CombinedToRow(d model.DocumentRef, f model.ExtractedFields, quality model.ResultQuality) Row {
	row := DocRefToRow(d)
	delete(row, "received_date")
	fieldsToRow(row, f)
	row["quality"] = string(quality)
	return row
}

// RowToCombined splits a Combined row into its document reference and fields.
func RowToCombined(r Row) (model.DocumentRef, model.ExtractedFields, model.ResultQuality) {
	return model.DocumentRef{
		DocID:   r["docid"],
		DocType: r["doctype"],
		Source:  model.SourceView(r["source"]),
		NPI:     r["npi"],
	}, rowToFields(r), model.ResultQuality(r["quality"])
}

// SupremeToRow flattens a SupremeRecord for persistence.
func SupremeToRow(s model.SupremeRecord) Row {
	row := Row{
		"docid":   s.Doc.DocID,
		"doctype": s.Doc.DocType,
		"source":  string(s.Doc.Source),
		"npi":     s.Doc.NPI,

		"document_type":       s.DocumentType,
		"document_name":       s.DocumentName,
		"physician_sign_date": s.PhysicianSignDate,
		"da_patient_name":     s.PatientName,
		"send_date":           s.SendDate,
		"care_provider":       s.CareProvider,

		"patient_exist":  boolString(s.PatientExist),
		"patientid":      s.PatientID,
		"dabackofficeid": s.DABackOfficeID,
		"pgcompanyid":    s.PGCompanyID,
		"companyid":      s.CompanyID,

		"pdf_available": boolString(s.PDFAvailable),
		"pdf_ready":     boolString(s.PDFReady),
		"pdf_size":      strconv.FormatInt(s.PDFSize, 10),
		"pdf_path":      s.PDFPath,

		"quality": string(s.Quality),
	}
	fieldsToRow(row, s.Fields)
	return row
}

// RowToSupreme rebuilds a SupremeRecord from a worksheet row.
func RowToSupreme(r Row) model.SupremeRecord {
	size, _ := strconv.ParseInt(r["pdf_size"], 10, 64)
	return model.SupremeRecord{
		Doc: model.DocumentRef{
			DocID:   r["docid"],
			DocType: r["doctype"],
			Source:  model.SourceView(r["source"]),
			NPI:     r["npi"],
		},
		Fields: rowToFields(r),

		DocumentType:      r["document_type"],
		DocumentName:      r["document_name"],
		PhysicianSignDate: r["physician_sign_date"],
		PatientName:       r["da_patient_name"],
		SendDate:          r["send_date"],
		CareProvider:      r["care_provider"],

		PatientExist:   r["patient_exist"] == "TRUE",
		PatientID:      r["patientid"],
		DABackOfficeID: r["dabackofficeid"],
		PGCompanyID:    r["pgcompanyid"],
		CompanyID:      r["companyid"],

		PDFAvailable: r["pdf_available"] == "TRUE",
		PDFReady:     r["pdf_ready"] == "TRUE",
		PDFSize:      size,
		PDFPath:      r["pdf_path"],

		Quality: model.ResultQuality(r["quality"]),
	}
}

// OutcomeToRow enriches a supreme row with its upload outcome.
func OutcomeToRow(s model.SupremeRecord, o model.UploadOutcome) Row {
	row := SupremeToRow(s)
	row["patient_upload"] = string(o.PatientUpload)
	row["order_upload"] = string(o.OrderUpload)
	row["pdf_upload"] = string(o.PDFUpload)
	row["order_id"] = o.OrderID
	row["remarks"] = o.RemarkText()
	row["order_remarks"] = o.OrderRemarkText()
	return row
}

// RowToOutcome reads the upload outcome columns back from an uploads row.
func RowToOutcome(r Row) model.UploadOutcome {
	o := model.UploadOutcome{
		DocID:         r["docid"],
		PatientUpload: model.UploadStatus(r["patient_upload"]),
		OrderUpload:   model.UploadStatus(r["order_upload"]),
		PDFUpload:     model.UploadStatus(r["pdf_upload"]),
		OrderID:       r["order_id"],
		PatientID:     r["patientid"],
	}
	if r["remarks"] != "" {
		o.Remarks = []string{r["remarks"]}
	}
	if r["order_remarks"] != "" {
		o.OrderRemarks = []string{r["order_remarks"]}
	}
	return o
}

func boolString(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
