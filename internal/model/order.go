package model

import (
	"regexp"
	"strings"
)

// CertPeriod is a certification episode boundary pair, both MM/DD/YYYY.
type CertPeriod struct {
	SOE string `json:"soe"`
	EOE string `json:"eoe"`
}

// ExtractedFields is the fixed medical-order field set produced by the
// field extractor. Absent values are empty strings; dates are MM/DD/YYYY.
type ExtractedFields struct {
	OrderNo     string     `json:"orderno"`
	OrderDate   string     `json:"orderdate"`
	MRN         string     `json:"mrn"`
	SOC         string     `json:"soc"`
	CertPeriod  CertPeriod `json:"cert_period"`
	ICDCodes    []string   `json:"icd_codes"`
	PatientName string     `json:"patient_name"`
	DOB         string     `json:"dob"`
	Address     string     `json:"address"`
	PatientSex  string     `json:"patient_sex"` // MALE, FEMALE, or ""
}

var (
	orderNoRe  = regexp.MustCompile(`^[A-Za-z0-9-]{3,}$`)
	mrnRe      = regexp.MustCompile(`^[A-Za-z0-9]{4,}$`)
	hasDigitRe = regexp.MustCompile(`\d`)
)

// ValidOrderNo reports whether s is an acceptable order number: alphanumeric
// (hyphens tolerated) and at least three characters.
func ValidOrderNo(s string) bool {
	return orderNoRe.MatchString(strings.TrimSpace(s))
}

// ValidMRN reports whether s is an acceptable MRN: alphanumeric, at least
// four characters, containing at least one digit.
func ValidMRN(s string) bool {
	s = strings.TrimSpace(s)
	return mrnRe.MatchString(s) && hasDigitRe.MatchString(s)
}

// NormalizeSex maps free-text sex values onto {MALE, FEMALE, ""}.
func NormalizeSex(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MALE":
		return "MALE"
	case "F", "FEMALE":
		return "FEMALE"
	default:
		return ""
	}
}

// ResultQuality buckets extraction results by validator confidence.
type ResultQuality string

const (
	QualityExcellent ResultQuality = "EXCELLENT"
	QualityGood      ResultQuality = "GOOD"
	QualityFair      ResultQuality = "FAIR"
	QualityPoor      ResultQuality = "POOR"
	QualityFailed    ResultQuality = "FAILED"
)

// QualityFromConfidence maps a validator confidence in [0,1] to its bucket.
func QualityFromConfidence(c float64) ResultQuality {
	switch {
	case c >= 0.85:
		return QualityExcellent
	case c >= 0.7:
		return QualityGood
	case c >= 0.5:
		return QualityFair
	case c >= 0.3:
		return QualityPoor
	default:
		return QualityFailed
	}
}
