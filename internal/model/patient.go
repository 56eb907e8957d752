package model

// EpisodeDiagnosis is one care episode on a platform patient, carrying the
// certification window and up to six diagnosis codes.
type EpisodeDiagnosis struct {
	SOC           string   `json:"startOfCare"`
	CertPeriodSOE string   `json:"startOfEpisode"`
	CertPeriodEOE string   `json:"endOfEpisode"`
	Diagnoses     []string `json:"diagnoses"`
}

// PlatformPatient is one entry of the downstream platform's patient catalog.
type PlatformPatient struct {
	ID              string             `json:"id"`
	MRN             string             `json:"medicalRecordNo"`
	DABackOfficeID  string             `json:"daBackofficeID"`
	FirstName       string             `json:"firstName"`
	MiddleName      string             `json:"middleName"`
	LastName        string             `json:"lastName"`
	DOB             string             `json:"dob"`
	Sex             string             `json:"patientSex"`
	Episodes        []EpisodeDiagnosis `json:"episodeDiagnoses"`
	AgencyCompanyID string             `json:"companyId"`
	PGCompanyID     string             `json:"pgCompanyID"`
}

// FullName joins the patient's name parts, skipping empty components.
func (p PlatformPatient) FullName() string {
	name := p.FirstName
	if p.MiddleName != "" {
		name += " " + p.MiddleName
	}
	if p.LastName != "" {
		name += " " + p.LastName
	}
	return name
}
