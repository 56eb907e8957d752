package platform

// PatientAddress is one address entry on a patient create payload.
type PatientAddress struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zipCode,omitempty"`
}

// EpisodePayload is the first episode on a patient create payload. Diagnoses
// carries up to six ICD codes.
type EpisodePayload struct {
	StartOfCare    string   `json:"startOfCare"`
	StartOfEpisode string   `json:"startOfEpisode"`
	EndOfEpisode   string   `json:"endOfEpisode"`
	Diagnoses      []string `json:"diagnoses,omitempty"`
}

// CreatePatientRequest is the POST /api/Patient/create payload.
type CreatePatientRequest struct {
	FirstName        string           `json:"firstName" validate:"required"`
	MiddleName       string           `json:"middleName,omitempty"`
	LastName         string           `json:"lastName" validate:"required"`
	DOB              string           `json:"dob,omitempty"`
	PatientSex       string           `json:"patientSex,omitempty"`
	MedicalRecordNo  string           `json:"medicalRecordNo" validate:"required,min=4"`
	Addresses        []PatientAddress `json:"addresses,omitempty"`
	PhysicianNPI     string           `json:"physicianNPI,omitempty" validate:"omitempty,len=10,numeric"`
	EpisodeDiagnoses []EpisodePayload `json:"episodeDiagnoses,omitempty"`
	PGCompanyID      string           `json:"pgcompanyID" validate:"required,uuid"`
	CompanyID        string           `json:"companyId" validate:"required,uuid"`
}

// CreateOrderRequest is the POST /api/Order payload.
type CreateOrderRequest struct {
	OrderNo           string `json:"orderNo" validate:"required,min=3"`
	OrderDate         string `json:"orderDate,omitempty"`
	PatientID         string `json:"patientId" validate:"required"`
	CompanyID         string `json:"companyId" validate:"required,uuid"`
	PGCompanyID       string `json:"pgCompanyID" validate:"required,uuid"`
	DocumentID        string `json:"documentID" validate:"required"`
	MRN               string `json:"mrn,omitempty"`
	PatientName       string `json:"patientName,omitempty"`
	StartOfCare       string `json:"startOfCare,omitempty"`
	StartOfEpisode    string `json:"episodeStartDate,omitempty"`
	EndOfEpisode      string `json:"episodeEndDate,omitempty"`
	PhysicianSignDate string `json:"signedByPhysicianDate,omitempty"`
	SendDate          string `json:"sendDate,omitempty"`
	DocumentName      string `json:"documentName" validate:"required"`
}

// EntityTypeAncillary is the EntityType the agency lookup filters on.
const EntityTypeAncillary = "ANCILLIARY"

// Entity is one row of the entity lookup API.
type Entity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EntityType string `json:"entityType"`
}

// ExistingOrder is a previously uploaded order, keyed by its portal
// document ID for pre-run subtraction.
type ExistingOrder struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentID"`
	OrderNo    string `json:"orderNo"`
}
