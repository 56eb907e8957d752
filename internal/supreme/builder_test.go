package supreme

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/resilience"
	"github.com/silverline-health/ordersync/pkg/platform"
	"github.com/silverline-health/ordersync/pkg/portalapi"
)

type fakePortalAPI struct {
	mu    sync.Mutex
	calls int
	docs  map[string]*portalapi.Document
}

func (f *fakePortalAPI) GetFile(_ context.Context, docID string) (*portalapi.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if doc, ok := f.docs[docID]; ok {
		return doc, nil
	}
	return nil, resilience.NewStatusError(http.StatusNotFound, "not found")
}

type fakePlatform struct {
	platform.Client
	patients []model.PlatformPatient
	err      error
}

func (f *fakePlatform) ListPatients(_ context.Context, _ string) ([]model.PlatformPatient, error) {
	return f.patients, f.err
}

type fixedInferrer struct{ sex string }

func (f fixedInferrer) InferSex(_ context.Context, _ string) string { return f.sex }

var catalogPatient = model.PlatformPatient{
	ID:              "pat-uuid-1",
	MRN:             "AB12345",
	DABackOfficeID:  "9001",
	FirstName:       "Jane",
	LastName:        "Doe",
	Sex:             "FEMALE",
	AgencyCompanyID: "company-uuid-1",
	PGCompanyID:     "pg-uuid-1",
	Episodes: []model.EpisodeDiagnosis{
		{SOC: "11/01/2025", CertPeriodSOE: "11/01/2025", CertPeriodEOE: "12/31/2025"},
		{SOC: "11/01/2025", CertPeriodSOE: "01/01/2026", CertPeriodEOE: "03/01/2026"},
	},
}

func company() model.CompanyConfig {
	return model.CompanyConfig{
		Key:         "acme",
		Name:        "Acme Home Health",
		PGCompanyID: "pg-uuid-0",
		StartDate:   "01/01/2026",
		EndDate:     "01/31/2026",
	}
}

func TestBuildMatchesByMRN(t *testing.T) {
	api := &fakePortalAPI{docs: map[string]*portalapi.Document{
		"5001": {
			DocumentType: portalapi.DocumentType{DisplayName: "485 Certification"},
			PatientName:  "Jane Doe",
			SendDate:     "01/10/2026",
			CareProvider: "Acme Home Health",
		},
	}}
	pf := &fakePlatform{patients: []model.PlatformPatient{catalogPatient}}
	b := New(api, pf, nil, 2)

	inputs := []Input{{
		Doc:    model.DocumentRef{DocID: "5001", DocType: "485"},
		Fields: model.ExtractedFields{MRN: "ab12345", PatientSex: "FEMALE"},
	}}
	records, err := b.Build(context.Background(), company(), inputs)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.True(t, rec.PatientExist)
	assert.Equal(t, "pat-uuid-1", rec.PatientID)
	assert.Equal(t, "9001", rec.DABackOfficeID)
	assert.Equal(t, "company-uuid-1", rec.CompanyID)
	assert.Equal(t, "pg-uuid-1", rec.PGCompanyID, "platform pg id replaces config value on match")
	assert.Equal(t, "485 Certification", rec.DocumentType)
	assert.Equal(t, "01/10/2026", rec.SendDate)
}

func TestBuildMatchesByBackOfficeID(t *testing.T) {
	// No MRN extracted; the document API reports the back-office patient id
	// and that alone must match the catalog patient.
	api := &fakePortalAPI{docs: map[string]*portalapi.Document{
		"5001": {PatientID: "9001", PatientName: "Doe, Jane"},
	}}
	pf := &fakePlatform{patients: []model.PlatformPatient{catalogPatient}}
	b := New(api, pf, nil, 2)

	inputs := []Input{{
		Doc:    model.DocumentRef{DocID: "5001"},
		Fields: model.ExtractedFields{PatientSex: "FEMALE"},
	}}
	records, err := b.Build(context.Background(), company(), inputs)
	require.NoError(t, err)

	assert.True(t, records[0].PatientExist)
	assert.Equal(t, "pat-uuid-1", records[0].PatientID)
	assert.Equal(t, "9001", records[0].DABackOfficeID)
}

func TestBuildNoMatchWithoutBackOfficeID(t *testing.T) {
	// A document id that merely collides with a back-office id must not match.
	api := &fakePortalAPI{docs: map[string]*portalapi.Document{}}
	pf := &fakePlatform{patients: []model.PlatformPatient{catalogPatient}}
	b := New(api, pf, nil, 2)

	inputs := []Input{{
		Doc:    model.DocumentRef{DocID: "9001"},
		Fields: model.ExtractedFields{PatientSex: "FEMALE"},
	}}
	records, err := b.Build(context.Background(), company(), inputs)
	require.NoError(t, err)

	assert.False(t, records[0].PatientExist)
}

func TestOrderDateFallsBackToSendDate(t *testing.T) {
	api := &fakePortalAPI{docs: map[string]*portalapi.Document{
		"5002": {SendDate: "01/12/2026"},
	}}
	b := New(api, &fakePlatform{}, nil, 2)

	records, err := b.Build(context.Background(), company(), []Input{{
		Doc: model.DocumentRef{DocID: "5002"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "01/12/2026", records[0].Fields.OrderDate)
}

func TestEpisodeDateFill(t *testing.T) {
	f := model.ExtractedFields{CertPeriod: model.CertPeriod{SOE: "01/01/2026"}}
	fillEpisodeDates(&f, &catalogPatient)
	assert.Equal(t, "03/01/2026", f.CertPeriod.EOE, "date-aligned episode supplies eoe")
	assert.Equal(t, "11/01/2025", f.SOC)

	f = model.ExtractedFields{}
	fillEpisodeDates(&f, &catalogPatient)
	assert.Equal(t, "11/01/2025", f.CertPeriod.SOE, "first episode used without alignment")
	assert.Equal(t, "12/31/2025", f.CertPeriod.EOE)
}

func TestSexInference(t *testing.T) {
	api := &fakePortalAPI{docs: map[string]*portalapi.Document{}}
	b := New(api, &fakePlatform{}, fixedInferrer{sex: "MALE"}, 2)

	records, err := b.Build(context.Background(), company(), []Input{{
		Doc:    model.DocumentRef{DocID: "5003"},
		Fields: model.ExtractedFields{PatientName: "John Roe"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "MALE", records[0].Fields.PatientSex)
}

func TestPDFReadiness(t *testing.T) {
	api := &fakePortalAPI{docs: map[string]*portalapi.Document{}}
	b := New(api, &fakePlatform{}, nil, 2)

	path := filepath.Join(t.TempDir(), "5004.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 content"), 0o644))

	records, err := b.Build(context.Background(), company(), []Input{
		{Doc: model.DocumentRef{DocID: "5004"}, PDFPath: path},
		{Doc: model.DocumentRef{DocID: "5005"}},
	})
	require.NoError(t, err)

	assert.True(t, records[0].PDFAvailable)
	assert.True(t, records[0].PDFReady)
	assert.Equal(t, int64(16), records[0].PDFSize)
	assert.False(t, records[1].PDFAvailable)
}

func TestMetadataCachedPerRun(t *testing.T) {
	api := &fakePortalAPI{docs: map[string]*portalapi.Document{
		"5006": {SendDate: "01/12/2026"},
	}}
	b := New(api, &fakePlatform{}, nil, 2)

	_, err := b.Build(context.Background(), company(), []Input{{Doc: model.DocumentRef{DocID: "5006"}}})
	require.NoError(t, err)
	_, err = b.Build(context.Background(), company(), []Input{{Doc: model.DocumentRef{DocID: "5006"}}})
	require.NoError(t, err)

	assert.Equal(t, 1, api.calls, "metadata fetched once across builds")
}
