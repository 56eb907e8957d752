package upload

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverline-health/ordersync/internal/config"
	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/resilience"
	"github.com/silverline-health/ordersync/pkg/platform"
)

type fakePlatform struct {
	platform.Client

	mu           sync.Mutex
	patientErr   error
	orderErr     error
	orderErrOnce bool
	pdfErr       error
	entities     []platform.Entity
	entityType   string
	patientCalls int
	orderCalls   int
	pdfCalls     int
	lastOrderReq platform.CreateOrderRequest
}

func (f *fakePlatform) CreatePatient(_ context.Context, _ platform.CreatePatientRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patientCalls++
	if f.patientErr != nil {
		return "", f.patientErr
	}
	return "new-patient-id", nil
}

func (f *fakePlatform) CreateOrder(_ context.Context, req platform.CreateOrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderCalls++
	f.lastOrderReq = req
	if f.orderErr != nil {
		err := f.orderErr
		if f.orderErrOnce {
			f.orderErr = nil
		}
		return "", err
	}
	return "new-order-id", nil
}

func (f *fakePlatform) UploadOrderPDF(_ context.Context, _, _ string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pdfCalls++
	return f.pdfErr
}

func (f *fakePlatform) ListEntities(_ context.Context, entityType string) ([]platform.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entityType = entityType
	return f.entities, nil
}

const (
	testPG      = "11111111-2222-3333-4444-555555555555"
	testCompany = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
)

func fullRecord(t *testing.T) model.SupremeRecord {
	t.Helper()
	path := filepath.Join(t.TempDir(), "6001.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 body"), 0o644))

	return model.SupremeRecord{
		Doc: model.DocumentRef{DocID: "6001", DocType: "485 CERT", NPI: "1234567890"},
		Fields: model.ExtractedFields{
			OrderNo:     "HH-6001",
			OrderDate:   "01/15/2026",
			MRN:         "AB12345",
			SOC:         "01/05/2026",
			CertPeriod:  model.CertPeriod{SOE: "01/05/2026", EOE: "03/05/2026"},
			PatientName: "Doe, Jane",
			DOB:         "03/14/1952",
			PatientSex:  "FEMALE",
		},
		DocumentName: "485 Certification",
		PGCompanyID:  testPG,
		CompanyID:    testCompany,
		PDFAvailable: true,
		PDFReady:     true,
		PDFPath:      path,
	}
}

func newUploader(pf platform.Client) *Uploader {
	u := New(pf, NewCompanyResolver(pf, ""), config.UploadConfig{Concurrency: 2})
	u.retry = resilience.RetryConfig{MaxAttempts: 1}
	return u
}

func TestUploadHappyPath(t *testing.T) {
	pf := &fakePlatform{}
	u := newUploader(pf)

	out := u.UploadOne(context.Background(), fullRecord(t))

	assert.Equal(t, model.UploadTrue, out.PatientUpload)
	assert.Equal(t, model.UploadTrue, out.OrderUpload)
	assert.Equal(t, model.UploadTrue, out.PDFUpload)
	assert.Equal(t, "new-order-id", out.OrderID)
	assert.Equal(t, "new-patient-id", out.PatientID)
	assert.True(t, out.Successful())
	assert.Equal(t, 1, pf.pdfCalls)
}

func TestExistingPatientSkipsCreate(t *testing.T) {
	pf := &fakePlatform{}
	u := newUploader(pf)

	rec := fullRecord(t)
	rec.PatientExist = true
	rec.PatientID = "known-patient"

	out := u.UploadOne(context.Background(), rec)

	assert.Equal(t, model.UploadSkipped, out.PatientUpload)
	assert.Equal(t, "known-patient", out.PatientID)
	assert.Equal(t, 0, pf.patientCalls)
	assert.Equal(t, model.UploadTrue, out.OrderUpload)
	assert.True(t, out.Successful())
}

func TestDuplicatePatientMapsToSkipped(t *testing.T) {
	pf := &fakePlatform{
		patientErr: resilience.NewStatusError(http.StatusConflict, "patient already exists"),
	}
	u := newUploader(pf)

	out := u.UploadOne(context.Background(), fullRecord(t))

	assert.Equal(t, model.UploadSkipped, out.PatientUpload)
	assert.Contains(t, out.RemarkText(), "duplicate")
	// The duplicate patient carries no id, so no order was ever created.
	// A patient-stage duplicate alone never makes the row successful.
	assert.Equal(t, model.UploadSkipped, out.OrderUpload)
	assert.Contains(t, out.RemarkText(), "patient does not exist")
	assert.Empty(t, out.OrderRemarkText())
	assert.False(t, out.Successful())
}

func TestDuplicateOrderMapsToSkipped(t *testing.T) {
	pf := &fakePlatform{
		orderErr: resilience.NewStatusError(http.StatusConflict, "order already exists"),
	}
	u := newUploader(pf)

	out := u.UploadOne(context.Background(), fullRecord(t))

	assert.Equal(t, model.UploadTrue, out.PatientUpload)
	assert.Equal(t, model.UploadSkipped, out.OrderUpload)
	assert.Contains(t, out.OrderRemarkText(), "duplicate")
	assert.True(t, out.Successful())
}

func TestPatientFailureForcesOrderSkip(t *testing.T) {
	pf := &fakePlatform{
		patientErr: resilience.NewStatusError(http.StatusBadRequest, "malformed payload"),
	}
	u := newUploader(pf)

	out := u.UploadOne(context.Background(), fullRecord(t))

	assert.Equal(t, model.UploadFalse, out.PatientUpload)
	assert.Equal(t, model.UploadSkipped, out.OrderUpload)
	assert.Contains(t, out.RemarkText(), "patient does not exist")
	assert.Equal(t, 0, pf.orderCalls)
	assert.False(t, out.Successful())
}

func TestInsufficientDataSkipsPatient(t *testing.T) {
	pf := &fakePlatform{}
	u := newUploader(pf)

	rec := fullRecord(t)
	rec.Fields.PatientName = ""
	rec.PatientName = ""

	out := u.UploadOne(context.Background(), rec)

	assert.Equal(t, model.UploadSkipped, out.PatientUpload)
	assert.Contains(t, out.RemarkText(), "insufficient data")
	assert.Equal(t, 0, pf.patientCalls)
}

func TestMissingCompanyIDSkips(t *testing.T) {
	pf := &fakePlatform{}
	u := newUploader(pf)

	rec := fullRecord(t)
	rec.CompanyID = ""
	rec.PGCompanyID = "not-a-uuid"

	out := u.UploadOne(context.Background(), rec)

	assert.Equal(t, model.UploadSkipped, out.PatientUpload)
	assert.Contains(t, out.RemarkText(), "insufficient data: companyId")
}

func TestDocumentNameFixPass(t *testing.T) {
	pf := &fakePlatform{
		orderErr:     resilience.NewStatusError(http.StatusBadRequest, "The DocumentName field is required."),
		orderErrOnce: true,
	}
	u := newUploader(pf)

	rec := fullRecord(t)
	out := u.UploadOne(context.Background(), rec)

	assert.Equal(t, model.UploadTrue, out.OrderUpload)
	assert.Equal(t, 2, pf.orderCalls, "order resubmitted once with refilled name")
	assert.Equal(t, "485 Certification", pf.lastOrderReq.DocumentName)
	assert.Contains(t, out.RemarkText(), "fixed DocumentName via doc API")
}

func TestPDFSkippedWhenNotReady(t *testing.T) {
	pf := &fakePlatform{}
	u := newUploader(pf)

	rec := fullRecord(t)
	rec.PDFReady = false

	out := u.UploadOne(context.Background(), rec)

	assert.Equal(t, model.UploadSkipped, out.PDFUpload)
	assert.Equal(t, 0, pf.pdfCalls)
	assert.True(t, out.Successful(), "pdf readiness does not gate success")
}

func TestUploadAllKeepsInputOrder(t *testing.T) {
	pf := &fakePlatform{}
	u := newUploader(pf)

	records := []model.SupremeRecord{fullRecord(t), fullRecord(t), fullRecord(t)}
	records[1].Doc.DocID = "6002"
	records[2].Doc.DocID = "6003"

	outcomes := u.UploadAll(context.Background(), records)

	require.Len(t, outcomes, 3)
	assert.Equal(t, "6001", outcomes[0].DocID)
	assert.Equal(t, "6002", outcomes[1].DocID)
	assert.Equal(t, "6003", outcomes[2].DocID)
}

func TestSplitName(t *testing.T) {
	first, middle, last := splitName("Doe, Jane Ann")
	assert.Equal(t, []string{"Jane", "Ann", "Doe"}, []string{first, middle, last})

	first, middle, last = splitName("Jane Doe")
	assert.Equal(t, []string{"Jane", "", "Doe"}, []string{first, middle, last})

	first, middle, last = splitName("Jane Ann Marie Doe")
	assert.Equal(t, []string{"Jane", "Ann Marie", "Doe"}, []string{first, middle, last})
}

func TestCanonicalUUID(t *testing.T) {
	assert.Equal(t, testPG, CanonicalUUID("11111111222233334444555555555555"))
	assert.Equal(t, testPG, CanonicalUUID(testPG))
	assert.Equal(t, "", CanonicalUUID("nope"))
}

func TestCompanyResolverTiers(t *testing.T) {
	pf := &fakePlatform{entities: []platform.Entity{
		{ID: "entity-id-1", Name: "Acme Home Health"},
	}}

	csvPath := filepath.Join(t.TempDir(), "companies.csv")
	require.NoError(t, os.WriteFile(csvPath,
		[]byte("Beta Care,"+testCompany+"\n"), 0o644))

	r := NewCompanyResolver(pf, csvPath)
	ctx := context.Background()

	assert.Equal(t, "entity-id-1", r.Resolve(ctx, "ACME HOME HEALTH", ""), "entity match is case-insensitive")
	assert.Equal(t, platform.EntityTypeAncillary, pf.entityType)
	assert.Equal(t, testCompany, r.Resolve(ctx, "beta care", ""), "csv mapping is the second tier")
	assert.Equal(t, testPG, r.Resolve(ctx, "Unknown Agency", testPG), "pg id canonicalized as last resort")
	assert.Equal(t, "", r.Resolve(ctx, "Unknown Agency", "bad"))
}
