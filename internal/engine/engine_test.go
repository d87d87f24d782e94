package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkfund/services/identity-verification/internal/barcode"
	"sparkfund/services/identity-verification/internal/biometric"
	"sparkfund/services/identity-verification/internal/crossvalidate"
	"sparkfund/services/identity-verification/internal/domain"
	"sparkfund/services/identity-verification/internal/gateway"
	"sparkfund/services/identity-verification/internal/logger"
	"sparkfund/services/identity-verification/internal/ocrengine"
	"sparkfund/services/identity-verification/internal/store"
	"sparkfund/services/identity-verification/internal/vision"
)

func solidJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

const frontText = "NAME: JANE DOE SEX: F DL NUMBER: D1234567 DOB 02/14/1990 EXP 02/14/2030"

// matchingAAMVA is a forward-scanned AAMVA element sequence whose critical
// fields (first/last name, document number, date of birth) agree with
// frontText, so cross-validation passes every check it runs.
const matchingAAMVA = "DACJANEDCSDOEDAQD1234567DBB02141990DBA02142030DBCF"

// mismatchedAAMVA carries a different name and document number so cross
// validation observes a clear inconsistency.
const mismatchedAAMVA = "DACJOHNDCSSMITHDAQZ9999999DBB01011975DBA01012031DBCM"

type stubPdf417Reader struct {
	text  string
	found bool
}

func (s stubPdf417Reader) Decode(ctx context.Context, img image.Image) (string, bool, error) {
	return s.text, s.found, nil
}

func newTestEngine(t *testing.T, reader barcode.Pdf417Reader) (*Engine, *store.MemoryStore, *gateway.MemoryBlobStore) {
	t.Helper()
	kv := store.NewMemoryStore()
	artifacts := store.NewMemoryArtifactStore()
	blobs := gateway.NewMemoryBlobStore()

	ocr := &ocrengine.MockOCR{Responses: []ocrengine.RawResult{{Text: frontText, MeanConfidence: 88}}}

	comps := Components{
		Ocr:  ocrengine.NewComponent(ocr, 2000, 1200),
		Back: barcode.NewComponent(reader, vision.NoopModel{}, ocrengine.NoopOCR{}),
		CrossValidate: crossvalidate.NewComponent(crossvalidate.Thresholds{
			CrossValidationThreshold: 0.7,
			AddressSimilarityPass:    0.7,
			WeightToleranceLbs:       5,
			HeightToleranceIn:        1,
		}),
		Biometric: biometric.NewComponent(nil, biometric.Thresholds{FaceMatchThreshold: 0.65, LivenessThreshold: 0.6}),
	}

	eng := New(kv, artifacts, blobs, comps, 2000, 1200, logger.New("test"))
	return eng, kv, blobs
}

func TestSubmitFront_ExtractsFieldsAndAdvances(t *testing.T) {
	eng, _, blobs := newTestEngine(t, stubPdf417Reader{found: false})
	ctx := context.Background()

	req, err := eng.Initialize(ctx, "subject-1", "tenant-1")
	require.NoError(t, err)

	blobs.Put("front.jpg", solidJPEG(t, 800, 600, color.White))

	updated, err := eng.SubmitFront(ctx, req.ID, "front.jpg")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFrontDocumentProcessed, updated.Status)
	assert.Equal(t, 2, updated.CurrentStep)
	require.NotNil(t, updated.OcrFields)
	assert.Equal(t, "JANE DOE", updated.OcrFields.Values[domain.FieldFullName])
	assert.Equal(t, "D1234567", updated.OcrFields.Values[domain.FieldDocumentNumber])
	assert.Equal(t, "02/14/1990", updated.OcrFields.Values[domain.FieldDateOfBirth])
	require.NotNil(t, updated.FrontArtifactID)
}

func TestSubmitFront_UnknownRequestIsNotFound(t *testing.T) {
	eng, _, _ := newTestEngine(t, stubPdf417Reader{found: false})
	ctx := context.Background()

	_, err := eng.SubmitFront(ctx, uuid.New(), "front.jpg")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmitBack_UnreadableBarcodeSetsSoftFailureFlag(t *testing.T) {
	eng, _, blobs := newTestEngine(t, stubPdf417Reader{found: false})
	ctx := context.Background()

	req, err := eng.Initialize(ctx, "subject-1", "tenant-1")
	require.NoError(t, err)
	blobs.Put("front.jpg", solidJPEG(t, 800, 600, color.White))
	req, err = eng.SubmitFront(ctx, req.ID, "front.jpg")
	require.NoError(t, err)

	blobs.Put("back.jpg", solidJPEG(t, 800, 600, color.Black))
	updated, err := eng.SubmitBack(ctx, req.ID, "back.jpg")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusBackDocumentProcessed, updated.Status)
	assert.True(t, updated.BarcodeExtractionFailed)
}

func TestSubmitBack_DecodesAndMergesAAMVAFields(t *testing.T) {
	eng, _, blobs := newTestEngine(t, stubPdf417Reader{text: matchingAAMVA, found: true})
	ctx := context.Background()

	req, err := eng.Initialize(ctx, "subject-1", "tenant-1")
	require.NoError(t, err)
	blobs.Put("front.jpg", solidJPEG(t, 800, 600, color.White))
	req, err = eng.SubmitFront(ctx, req.ID, "front.jpg")
	require.NoError(t, err)

	blobs.Put("back.jpg", solidJPEG(t, 800, 600, color.Black))
	updated, err := eng.SubmitBack(ctx, req.ID, "back.jpg")
	require.NoError(t, err)

	assert.False(t, updated.BarcodeExtractionFailed)
	require.NotNil(t, updated.BackData)
	assert.Equal(t, domain.Pdf417Valid, updated.BackData.Pdf417.Validation)
	assert.Equal(t, "D1234567", updated.BackData.MergedFields[domain.FieldDocumentNumber])
}

func submitThroughBack(t *testing.T, eng *Engine, blobs *gateway.MemoryBlobStore, ctx context.Context) *domain.VerificationRequest {
	t.Helper()
	req, err := eng.Initialize(ctx, "subject-1", "tenant-1")
	require.NoError(t, err)
	blobs.Put("front.jpg", solidJPEG(t, 800, 600, color.White))
	req, err = eng.SubmitFront(ctx, req.ID, "front.jpg")
	require.NoError(t, err)
	blobs.Put("back.jpg", solidJPEG(t, 800, 600, color.Black))
	req, err = eng.SubmitBack(ctx, req.ID, "back.jpg")
	require.NoError(t, err)
	return req
}

func TestCrossValidate_MatchingFieldsAdvancesToCompleted(t *testing.T) {
	eng, _, blobs := newTestEngine(t, stubPdf417Reader{text: matchingAAMVA, found: true})
	ctx := context.Background()
	req := submitThroughBack(t, eng, blobs, ctx)

	updated, err := eng.CrossValidate(ctx, req.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCrossValidationCompleted, updated.Status)
	assert.True(t, updated.DocumentsMatch)
	require.NotNil(t, updated.CrossValidationReport)
	assert.True(t, updated.CrossValidationReport.OverallConsistent)
	assert.Empty(t, updated.CrossValidationReport.Discrepancies)
}

func TestCrossValidate_MismatchedFieldsTerminatesFailed(t *testing.T) {
	eng, _, blobs := newTestEngine(t, stubPdf417Reader{text: mismatchedAAMVA, found: true})
	ctx := context.Background()
	req := submitThroughBack(t, eng, blobs, ctx)

	updated, err := eng.CrossValidate(ctx, req.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, updated.Status)
	assert.NotEmpty(t, updated.FailureReason)
}

func TestCrossValidate_RejectsFromWrongStatus(t *testing.T) {
	eng, _, _ := newTestEngine(t, stubPdf417Reader{found: false})
	ctx := context.Background()
	req, err := eng.Initialize(ctx, "subject-1", "tenant-1")
	require.NoError(t, err)

	_, err = eng.CrossValidate(ctx, req.ID)
	assert.ErrorIs(t, err, domain.ErrIllegalState)
}

func TestSubmitLive_RejectsBeforeCrossValidate(t *testing.T) {
	eng, _, blobs := newTestEngine(t, stubPdf417Reader{found: false})
	ctx := context.Background()
	req := submitThroughBack(t, eng, blobs, ctx)

	blobs.Put("selfie.jpg", solidJPEG(t, 800, 600, color.Gray{Y: 128}))
	_, err := eng.SubmitLive(ctx, req.ID, "selfie.jpg")

	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.True(t, domain.IsKind(err, domain.KindInput))
	assert.Contains(t, domainErr.Error(), "Cross-validation must be completed first")

	unchanged, getErr := eng.Get(ctx, req.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusBackDocumentProcessed, unchanged.Status)
	assert.Equal(t, req.Version, unchanged.Version)
}

func TestSubmitLive_AdvancesToLiveCaptureCompleted(t *testing.T) {
	eng, _, blobs := newTestEngine(t, stubPdf417Reader{text: matchingAAMVA, found: true})
	ctx := context.Background()
	req := submitThroughBack(t, eng, blobs, ctx)

	req, err := eng.CrossValidate(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCrossValidationCompleted, req.Status)

	blobs.Put("selfie.jpg", solidJPEG(t, 800, 600, color.Gray{Y: 128}))
	updated, err := eng.SubmitLive(ctx, req.ID, "selfie.jpg")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusLiveCaptureCompleted, updated.Status)
	require.NotNil(t, updated.SelfieArtifactID)
	require.NotNil(t, updated.BiometricReport)
	assert.Equal(t, updated.BiometricReport.FacePassed, updated.FacePassed)
	assert.Equal(t, updated.BiometricReport.LivenessPassed, updated.LivenessPassed)
}

// seedLiveCaptureCompleted writes a record directly to the store in
// live_capture_completed with the given biometric/cross-validation outcome,
// bypassing SubmitLive's pixel-space scoring so Finalize's decision ladder
// can be tested deterministically.
func seedLiveCaptureCompleted(t *testing.T, kv *store.MemoryStore, barcodeFailed, crossManualReview, facePassed, livenessPassed bool) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	req := &domain.VerificationRequest{
		ID:          id,
		SubjectID:   "subject-1",
		TenantID:    "tenant-1",
		Status:      domain.StatusLiveCaptureCompleted,
		CurrentStep: domain.StatusLiveCaptureCompleted.Step(),
		CrossValidationReport: &domain.CrossValidationReport{
			OverallConsistent:    !crossManualReview,
			RequiresManualReview: crossManualReview,
			FieldMatches:         map[string]bool{},
		},
		BiometricReport: &domain.BiometricReport{
			FacePassed:     facePassed,
			LivenessPassed: livenessPassed,
			Diagnostics:    map[string]float64{},
		},
		BarcodeExtractionFailed: barcodeFailed,
		FacePassed:              facePassed,
		LivenessPassed:          livenessPassed,
		CreatedAt:               time.Now(),
		UpdatedAt:               time.Now(),
		Version:                 0,
	}
	require.NoError(t, kv.Create(ctx, req))
	return id
}

func TestFinalize_AllPassed_Verifies(t *testing.T) {
	eng, kv, _ := newTestEngine(t, stubPdf417Reader{found: false})
	id := seedLiveCaptureCompleted(t, kv, false, false, true, true)

	updated, err := eng.Finalize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, updated.Status)
}

func TestFinalize_BarcodeExtractionFailed_GoesToManualReview(t *testing.T) {
	eng, kv, _ := newTestEngine(t, stubPdf417Reader{found: false})
	id := seedLiveCaptureCompleted(t, kv, true, false, true, true)

	updated, err := eng.Finalize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusManualReview, updated.Status)
}

func TestFinalize_CrossValidationManualReview_GoesToManualReview(t *testing.T) {
	eng, kv, _ := newTestEngine(t, stubPdf417Reader{found: false})
	id := seedLiveCaptureCompleted(t, kv, false, true, true, true)

	updated, err := eng.Finalize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusManualReview, updated.Status)
}

func TestFinalize_FaceFailed_Fails(t *testing.T) {
	eng, kv, _ := newTestEngine(t, stubPdf417Reader{found: false})
	id := seedLiveCaptureCompleted(t, kv, false, false, false, true)

	updated, err := eng.Finalize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, updated.Status)
	assert.Equal(t, "Face matching failed", updated.FailureReason)
}

func TestFinalize_LivenessFailed_Fails(t *testing.T) {
	eng, kv, _ := newTestEngine(t, stubPdf417Reader{found: false})
	id := seedLiveCaptureCompleted(t, kv, false, false, true, false)

	updated, err := eng.Finalize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, updated.Status)
	assert.Equal(t, "Liveness failed", updated.FailureReason)
}

func TestFinalize_AlreadyTerminal_IsIdempotent(t *testing.T) {
	eng, kv, _ := newTestEngine(t, stubPdf417Reader{found: false})
	id := seedLiveCaptureCompleted(t, kv, false, false, true, true)

	first, err := eng.Finalize(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusVerified, first.Status)

	second, err := eng.Finalize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, second.Status)
	assert.Equal(t, first.Version, second.Version)
}

func TestApprove_OnManualReview_RecordsAuditEntry(t *testing.T) {
	eng, kv, _ := newTestEngine(t, stubPdf417Reader{found: false})
	ctx := context.Background()
	id := uuid.New()
	req := &domain.VerificationRequest{
		ID: id, SubjectID: "subject-1", Status: domain.StatusManualReview,
		CurrentStep: domain.StatusManualReview.Step(), CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, kv.Create(ctx, req))

	updated, err := eng.Approve(ctx, id, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, updated.Status)
	assert.Equal(t, "reviewer-1", updated.ReviewerID)

	records := eng.audit.(*store.MemoryAuditStore).Records()
	require.Len(t, records, 1)
	assert.Equal(t, "approve", records[0].Action)
}

func TestReject_OnManualReview_SetsFailureReasonAndAudits(t *testing.T) {
	eng, kv, _ := newTestEngine(t, stubPdf417Reader{found: false})
	ctx := context.Background()
	id := uuid.New()
	req := &domain.VerificationRequest{
		ID: id, SubjectID: "subject-1", Status: domain.StatusManualReview,
		CurrentStep: domain.StatusManualReview.Step(), CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, kv.Create(ctx, req))

	updated, err := eng.Reject(ctx, id, "reviewer-1", "document photo altered")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, updated.Status)
	assert.Equal(t, "document photo altered", updated.FailureReason)

	records := eng.audit.(*store.MemoryAuditStore).Records()
	require.Len(t, records, 1)
	assert.Equal(t, "reject", records[0].Action)
}

func TestApprove_RejectsFromNonManualReviewStatus(t *testing.T) {
	eng, kv, _ := newTestEngine(t, stubPdf417Reader{found: false})
	ctx := context.Background()
	id := uuid.New()
	req := &domain.VerificationRequest{
		ID: id, SubjectID: "subject-1", Status: domain.StatusVerified,
		CurrentStep: domain.StatusVerified.Step(), CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, kv.Create(ctx, req))

	_, err := eng.Approve(ctx, id, "reviewer-1")
	assert.ErrorIs(t, err, domain.ErrIllegalState)
}
