package engine

import (
	"context"
	"image"
	"time"

	"github.com/google/uuid"

	"sparkfund/services/identity-verification/internal/domain"
	"sparkfund/services/identity-verification/internal/store"
)

// SubmitFront runs Document OCR on the front image and advances
// pending -> front_document_processed. An unrecoverable OCR/decode error is
// the one case where this step is a hard failure: it commits a terminal
// failed record rather than surfacing the error to the caller, per §7's
// "never a hard failure except when Front OCR throws unrecoverable
// decoding errors".
func (e *Engine) SubmitFront(ctx context.Context, requestID uuid.UUID, path string) (*domain.VerificationRequest, error) {
	req, err := e.requireStatus(ctx, requestID, "submit_front", domain.StatusPending)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	img, raw, err := e.fetchAndDecode(ctx, path)
	if err != nil {
		if domain.IsKind(err, domain.KindExtraction) {
			return e.hardFailFront(ctx, req, err)
		}
		e.recordStage("front_ocr", start, "transient")
		return nil, err
	}

	result, err := e.comps.Ocr.ProcessFront(ctx, img, e.documentType)
	if err != nil {
		return e.hardFailFront(ctx, req, err)
	}
	e.recordStage("front_ocr", start, "ok")

	next := req.Clone()
	artifactID := e.putArtifact(ctx, requestID, path, domain.RoleFront, raw)
	next.FrontArtifactID = &artifactID
	next.OcrFields = result.Fields
	next.Status = domain.StatusFrontDocumentProcessed
	next.CurrentStep = domain.StatusFrontDocumentProcessed.Step()

	return e.commit(ctx, next, req.Version)
}

func (e *Engine) hardFailFront(ctx context.Context, req *domain.VerificationRequest, cause error) (*domain.VerificationRequest, error) {
	e.recordStage("front_ocr", time.Now(), "hard_failure")
	next := req.Clone()
	next.Status = domain.StatusFailed
	next.CurrentStep = domain.StatusFailed.Step()
	next.FailureReason = "Front OCR failed"
	return e.commit(ctx, next, req.Version)
}

// SubmitBack decodes the back-of-ID PDF417/OCR data and advances
// front_document_processed -> back_document_processed. Barcode/OCR
// extraction failure is always a soft failure here: it sets
// BarcodeExtractionFailed and continues, per §4.6.
func (e *Engine) SubmitBack(ctx context.Context, requestID uuid.UUID, path string) (*domain.VerificationRequest, error) {
	req, err := e.requireStatus(ctx, requestID, "submit_back", domain.StatusFrontDocumentProcessed)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	img, raw, err := e.fetchAndDecode(ctx, path)
	if err != nil && !domain.IsKind(err, domain.KindExtraction) {
		e.recordStage("back_decode", start, "transient")
		return nil, err
	}

	var back *domain.BackIdData
	if err == nil {
		back, err = e.comps.Back.Process(ctx, img)
	}
	if err != nil {
		// The Back-ID Decoder never returns a hard error by design; any
		// error here is treated the same as an unreadable barcode and
		// OCR fallback: compose an empty, invalid BackIdData and continue.
		back = &domain.BackIdData{
			Pdf417: &domain.Pdf417Payload{Validation: domain.Pdf417Invalid},
		}
	}
	e.recordStage("back_decode", start, "ok")

	barcodeFailed := back.Pdf417 != nil && back.Pdf417.Validation == domain.Pdf417Invalid &&
		(back.Ocr == nil || len(back.Ocr.Values) == 0)

	next := req.Clone()
	artifactID := e.putArtifact(ctx, requestID, path, domain.RoleBack, raw)
	next.BackArtifactID = &artifactID
	next.BackData = back
	next.BarcodeExtractionFailed = barcodeFailed
	next.Status = domain.StatusBackDocumentProcessed
	next.CurrentStep = domain.StatusBackDocumentProcessed.Step()

	return e.commit(ctx, next, req.Version)
}

// CrossValidate compares front OCR fields against back-decoded data and
// advances back_document_processed -> cross_validation_completed, or
// terminates as failed when the two sides clearly belong to different
// people.
func (e *Engine) CrossValidate(ctx context.Context, requestID uuid.UUID) (*domain.VerificationRequest, error) {
	req, err := e.requireStatus(ctx, requestID, "cross_validate", domain.StatusBackDocumentProcessed)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := e.comps.CrossValidate.Compare(req.OcrFields, req.BackData)
	e.recordStage("cross_validate", start, "ok")

	next := req.Clone()
	next.CrossValidationReport = report
	next.DocumentsMatch = report.OverallConsistent

	if !report.OverallConsistent && !report.RequiresManualReview {
		next.Status = domain.StatusFailed
		next.CurrentStep = domain.StatusFailed.Step()
		next.FailureReason = "Front and back do not match the same person"
		return e.commit(ctx, next, req.Version)
	}

	next.Status = domain.StatusCrossValidationCompleted
	next.CurrentStep = domain.StatusCrossValidationCompleted.Step()
	return e.commit(ctx, next, req.Version)
}

// SubmitLive computes face similarity and passive liveness and advances
// cross_validation_completed -> live_capture_completed. It never fails the
// request itself; the biometric outcome is only decisive at Finalize.
func (e *Engine) SubmitLive(ctx context.Context, requestID uuid.UUID, path string) (*domain.VerificationRequest, error) {
	req, err := e.requireStatus(ctx, requestID, "submit_live", domain.StatusCrossValidationCompleted)
	if err != nil {
		if err == domain.ErrIllegalState {
			return nil, domain.InputError("Cross-validation must be completed first")
		}
		return nil, err
	}

	start := time.Now()
	selfieImg, selfieRaw, err := e.fetchAndDecode(ctx, path)
	if err != nil {
		e.recordStage("biometric", start, "transient")
		return nil, err
	}

	idImg, err := e.loadIDPhoto(ctx, req)
	if err != nil {
		e.recordStage("biometric", start, "transient")
		return nil, err
	}

	report := e.comps.Biometric.Process(ctx, idImg, selfieImg)
	e.recordStage("biometric", start, "ok")

	next := req.Clone()
	artifactID := e.putArtifact(ctx, requestID, path, domain.RoleSelfie, selfieRaw)
	next.SelfieArtifactID = &artifactID
	next.BiometricReport = report
	next.FacePassed = report.FacePassed
	next.LivenessPassed = report.LivenessPassed
	next.Status = domain.StatusLiveCaptureCompleted
	next.CurrentStep = domain.StatusLiveCaptureCompleted.Step()

	return e.commit(ctx, next, req.Version)
}

// loadIDPhoto refetches the front-of-ID image to serve as the comparison
// photograph for face matching, keyed off the artifact metadata recorded at
// SubmitFront.
func (e *Engine) loadIDPhoto(ctx context.Context, req *domain.VerificationRequest) (image.Image, error) {
	if req.FrontArtifactID == nil {
		return nil, domain.Fatal(nil, "verification request %s has no front artifact on file", req.ID)
	}
	artifact, err := e.artifacts.Get(ctx, *req.FrontArtifactID)
	if err != nil {
		return nil, err
	}
	img, _, err := e.fetchAndDecode(ctx, artifact.Path)
	return img, err
}

// Finalize applies the decision ladder and commits a terminal status. It is
// idempotent once the request is already terminal.
func (e *Engine) Finalize(ctx context.Context, requestID uuid.UUID) (*domain.VerificationRequest, error) {
	req, err := e.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.IsTerminal() {
		return req, nil
	}
	if req.Status != domain.StatusLiveCaptureCompleted {
		e.recordTransition("finalize", false)
		e.log.WithRequestID(requestID.String()).WithField("status", string(req.Status)).Warn("rejected illegal transition: finalize")
		return nil, domain.ErrIllegalState
	}

	next := req.Clone()
	next.CurrentStep = domain.StatusVerified.Step()

	manualReview := next.BarcodeExtractionFailed ||
		(next.CrossValidationReport != nil && next.CrossValidationReport.RequiresManualReview)

	switch {
	case manualReview:
		next.Status = domain.StatusManualReview
		next.ManualReviewReason = manualReviewReason(next)
	case next.BiometricReport == nil || !next.BiometricReport.FacePassed:
		next.Status = domain.StatusFailed
		next.FailureReason = "Face matching failed"
	case !next.BiometricReport.LivenessPassed:
		next.Status = domain.StatusFailed
		next.FailureReason = "Liveness failed"
	default:
		next.Status = domain.StatusVerified
	}

	result, err := e.commit(ctx, next, req.Version)
	if err == nil {
		e.metrics.RecordDecision(string(result.Status))
	}
	return result, err
}

func manualReviewReason(req *domain.VerificationRequest) string {
	if req.CrossValidationReport != nil && req.CrossValidationReport.ManualReviewReason != "" {
		return req.CrossValidationReport.ManualReviewReason
	}
	return "Back-of-ID data could not be read."
}

// Approve is the admin override that accepts a request sitting in
// manual_review. It is only legal from manual_review, as is Reject: a
// verified or failed decision is never overridden in place; a new decision
// needs a fresh Initialize.
func (e *Engine) Approve(ctx context.Context, requestID uuid.UUID, reviewerID string) (*domain.VerificationRequest, error) {
	return e.adminOverride(ctx, requestID, reviewerID, "", domain.StatusVerified, "approve")
}

// Reject is the admin override that turns a manual_review request into a
// failed one, recording reason on the record and in the audit trail.
func (e *Engine) Reject(ctx context.Context, requestID uuid.UUID, reviewerID, reason string) (*domain.VerificationRequest, error) {
	return e.adminOverride(ctx, requestID, reviewerID, reason, domain.StatusFailed, "reject")
}

func (e *Engine) adminOverride(ctx context.Context, requestID uuid.UUID, reviewerID, reason string, outcome domain.Status, action string) (*domain.VerificationRequest, error) {
	req, err := e.requireStatus(ctx, requestID, action, domain.StatusManualReview)
	if err != nil {
		return nil, err
	}
	if reviewerID == "" {
		return nil, domain.InputError("%s requires a reviewer id", action)
	}

	next := req.Clone()
	next.Status = outcome
	next.ReviewerID = reviewerID
	if outcome == domain.StatusFailed {
		next.FailureReason = reason
	}

	result, err := e.commit(ctx, next, req.Version)
	if err != nil {
		return nil, err
	}

	if auditErr := e.audit.Append(ctx, store.AuditRecord{
		ID:             uuid.New(),
		RequestID:      requestID,
		ReviewerID:     reviewerID,
		Action:         action,
		Reason:         reason,
		PreviousStatus: req.Status,
		NextStatus:     outcome,
		At:             result.UpdatedAt,
	}); auditErr != nil {
		e.log.WithRequestID(requestID.String()).WithError(auditErr).Warn("failed to append audit record")
	}

	e.metrics.RecordDecision(string(outcome))
	return result, nil
}
