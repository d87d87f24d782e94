// Package domain holds the shared data model for the verification pipeline:
// the per-subject request record, the artifacts it references, and the
// per-stage result structures produced by OCR, barcode decoding, cross
// validation and biometric comparison.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the verification request's position in the engine's state machine.
type Status string

const (
	StatusPending                   Status = "pending"
	StatusFrontDocumentProcessing   Status = "front_document_processing"
	StatusFrontDocumentProcessed    Status = "front_document_processed"
	StatusBackDocumentProcessing    Status = "back_document_processing"
	StatusBackDocumentProcessed     Status = "back_document_processed"
	StatusCrossValidationProcessing Status = "cross_validation_processing"
	StatusCrossValidationCompleted  Status = "cross_validation_completed"
	StatusLiveCaptureProcessing     Status = "live_capture_processing"
	StatusLiveCaptureCompleted      Status = "live_capture_completed"
	StatusVerified                  Status = "verified"
	StatusFailed                    Status = "failed"
	StatusManualReview              Status = "manual_review"
)

// IsTerminal reports whether status is one of the three automation outcomes.
func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusFailed || s == StatusManualReview
}

// stepOf maps every status to its current_step ordinal (1-6). This is the
// single source of truth for the "current_step is monotonically
// non-decreasing" invariant.
var stepOf = map[Status]int{
	StatusPending:                   1,
	StatusFrontDocumentProcessing:   1,
	StatusFrontDocumentProcessed:    2,
	StatusBackDocumentProcessing:    2,
	StatusBackDocumentProcessed:     3,
	StatusCrossValidationProcessing: 3,
	StatusCrossValidationCompleted:  4,
	StatusLiveCaptureProcessing:     4,
	StatusLiveCaptureCompleted:      5,
	StatusVerified:                  6,
	StatusFailed:                    6,
	StatusManualReview:              6,
}

// Step returns the current_step ordinal associated with status.
func (s Status) Step() int {
	return stepOf[s]
}

// DocumentRole identifies which side of the capture an artifact belongs to.
type DocumentRole string

const (
	RoleFront  DocumentRole = "front"
	RoleBack   DocumentRole = "back"
	RoleSelfie DocumentRole = "selfie"
)

// DocumentType is the declared document category driving OCR pattern choice.
type DocumentType string

const (
	DocumentPassport       DocumentType = "passport"
	DocumentDriversLicense DocumentType = "drivers_license"
	DocumentNationalID     DocumentType = "national_id"
	DocumentGeneric        DocumentType = "generic"
)

// MimeType is a detected raster image format.
type MimeType string

const (
	MimeJPEG    MimeType = "image/jpeg"
	MimePNG     MimeType = "image/png"
	MimeWebP    MimeType = "image/webp"
	MimeUnknown MimeType = "application/octet-stream"
)

// FieldName enumerates the recognized OCR/AAMVA field names.
type FieldName string

const (
	FieldFullName              FieldName = "name"
	FieldFirstName             FieldName = "first_name"
	FieldLastName              FieldName = "last_name"
	FieldMiddleName            FieldName = "middle_name"
	FieldDocumentNumber        FieldName = "document_number"
	FieldDateOfBirth           FieldName = "date_of_birth"
	FieldExpirationDate        FieldName = "expiration_date"
	FieldIssueDate             FieldName = "issue_date"
	FieldAddress               FieldName = "address"
	FieldCity                  FieldName = "city"
	FieldState                 FieldName = "state"
	FieldZipCode                FieldName = "zip_code"
	FieldSex                   FieldName = "sex"
	FieldHeight                FieldName = "height"
	FieldWeight                FieldName = "weight"
	FieldEyeColor               FieldName = "eye_color"
	FieldNationality            FieldName = "nationality"
	FieldIssuingAuthority       FieldName = "issuing_authority"
	FieldVehicleClass           FieldName = "vehicle_class"
	FieldRestrictions           FieldName = "restrictions"
	FieldEndorsements           FieldName = "endorsements"
	FieldDocumentDiscriminator FieldName = "document_discriminator"
)

// Pdf417Validation tags how trustworthy a decoded/synthesized barcode payload is.
type Pdf417Validation string

const (
	Pdf417Valid   Pdf417Validation = "valid"
	Pdf417Partial Pdf417Validation = "partial"
	Pdf417Invalid Pdf417Validation = "invalid"
)

// DocumentArtifact is metadata for one uploaded image.
type DocumentArtifact struct {
	ID               uuid.UUID
	RequestID        uuid.UUID
	Path             string
	OriginalFilename string
	ByteSize         int64
	MimeType         MimeType
	Role             DocumentRole
	QualityScore     *float64
	CachedFields     map[FieldName]string
}

// OcrFields is a mapping from recognized field name to extracted value, with
// a parallel confidence mapping and the raw recognized text.
type OcrFields struct {
	Values      map[FieldName]string
	Confidence  map[FieldName]float64
	RawText     string
	QualityScore float64
}

// NewOcrFields returns an OcrFields with initialized maps.
func NewOcrFields() *OcrFields {
	return &OcrFields{
		Values:     make(map[FieldName]string),
		Confidence: make(map[FieldName]float64),
	}
}

// Get returns the value for name and whether it was present.
func (f *OcrFields) Get(name FieldName) (string, bool) {
	if f == nil || f.Values == nil {
		return "", false
	}
	v, ok := f.Values[name]
	return v, ok && v != ""
}

// MeanConfidence returns the mean of all recorded per-field confidences, or
// 0 if no fields were populated.
func (f *OcrFields) MeanConfidence() float64 {
	if f == nil || len(f.Confidence) == 0 {
		return 0
	}
	var sum float64
	for _, c := range f.Confidence {
		sum += c
	}
	return sum / float64(len(f.Confidence))
}

// Pdf417Payload is a decoded (or AI-reported, or OCR-synthesized) barcode
// payload.
type Pdf417Payload struct {
	RawText    string
	Parsed     map[FieldName]string
	Confidence float64
	Validation Pdf417Validation
}

// BackIdData is the composite result of decoding the back of an ID.
type BackIdData struct {
	Pdf417           *Pdf417Payload
	Ocr              *OcrFields
	MergedFields     map[FieldName]string
	VerificationCodes []string
	SecurityFeatures  []string
}

// CrossValidationReport is the field-by-field front/back comparison result
// produced by the cross validator.
type CrossValidationReport struct {
	MatchScore           float64
	OverallConsistent    bool
	FieldMatches         map[string]bool
	Discrepancies        []string
	RequiresManualReview bool
	ManualReviewReason   string
	TotalChecks          int
	Matches              int
}

// Field-match keys used in CrossValidationReport.FieldMatches.
const (
	CheckIDNumber         = "id_number_match"
	CheckExpiry           = "expiry_match"
	CheckAuthority        = "authority_match"
	CheckName             = "name_match"
	CheckDOB              = "dob_match"
	CheckAddress          = "address_match"
	CheckHeight           = "height_match"
	CheckGender           = "gender_match"
	CheckEyeColor         = "eye_color_match"
	CheckWeight           = "weight_match"
	CheckMiddleName       = "middle_name_match"
	CheckVehicleClass     = "vehicle_class_match"
	CheckDiscriminator    = "discriminator_match"
)

// BiometricReport is the face-match + liveness result.
type BiometricReport struct {
	FaceSimilarity float64
	LivenessScore  float64
	FacePassed     bool
	LivenessPassed bool
	Diagnostics    map[string]float64
}

// VerificationRequest is one run of the pipeline for one subject.
type VerificationRequest struct {
	ID        uuid.UUID
	SubjectID string
	TenantID  string

	Status      Status
	CurrentStep int

	FrontArtifactID  *uuid.UUID
	BackArtifactID   *uuid.UUID
	SelfieArtifactID *uuid.UUID

	OcrFields             *OcrFields
	BackData              *BackIdData
	CrossValidationReport *CrossValidationReport
	BiometricReport       *BiometricReport

	BarcodeExtractionFailed bool
	DocumentsMatch          bool
	FacePassed              bool
	LivenessPassed          bool

	ManualReviewReason string
	FailureReason      string

	ReviewerID string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version is an optimistic-concurrency token used by KeyValueStore
	// implementations to enforce single-writer semantics.
	Version int
}

// Clone returns a deep-enough copy of r suitable for committing as the "next
// state record" the Engine builds in memory before a single atomic update
// before the single atomic update that commits it.
func (r *VerificationRequest) Clone() *VerificationRequest {
	if r == nil {
		return nil
	}
	cp := *r
	if r.OcrFields != nil {
		of := *r.OcrFields
		of.Values = cloneStringMap(r.OcrFields.Values)
		of.Confidence = cloneFloatMap(r.OcrFields.Confidence)
		cp.OcrFields = &of
	}
	if r.BackData != nil {
		bd := *r.BackData
		if r.BackData.Pdf417 != nil {
			p := *r.BackData.Pdf417
			p.Parsed = cloneStringMap(r.BackData.Pdf417.Parsed)
			bd.Pdf417 = &p
		}
		if r.BackData.Ocr != nil {
			of := *r.BackData.Ocr
			of.Values = cloneStringMap(r.BackData.Ocr.Values)
			of.Confidence = cloneFloatMap(r.BackData.Ocr.Confidence)
			bd.Ocr = &of
		}
		bd.MergedFields = cloneStringMap(r.BackData.MergedFields)
		bd.VerificationCodes = append([]string(nil), r.BackData.VerificationCodes...)
		bd.SecurityFeatures = append([]string(nil), r.BackData.SecurityFeatures...)
		cp.BackData = &bd
	}
	if r.CrossValidationReport != nil {
		cvr := *r.CrossValidationReport
		cvr.FieldMatches = make(map[string]bool, len(r.CrossValidationReport.FieldMatches))
		for k, v := range r.CrossValidationReport.FieldMatches {
			cvr.FieldMatches[k] = v
		}
		cvr.Discrepancies = append([]string(nil), r.CrossValidationReport.Discrepancies...)
		cp.CrossValidationReport = &cvr
	}
	if r.BiometricReport != nil {
		br := *r.BiometricReport
		br.Diagnostics = make(map[string]float64, len(r.BiometricReport.Diagnostics))
		for k, v := range r.BiometricReport.Diagnostics {
			br.Diagnostics[k] = v
		}
		cp.BiometricReport = &br
	}
	return &cp
}

func cloneStringMap(m map[FieldName]string) map[FieldName]string {
	if m == nil {
		return nil
	}
	out := make(map[FieldName]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneFloatMap(m map[FieldName]float64) map[FieldName]float64 {
	if m == nil {
		return nil
	}
	out := make(map[FieldName]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
