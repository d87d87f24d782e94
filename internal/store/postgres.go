package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sparkfund/services/identity-verification/internal/domain"
)

// row is the gorm-mapped persistence model. VerificationRequest's nested
// stage results are round-tripped through JSON text columns rather than a
// normalized schema: the Engine is the only writer and always reads back a
// whole record, so there is no query surface into individual stage fields.
type row struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubjectID string    `gorm:"index"`
	TenantID  string    `gorm:"index"`

	Status      string
	CurrentStep int

	FrontArtifactID  *uuid.UUID
	BackArtifactID   *uuid.UUID
	SelfieArtifactID *uuid.UUID

	OcrFieldsJSON             string `gorm:"type:text"`
	BackDataJSON              string `gorm:"type:text"`
	CrossValidationReportJSON string `gorm:"type:text"`
	BiometricReportJSON       string `gorm:"type:text"`

	BarcodeExtractionFailed bool
	DocumentsMatch          bool
	FacePassed              bool
	LivenessPassed          bool

	ManualReviewReason string
	FailureReason      string
	ReviewerID         string

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

func (row) TableName() string { return "verification_requests" }

// PostgresStore is a KeyValueStore backed by Postgres via gorm, with
// single-writer semantics enforced by a `WHERE version = ?` conditional
// update per Update call.
type PostgresStore struct {
	db *gorm.DB
}

// OpenGormDB opens a shared *gorm.DB for the record store and the audit log
// to use against the same Postgres database.
func OpenGormDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, domain.TransientError(err, "open postgres connection")
	}
	return db, nil
}

// NewPostgresStore opens dsn and auto-migrates the row schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := OpenGormDB(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, domain.Fatal(err, "migrate verification_requests table")
	}
	return &PostgresStore{db: db}, nil
}

func toRow(r *domain.VerificationRequest) (*row, error) {
	ocrJSON, err := json.Marshal(r.OcrFields)
	if err != nil {
		return nil, err
	}
	backJSON, err := json.Marshal(r.BackData)
	if err != nil {
		return nil, err
	}
	crossJSON, err := json.Marshal(r.CrossValidationReport)
	if err != nil {
		return nil, err
	}
	bioJSON, err := json.Marshal(r.BiometricReport)
	if err != nil {
		return nil, err
	}
	return &row{
		ID:                        r.ID,
		SubjectID:                 r.SubjectID,
		TenantID:                  r.TenantID,
		Status:                    string(r.Status),
		CurrentStep:               r.CurrentStep,
		FrontArtifactID:           r.FrontArtifactID,
		BackArtifactID:            r.BackArtifactID,
		SelfieArtifactID:          r.SelfieArtifactID,
		OcrFieldsJSON:             string(ocrJSON),
		BackDataJSON:              string(backJSON),
		CrossValidationReportJSON: string(crossJSON),
		BiometricReportJSON:       string(bioJSON),
		BarcodeExtractionFailed:   r.BarcodeExtractionFailed,
		DocumentsMatch:            r.DocumentsMatch,
		FacePassed:                r.FacePassed,
		LivenessPassed:            r.LivenessPassed,
		ManualReviewReason:        r.ManualReviewReason,
		FailureReason:             r.FailureReason,
		ReviewerID:                r.ReviewerID,
		CreatedAt:                 r.CreatedAt,
		UpdatedAt:                 r.UpdatedAt,
		Version:                   r.Version,
	}, nil
}

func fromRow(rw *row) (*domain.VerificationRequest, error) {
	var ocr *domain.OcrFields
	if rw.OcrFieldsJSON != "" && rw.OcrFieldsJSON != "null" {
		if err := json.Unmarshal([]byte(rw.OcrFieldsJSON), &ocr); err != nil {
			return nil, err
		}
	}
	var back *domain.BackIdData
	if rw.BackDataJSON != "" && rw.BackDataJSON != "null" {
		if err := json.Unmarshal([]byte(rw.BackDataJSON), &back); err != nil {
			return nil, err
		}
	}
	var cross *domain.CrossValidationReport
	if rw.CrossValidationReportJSON != "" && rw.CrossValidationReportJSON != "null" {
		if err := json.Unmarshal([]byte(rw.CrossValidationReportJSON), &cross); err != nil {
			return nil, err
		}
	}
	var bio *domain.BiometricReport
	if rw.BiometricReportJSON != "" && rw.BiometricReportJSON != "null" {
		if err := json.Unmarshal([]byte(rw.BiometricReportJSON), &bio); err != nil {
			return nil, err
		}
	}
	return &domain.VerificationRequest{
		ID:                      rw.ID,
		SubjectID:               rw.SubjectID,
		TenantID:                rw.TenantID,
		Status:                  domain.Status(rw.Status),
		CurrentStep:             rw.CurrentStep,
		FrontArtifactID:         rw.FrontArtifactID,
		BackArtifactID:          rw.BackArtifactID,
		SelfieArtifactID:        rw.SelfieArtifactID,
		OcrFields:               ocr,
		BackData:                back,
		CrossValidationReport:   cross,
		BiometricReport:         bio,
		BarcodeExtractionFailed: rw.BarcodeExtractionFailed,
		DocumentsMatch:          rw.DocumentsMatch,
		FacePassed:              rw.FacePassed,
		LivenessPassed:          rw.LivenessPassed,
		ManualReviewReason:      rw.ManualReviewReason,
		FailureReason:           rw.FailureReason,
		ReviewerID:              rw.ReviewerID,
		CreatedAt:               rw.CreatedAt,
		UpdatedAt:               rw.UpdatedAt,
		Version:                 rw.Version,
	}, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*domain.VerificationRequest, error) {
	var rw row
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rw).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.TransientError(err, "get verification request %s", id)
	}
	return fromRow(&rw)
}

func (s *PostgresStore) Create(ctx context.Context, req *domain.VerificationRequest) error {
	rw, err := toRow(req)
	if err != nil {
		return domain.Fatal(err, "marshal verification request %s", req.ID)
	}
	if err := s.db.WithContext(ctx).Create(rw).Error; err != nil {
		return domain.TransientError(err, "create verification request %s", req.ID)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, next *domain.VerificationRequest, expectedVersion int) error {
	rw, err := toRow(next)
	if err != nil {
		return domain.Fatal(err, "marshal verification request %s", next.ID)
	}
	result := s.db.WithContext(ctx).
		Model(&row{}).
		Where("id = ? AND version = ?", next.ID, expectedVersion).
		Updates(rw)
	if result.Error != nil {
		return domain.TransientError(result.Error, "update verification request %s", next.ID)
	}
	if result.RowsAffected == 0 {
		return domain.ErrWriteConflict
	}
	return nil
}
