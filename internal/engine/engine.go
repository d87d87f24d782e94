// Package engine implements the Verification Engine: the orchestrator that
// holds per-subject state, enforces legal state-machine transitions,
// invokes the pure stage components, and renders the final decision. It is
// the only component that mutates a VerificationRequest; every other
// component (gateway, ocrengine, barcode, crossvalidate, biometric) is a
// pure function of its inputs and never touches the record store, per the
// "pipeline orchestrator vs. stage executors" split in the design notes.
package engine

import (
	"context"
	"image"
	"time"

	"github.com/google/uuid"

	"sparkfund/services/identity-verification/internal/barcode"
	"sparkfund/services/identity-verification/internal/biometric"
	"sparkfund/services/identity-verification/internal/crossvalidate"
	"sparkfund/services/identity-verification/internal/domain"
	"sparkfund/services/identity-verification/internal/events"
	"sparkfund/services/identity-verification/internal/gateway"
	"sparkfund/services/identity-verification/internal/logger"
	"sparkfund/services/identity-verification/internal/metrics"
	"sparkfund/services/identity-verification/internal/ocrengine"
	"sparkfund/services/identity-verification/internal/store"
)

// Components bundles the four pure stage executors the Engine drives.
// Grouping them separately from the store/event/metrics capabilities makes
// the orchestrator-vs-executor split explicit: executors never see the
// store, and the Engine never implements stage logic itself.
type Components struct {
	Ocr           *ocrengine.Component
	Back          *barcode.Component
	CrossValidate *crossvalidate.Component
	Biometric     *biometric.Component
}

// Engine is the Verification Engine orchestrator.
type Engine struct {
	store     store.KeyValueStore
	artifacts store.ArtifactStore
	audit     store.AuditStore
	blobs     gateway.BlobStore
	comps     Components
	publisher events.Publisher
	metrics   metrics.Recorder
	log       *logger.Logger

	ocrMaxDimPx     int
	ocrBackMinDimPx int
	documentType    domain.DocumentType
}

// Option configures optional Engine dependencies. Every optional capability
// defaults to a Noop implementation (the audit log to an in-memory store),
// so construction-time wiring - not
// call-site branching - decides what is available.
type Option func(*Engine)

func WithPublisher(p events.Publisher) Option { return func(e *Engine) { e.publisher = p } }
func WithMetrics(m metrics.Recorder) Option    { return func(e *Engine) { e.metrics = m } }
func WithAuditStore(a store.AuditStore) Option { return func(e *Engine) { e.audit = a } }
func WithDocumentType(t domain.DocumentType) Option {
	return func(e *Engine) { e.documentType = t }
}

// New constructs an Engine. ocrMaxDimPx/ocrBackMinDimPx are the §6
// OCR_MAX_DIM_PX / BACK_OCR_MIN_DIM_PX preprocessing thresholds.
func New(kv store.KeyValueStore, artifacts store.ArtifactStore, blobs gateway.BlobStore, comps Components, ocrMaxDimPx, ocrBackMinDimPx int, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:           kv,
		artifacts:       artifacts,
		blobs:           blobs,
		comps:           comps,
		publisher:       events.NoopPublisher{},
		metrics:         metrics.NoopCollector{},
		audit:           store.NewMemoryAuditStore(),
		log:             log,
		ocrMaxDimPx:     ocrMaxDimPx,
		ocrBackMinDimPx: ocrBackMinDimPx,
		documentType:    domain.DocumentDriversLicense,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize creates a new VerificationRequest in StatusPending.
func (e *Engine) Initialize(ctx context.Context, subjectID, tenantID string) (*domain.VerificationRequest, error) {
	now := time.Now()
	req := &domain.VerificationRequest{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		TenantID:    tenantID,
		Status:      domain.StatusPending,
		CurrentStep: domain.StatusPending.Step(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     0,
	}
	if err := e.store.Create(ctx, req); err != nil {
		return nil, domain.TransientError(err, "create verification request")
	}
	e.recordTransition("initialize", true)
	e.publish(ctx, req)
	return req.Clone(), nil
}

// Get returns the current snapshot of a VerificationRequest.
func (e *Engine) Get(ctx context.Context, requestID uuid.UUID) (*domain.VerificationRequest, error) {
	req, err := e.store.Get(ctx, requestID)
	if err != nil {
		return nil, domain.TransientError(err, "get verification request %s", requestID)
	}
	if req == nil {
		return nil, domain.ErrNotFound
	}
	return req, nil
}

// requireStatus loads the current record and checks it is in one of the
// legal statuses for the caller's transition; on mismatch it records the
// rejection and returns domain.ErrIllegalState without mutating anything.
func (e *Engine) requireStatus(ctx context.Context, requestID uuid.UUID, transition string, legal ...domain.Status) (*domain.VerificationRequest, error) {
	req, err := e.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	for _, s := range legal {
		if req.Status == s {
			return req, nil
		}
	}
	e.recordTransition(transition, false)
	e.log.WithRequestID(requestID.String()).WithField("status", string(req.Status)).Warn("rejected illegal transition: " + transition)
	return nil, domain.ErrIllegalState
}

// fetchAndDecode downloads the blob at path and decodes it as an image. On a
// decode failure (domain.KindExtraction) the raw bytes are still returned so
// callers that must persist the artifact regardless of decodability can do
// so; img is nil in that case.
func (e *Engine) fetchAndDecode(ctx context.Context, path string) (image.Image, []byte, error) {
	raw, err := e.blobs.Download(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	img, err := gateway.Decode(raw)
	if err != nil {
		return nil, raw, err
	}
	return img, raw, nil
}

func (e *Engine) putArtifact(ctx context.Context, requestID uuid.UUID, path string, role domain.DocumentRole, raw []byte) uuid.UUID {
	id := uuid.New()
	artifact := &domain.DocumentArtifact{
		ID:        id,
		RequestID: requestID,
		Path:      path,
		ByteSize:  int64(len(raw)),
		MimeType:  gateway.DetectMIME(raw),
		Role:      role,
	}
	if err := e.artifacts.Put(ctx, artifact); err != nil {
		e.log.WithRequestID(requestID.String()).WithError(err).Warn("failed to persist document artifact metadata")
	}
	return id
}

func (e *Engine) recordTransition(name string, legal bool) {
	e.metrics.RecordTransition(name, legal)
}

func (e *Engine) recordStage(stage string, start time.Time, result string) {
	e.metrics.RecordStageDuration(stage, time.Since(start))
	e.metrics.RecordStageOutcome(stage, result)
}

func (e *Engine) publish(ctx context.Context, req *domain.VerificationRequest) {
	_ = e.publisher.Publish(ctx, events.Event{
		RequestID: req.ID.String(),
		SubjectID: req.SubjectID,
		Status:    string(req.Status),
		Step:      req.CurrentStep,
		At:        req.UpdatedAt,
	})
}

// commit computes the fully-formed next-state record, then commits it to
// the store in a single update guarded by the caller's observed version,
// per §5's "never an intermediate snapshot" ordering guarantee.
func (e *Engine) commit(ctx context.Context, next *domain.VerificationRequest, expectedVersion int) (*domain.VerificationRequest, error) {
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now()
	if err := e.store.Update(ctx, next, expectedVersion); err != nil {
		if err == domain.ErrWriteConflict {
			return nil, domain.TransientError(err, "concurrent update for verification request %s", next.ID)
		}
		return nil, domain.TransientError(err, "commit verification request %s", next.ID)
	}
	e.recordTransition(string(next.Status), true)
	e.log.WithRequestID(next.ID.String()).WithField("status", string(next.Status)).Info("committed transition")
	e.publish(ctx, next)
	return next.Clone(), nil
}
