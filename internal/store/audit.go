package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sparkfund/services/identity-verification/internal/domain"
)

// AuditRecord is one immutable entry in the admin-action audit trail,
// grounded in the teacher's audit.Event shape but narrowed to the two
// admin actions the Engine exposes (§6 approve/reject).
type AuditRecord struct {
	ID             uuid.UUID
	RequestID      uuid.UUID
	ReviewerID     string
	Action         string // "approve" | "reject"
	Reason         string
	PreviousStatus domain.Status
	NextStatus     domain.Status
	At             time.Time
}

// AuditStore appends admin-action audit records. It is append-only: there
// is no update or delete, matching the "immutable evidence trail" purpose.
type AuditStore interface {
	Append(ctx context.Context, rec AuditRecord) error
}

// MemoryAuditStore is an in-process AuditStore for tests and single-node
// deployments.
type MemoryAuditStore struct {
	mu      sync.Mutex
	records []AuditRecord
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Append(ctx context.Context, rec AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of every appended record, newest last.
func (s *MemoryAuditStore) Records() []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}

type auditRow struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	RequestID      uuid.UUID `gorm:"index"`
	ReviewerID     string
	Action         string
	Reason         string
	PreviousStatus string
	NextStatus     string
	At             time.Time
}

func (auditRow) TableName() string { return "verification_audit_log" }

// GormAuditStore is an AuditStore backed by the same Postgres database as
// PostgresStore.
type GormAuditStore struct {
	db *gorm.DB
}

func NewGormAuditStore(db *gorm.DB) (*GormAuditStore, error) {
	if err := db.AutoMigrate(&auditRow{}); err != nil {
		return nil, domain.Fatal(err, "migrate verification_audit_log table")
	}
	return &GormAuditStore{db: db}, nil
}

func (s *GormAuditStore) Append(ctx context.Context, rec AuditRecord) error {
	row := auditRow{
		ID:             rec.ID,
		RequestID:      rec.RequestID,
		ReviewerID:     rec.ReviewerID,
		Action:         rec.Action,
		Reason:         rec.Reason,
		PreviousStatus: string(rec.PreviousStatus),
		NextStatus:     string(rec.NextStatus),
		At:             rec.At,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.TransientError(err, "append audit record for request %s", rec.RequestID)
	}
	return nil
}
