package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecoveryTaskStatus string

const (
	RecoveryTaskPending RecoveryTaskStatus = "pending"
	RecoveryTaskDone    RecoveryTaskStatus = "done"
	RecoveryTaskFailed  RecoveryTaskStatus = "failed"
)

// RecoveryTask is queued work that must eventually succeed because money has
// already moved (or a ledger entry must be rolled back).
type RecoveryTask struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Kind      string             `gorm:"column:kind;type:varchar(40);not null;uniqueIndex:idx_recovery_kind_subject" json:"kind"`
	SubjectID uuid.UUID          `gorm:"column:subject_id;type:uuid;not null;uniqueIndex:idx_recovery_kind_subject" json:"subject_id"`
	Attempts  int                `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Status    RecoveryTaskStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	LastError string             `gorm:"column:last_error" json:"last_error"`
	NextRunAt time.Time          `gorm:"column:next_run_at;not null;index" json:"next_run_at"`
	CreatedAt time.Time          `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time          `gorm:"column:updatedAt" json:"updatedAt"`
}

func (RecoveryTask) TableName() string {
	return "RecoveryTasks"
}

func (t *RecoveryTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = RecoveryTaskPending
	}
	return nil
}
