package recovery

import (
	"context"
	"time"

	"cleanup-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Task kinds.
const (
	KindCompensateDonation   = "compensate_donation"
	KindConvergeHoldCaptured = "converge_hold_captured"
)

// Enqueuer queues work for the recovery worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, subjectID uuid.UUID, cause error) error
}

// Queue stores tasks in the RecoveryTasks table. One live task per (kind, subject).
type Queue struct {
	DB *gorm.DB
}

func (q *Queue) Enqueue(ctx context.Context, kind string, subjectID uuid.UUID, cause error) error {
	lastErr := ""
	if cause != nil {
		lastErr = cause.Error()
	}
	task := domain.RecoveryTask{
		Kind:      kind,
		SubjectID: subjectID,
		Status:    domain.RecoveryTaskPending,
		LastError: lastErr,
		NextRunAt: time.Now().UTC(),
	}
	err := q.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "subject_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":      domain.RecoveryTaskPending,
			"attempts":    0,
			"last_error":  lastErr,
			"next_run_at": task.NextRunAt,
		}),
	}).Create(&task).Error
	if err != nil {
		// The queue itself failing is the worst case: nothing will retry this.
		log.Error().Err(err).Str("kind", kind).Str("subject_id", subjectID.String()).AnErr("cause", cause).
			Msg("LEDGER DISCREPANCY: failed to queue recovery task, manual reconciliation required")
		return err
	}
	log.Warn().Str("kind", kind).Str("subject_id", subjectID.String()).AnErr("cause", cause).Msg("recovery task queued")
	return nil
}
