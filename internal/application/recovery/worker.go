package recovery

import (
	"context"
	"fmt"
	"time"

	"cleanup-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Handler performs one task. It must be idempotent: a task may run again
// after a crash between success and the status write.
type Handler func(ctx context.Context, subjectID uuid.UUID) error

// Worker polls RecoveryTasks and runs due tasks until they succeed or run out of attempts.
type Worker struct {
	DB          *gorm.DB
	Handlers    map[string]Handler
	Interval    time.Duration
	MaxAttempts int
	Backoff     time.Duration
	BatchSize   int
	Now         func() time.Time
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

// Start runs the polling loop in a goroutine until ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		log.Info().Dur("interval", interval).Msg("recovery worker started")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("recovery worker stopped")
				return
			case <-ticker.C:
				if _, err := w.RunOnce(ctx); err != nil {
					log.Error().Err(err).Msg("recovery worker: poll failed")
				}
			}
		}
	}()
}

// RunOnce processes due tasks and returns how many succeeded.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	batch := w.BatchSize
	if batch <= 0 {
		batch = 20
	}
	var tasks []domain.RecoveryTask
	if err := w.DB.WithContext(ctx).
		Where("status = ? AND next_run_at <= ?", domain.RecoveryTaskPending, w.now()).
		Order("next_run_at ASC").
		Limit(batch).
		Find(&tasks).Error; err != nil {
		return 0, err
	}

	done := 0
	for i := range tasks {
		ok, err := w.process(ctx, &tasks[i])
		if err != nil {
			return done, err
		}
		if ok {
			done++
		}
	}
	return done, nil
}

func (w *Worker) process(ctx context.Context, task *domain.RecoveryTask) (bool, error) {
	// Claim by bumping attempts; another instance that read the same row
	// loses the compare-and-set.
	attempts := task.Attempts + 1
	res := w.DB.WithContext(ctx).Model(&domain.RecoveryTask{}).
		Where("id = ? AND status = ? AND attempts = ?", task.ID, domain.RecoveryTaskPending, task.Attempts).
		Updates(map[string]interface{}{
			"attempts":    attempts,
			"next_run_at": w.now().Add(5 * time.Minute),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	handler, ok := w.Handlers[task.Kind]
	var runErr error
	if !ok {
		runErr = fmt.Errorf("no handler for recovery task kind %q", task.Kind)
	} else {
		runErr = handler(ctx, task.SubjectID)
	}

	if runErr == nil {
		log.Info().Str("kind", task.Kind).Str("subject_id", task.SubjectID.String()).Int("attempts", attempts).Msg("recovery task completed")
		return true, w.DB.WithContext(ctx).Model(&domain.RecoveryTask{}).Where("id = ?", task.ID).
			Updates(map[string]interface{}{"status": domain.RecoveryTaskDone, "last_error": ""}).Error
	}

	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	backoff := w.Backoff
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	updates := map[string]interface{}{
		"last_error":  runErr.Error(),
		"next_run_at": w.now().Add(backoff * time.Duration(attempts)),
	}
	if attempts >= maxAttempts {
		updates["status"] = domain.RecoveryTaskFailed
		log.Error().Err(runErr).Str("kind", task.Kind).Str("subject_id", task.SubjectID.String()).Int("attempts", attempts).
			Msg("LEDGER DISCREPANCY: recovery task exhausted its attempts, manual reconciliation required")
	} else {
		log.Warn().Err(runErr).Str("kind", task.Kind).Str("subject_id", task.SubjectID.String()).Int("attempts", attempts).Msg("recovery task failed, will retry")
	}
	return false, w.DB.WithContext(ctx).Model(&domain.RecoveryTask{}).Where("id = ?", task.ID).Updates(updates).Error
}
