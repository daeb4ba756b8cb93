package syncer

import (
	"errors"
	"fmt"
	"time"

	"github.com/mainstreethq/inboxd/internal/models"
	"gorm.io/gorm"
)

// DefaultLockTimeout is the duration after which an active sync run's
// heartbeat is considered stale and its lock can be reclaimed.
const DefaultLockTimeout = 2 * time.Minute

// ErrSyncInProgress is returned when a sync pass is requested for a source
// that already has an active run.
var ErrSyncInProgress = errors.New("sync already in progress")

// AcquireRun attempts to start a sync run for one source. It first expires
// stale active runs (heartbeat older than timeout), then rejects if an
// active run remains for the same source. Holding an active SyncRun row is
// the at-most-one-concurrent-sync-per-source guarantee.
func AcquireRun(db *gorm.DB, src models.Source, runID, trigger string, timeout time.Duration) (*models.SyncRun, error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	var run *models.SyncRun
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		cutoff := now.Add(-timeout)

		// Expire stale active runs on this source.
		if err := tx.Model(&models.SyncRun{}).
			Where("status = ? AND source = ? AND last_heartbeat < ?", models.SyncRunActive, string(src), cutoff).
			Updates(map[string]interface{}{
				"status":       models.SyncRunExpired,
				"completed_at": now,
			}).Error; err != nil {
			return fmt.Errorf("expire stale runs: %w", err)
		}

		// Reject while a live run holds the source.
		var existing models.SyncRun
		result := tx.Where("status = ? AND source = ?", models.SyncRunActive, string(src)).First(&existing)
		if result.Error == nil {
			return fmt.Errorf("source %s run %d: %w", src, existing.ID, ErrSyncInProgress)
		}
		if result.Error != gorm.ErrRecordNotFound {
			return fmt.Errorf("check active run: %w", result.Error)
		}

		run = &models.SyncRun{
			RunID:         runID,
			Source:        string(src),
			Trigger:       trigger,
			Status:        models.SyncRunActive,
			LastHeartbeat: now,
			StartedAt:     now,
		}
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			return nil, err
		}
		return nil, fmt.Errorf("syncer: acquire run: %w", err)
	}
	return run, nil
}

// ReleaseRun finalizes a run with its counts and terminal status.
func ReleaseRun(db *gorm.DB, id uint, status string, created, updated, errCount int, lastErr string) error {
	now := time.Now()
	result := db.Model(&models.SyncRun{}).
		Where("id = ? AND status = ?", id, models.SyncRunActive).
		Updates(map[string]interface{}{
			"status":       status,
			"created":      created,
			"updated":      updated,
			"errors":       errCount,
			"last_error":   lastErr,
			"completed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("syncer: release run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("syncer: release run: run %d not found or not active", id)
	}
	return nil
}
