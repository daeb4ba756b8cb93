package models

import "time"

// SyncRun records one sync pass for one source. An active row doubles as the
// at-most-one-concurrent-sync-per-source lock: a second pass for the same
// source is rejected while an active row exists and its heartbeat is fresh.
type SyncRun struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	RunID         string    `gorm:"size:64;index"`
	Source        string    `gorm:"size:16;not null;index"`
	Trigger       string    `gorm:"size:16;default:scheduled"`
	Status        string    `gorm:"size:16;default:active;index"`
	Created       int       `gorm:"default:0"`
	Updated       int       `gorm:"default:0"`
	Errors        int       `gorm:"default:0"`
	LastError     string    `gorm:"type:text"`
	LastHeartbeat time.Time
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// SyncRun statuses.
const (
	SyncRunActive    = "active"
	SyncRunCompleted = "completed"
	SyncRunFailed    = "failed"
	SyncRunExpired   = "expired"
)

// SyncRun triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerWebhook   = "webhook"
)
