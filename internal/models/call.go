package models

import "time"

// Call is a phone call persisted from the VAPI call-completion webhook.
// The VAPI adapter reads these rows and synthesizes unified messages from
// the transcript, summary, and recording fields.
type Call struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	CallID        string    `gorm:"size:128;uniqueIndex;not null"`
	CustomerPhone string    `gorm:"size:64"`
	CustomerName  string    `gorm:"size:256"`
	Transcript    string    `gorm:"type:text"`
	Summary       string    `gorm:"type:text"`
	CallStartedAt time.Time
	CallEndedAt   time.Time
	RecordingURL  string    `gorm:"size:512"`
	Synced        bool      `gorm:"default:false;index"`
	CreatedAt     time.Time
}

// TableName keeps the webhook store's table name.
func (Call) TableName() string { return "vapi_calls" }
