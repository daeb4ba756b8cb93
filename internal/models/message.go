package models

import (
	"time"

	"gorm.io/datatypes"
)

// Message is a single unified timeline entry. Messages are append-only; a
// re-synced source record must not create a second row, which is enforced by
// the composite natural-key index (conversation, created_at, content).
type Message struct {
	ID             uint           `gorm:"primaryKey;autoIncrement"`
	ConversationID string         `gorm:"size:128;not null;index;uniqueIndex:idx_message_natural_key"`
	MessageContent string         `gorm:"type:text;not null;uniqueIndex:idx_message_natural_key"`
	MessageRole    string         `gorm:"size:16;not null"`
	CreatedAt      time.Time      `gorm:"not null;index;uniqueIndex:idx_message_natural_key"`
	Source         string         `gorm:"size:16;not null;index"`
	FunctionData   datatypes.JSON `gorm:"default:'{}'"`
}

// TableName keeps the schema name used by the rest of the inbox stack.
func (Message) TableName() string { return "unified_messages" }

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
