package models

import (
	"time"

	"gorm.io/datatypes"
)

// Source identifies the origin system a conversation was ingested from.
type Source string

const (
	SourceWoodstock Source = "woodstock"
	SourceVAPI      Source = "vapi"
	SourceChatRace  Source = "chatrace"
)

// Conversation is a unified conversation row aggregated from all sources.
// ConversationID is globally unique: non-native sources derive it from their
// natural key with a source prefix (e.g. "vapi_" + call id).
type Conversation struct {
	ID                 uint           `gorm:"primaryKey;autoIncrement"`
	ConversationID     string         `gorm:"size:128;uniqueIndex;not null"`
	Source             string         `gorm:"size:16;not null;index"`
	CustomerName       string         `gorm:"size:256"`
	CustomerPhone      string         `gorm:"size:64"`
	CustomerEmail      string         `gorm:"size:256"`
	LastMessageContent string         `gorm:"type:text"`
	LastMessageAt      time.Time      `gorm:"index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time      `gorm:"index"`
	Metadata           datatypes.JSON `gorm:"default:'{}'"`
}

// TableName keeps the schema name used by the rest of the inbox stack.
func (Conversation) TableName() string { return "unified_conversations" }
