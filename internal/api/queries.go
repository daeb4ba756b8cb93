package api

import (
	"encoding/json"
	"time"

	"github.com/mainstreethq/inboxd/internal/models"
	"github.com/mainstreethq/inboxd/internal/source"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Pagination bounds. Requests outside these are clamped, never rejected.
const (
	defaultConversationLimit = 25
	maxConversationLimit     = 500
	defaultMessageLimit      = 200
	maxMessageLimit          = 1000
)

// chatChannels are the platform-filter values that select chat-platform
// conversations by channel label rather than by source.
var chatChannels = map[string]bool{
	"webchat":   true,
	"facebook":  true,
	"instagram": true,
}

// ConversationRow holds one unified conversation for API display.
type ConversationRow struct {
	ConversationID     string         `json:"conversation_id"`
	Source             string         `json:"source"`
	DisplayName        string         `json:"display_name"`
	CustomerName       string         `json:"customer_name"`
	CustomerPhone      string         `json:"customer_phone,omitempty"`
	CustomerEmail      string         `json:"customer_email,omitempty"`
	LastMessageContent string         `json:"last_message_content"`
	LastMessageAt      time.Time      `json:"last_message_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// ConversationListResult holds the paginated list plus the per-source
// breakdown computed before pagination.
type ConversationListResult struct {
	Rows    []ConversationRow
	Total   int64
	Sources map[string]int64
}

// ConversationList returns merged conversations newest-update first, with the
// pre-pagination total and per-source counts. The platform filter accepts a
// source name (woodstock, vapi, chatrace) or a chat channel label (webchat,
// facebook, instagram); empty or "all" returns everything.
func ConversationList(db *gorm.DB, platform string, limit, offset int) (*ConversationListResult, error) {
	limit = clampLimit(limit, defaultConversationLimit, maxConversationLimit)
	if offset < 0 {
		offset = 0
	}

	q := db.Model(&models.Conversation{})
	switch {
	case platform == "" || platform == "all":
	case chatChannels[platform]:
		q = q.Where("source = ?", string(models.SourceChatRace)).
			Where(datatypes.JSONQuery("metadata").Equals(platform, "platform"))
	default:
		q = q.Where("source = ?", platform)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var convs []models.Conversation
	if err := q.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&convs).Error; err != nil {
		return nil, err
	}

	rows := make([]ConversationRow, len(convs))
	guests := 0
	for i, c := range convs {
		name := c.CustomerName
		if name == "" {
			name = source.GuestName(guests)
			guests++
		}
		rows[i] = ConversationRow{
			ConversationID:     c.ConversationID,
			Source:             c.Source,
			DisplayName:        displayName(c.Source, name),
			CustomerName:       name,
			CustomerPhone:      c.CustomerPhone,
			CustomerEmail:      c.CustomerEmail,
			LastMessageContent: c.LastMessageContent,
			LastMessageAt:      c.LastMessageAt,
			CreatedAt:          c.CreatedAt,
			UpdatedAt:          c.UpdatedAt,
			Metadata:           decodeMetadata(c.Metadata),
		}
	}

	// Per-source breakdown over the unfiltered store.
	type countRow struct {
		Source string
		Count  int64
	}
	var counts []countRow
	if err := db.Model(&models.Conversation{}).
		Select("source, count(*) as count").
		Group("source").
		Find(&counts).Error; err != nil {
		return nil, err
	}
	bySource := make(map[string]int64, len(source.All()))
	for _, s := range source.All() {
		bySource[string(s)] = 0
	}
	for _, c := range counts {
		bySource[c.Source] = c.Count
	}

	return &ConversationListResult{Rows: rows, Total: total, Sources: bySource}, nil
}

// MessageRow holds one timeline entry for API display.
type MessageRow struct {
	ConversationID string         `json:"conversation_id"`
	MessageContent string         `json:"message_content"`
	MessageRole    string         `json:"message_role"`
	CreatedAt      time.Time      `json:"created_at"`
	Source         string         `json:"source"`
	FunctionData   map[string]any `json:"function_data,omitempty"`
}

// MessageTimeline returns the ascending-time message list for one
// conversation. When the store holds no messages yet for a known
// conversation, it degrades to a single synthesized entry from the
// conversation's last-message field so the client never sees an empty
// error state.
func MessageTimeline(db *gorm.DB, conversationID string, limit int) ([]MessageRow, error) {
	limit = clampLimit(limit, defaultMessageLimit, maxMessageLimit)

	var msgs []models.Message
	if err := db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}

	if len(msgs) == 0 {
		return synthesizeTimeline(db, conversationID), nil
	}

	rows := make([]MessageRow, len(msgs))
	for i, m := range msgs {
		rows[i] = MessageRow{
			ConversationID: m.ConversationID,
			MessageContent: m.MessageContent,
			MessageRole:    m.MessageRole,
			CreatedAt:      m.CreatedAt,
			Source:         m.Source,
			FunctionData:   decodeMetadata(m.FunctionData),
		}
	}
	return rows, nil
}

// synthesizeTimeline builds the empty-store fallback: one assistant message
// carrying the conversation's last known content. Unknown ids get an empty
// timeline, not an error.
func synthesizeTimeline(db *gorm.DB, conversationID string) []MessageRow {
	var conv models.Conversation
	if err := db.Where("conversation_id = ?", conversationID).First(&conv).Error; err != nil {
		return []MessageRow{}
	}
	if conv.LastMessageContent == "" {
		return []MessageRow{}
	}
	at := conv.LastMessageAt
	if at.IsZero() {
		at = conv.UpdatedAt
	}
	return []MessageRow{{
		ConversationID: conversationID,
		MessageContent: conv.LastMessageContent,
		MessageRole:    models.RoleAssistant,
		CreatedAt:      at,
		Source:         conv.Source,
	}}
}

// LinkContact records a platform contact link in the conversation metadata.
func LinkContact(db *gorm.DB, conversationID, contactID string) error {
	var conv models.Conversation
	if err := db.Where("conversation_id = ?", conversationID).First(&conv).Error; err != nil {
		return err
	}
	meta := decodeMetadata(conv.Metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["linked_contact_id"] = contactID
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return db.Model(&models.Conversation{}).
		Where("conversation_id = ?", conversationID).
		Update("metadata", datatypes.JSON(raw)).Error
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func displayName(src, name string) string {
	info, ok := source.Infos()[models.Source(src)]
	if !ok {
		return name
	}
	return info.Icon + " " + name
}

func decodeMetadata(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}
