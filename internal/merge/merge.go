// Package merge combines normalized source records into the unified store,
// deciding insert versus update and guaranteeing idempotent re-ingestion.
package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mainstreethq/inboxd/internal/models"
	"github.com/mainstreethq/inboxd/internal/source"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Engine writes unified conversations and messages to the primary store.
type Engine struct {
	db  *gorm.DB
	now func() time.Time
}

// Opts holds parameters for creating an Engine.
type Opts struct {
	DB  *gorm.DB         // primary store handle (required)
	Now func() time.Time // optional clock override for tests
}

// New creates a merge Engine.
func New(opts Opts) (*Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("merge: db is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{db: opts.DB, now: now}, nil
}

// Outcome reports what one conversation merge did.
type Outcome struct {
	CreatedConversation bool
	UpdatedConversation bool
	CreatedMessages     int
}

// MergeConversation upserts one normalized conversation and appends any
// messages not yet present. The whole merge runs in one short transaction so
// concurrent writes to the same conversation_id serialize at the store.
//
// Update policy is last-write-wins by freshness: conversation content and
// metadata are overwritten only when the incoming last_message_at is newer
// than the stored one. updated_at is bumped on every merge touch either way,
// so re-confirmation is visible without regressing content. last_message_at
// is not assumed monotonic; a stale record arriving late leaves the stored
// state intact.
//
// Messages are append-only and deduplicated by the natural key
// (conversation_id, created_at, message_content).
func (e *Engine) MergeConversation(ctx context.Context, src models.Source, conv source.Conversation) (Outcome, error) {
	if conv.ConversationID == "" {
		return Outcome{}, fmt.Errorf("merge: conversation id is required")
	}

	var out Outcome
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := e.now()

		metadata, err := marshalMetadata(conv.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		var existing models.Conversation
		result := tx.Where("conversation_id = ?", conv.ConversationID).First(&existing)
		switch {
		case result.Error == gorm.ErrRecordNotFound:
			row := models.Conversation{
				ConversationID:     conv.ConversationID,
				Source:             string(src),
				CustomerName:       conv.CustomerName,
				CustomerPhone:      conv.CustomerPhone,
				CustomerEmail:      conv.CustomerEmail,
				LastMessageContent: conv.LastMessageContent,
				LastMessageAt:      conv.LastMessageAt,
				CreatedAt:          now,
				UpdatedAt:          now,
				Metadata:           metadata,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create conversation: %w", err)
			}
			out.CreatedConversation = true

		case result.Error != nil:
			return fmt.Errorf("load conversation: %w", result.Error)

		default:
			updates := map[string]interface{}{"updated_at": now}
			if conv.LastMessageAt.After(existing.LastMessageAt) {
				updates["customer_name"] = conv.CustomerName
				updates["customer_phone"] = conv.CustomerPhone
				updates["customer_email"] = conv.CustomerEmail
				updates["last_message_content"] = conv.LastMessageContent
				updates["last_message_at"] = conv.LastMessageAt
				updates["metadata"] = metadata
				out.UpdatedConversation = true
			}
			if err := tx.Model(&models.Conversation{}).
				Where("conversation_id = ?", conv.ConversationID).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("update conversation: %w", err)
			}
		}

		created, err := appendMessages(tx, src, conv.ConversationID, conv.Messages)
		if err != nil {
			return err
		}
		out.CreatedMessages = created
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("merge: conversation %s: %w", conv.ConversationID, err)
	}
	return out, nil
}

// AppendMessages adds messages to an existing conversation outside a full
// conversation merge, with the same natural-key idempotence.
func (e *Engine) AppendMessages(ctx context.Context, src models.Source, conversationID string, msgs []source.Message) (int, error) {
	var created int
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = appendMessages(tx, src, conversationID, msgs)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("merge: append to %s: %w", conversationID, err)
	}
	return created, nil
}

// appendMessages inserts each message whose natural key is not yet stored.
func appendMessages(tx *gorm.DB, src models.Source, conversationID string, msgs []source.Message) (int, error) {
	created := 0
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}

		var count int64
		err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND created_at = ? AND message_content = ?",
				conversationID, m.CreatedAt, m.Content).
			Count(&count).Error
		if err != nil {
			return created, fmt.Errorf("check message existence: %w", err)
		}
		if count > 0 {
			continue
		}

		fn, err := marshalMetadata(m.FunctionData)
		if err != nil {
			return created, fmt.Errorf("marshal function data: %w", err)
		}
		row := models.Message{
			ConversationID: conversationID,
			MessageContent: m.Content,
			MessageRole:    m.Role,
			CreatedAt:      m.CreatedAt,
			Source:         string(src),
			FunctionData:   fn,
		}
		if err := tx.Create(&row).Error; err != nil {
			return created, fmt.Errorf("create message: %w", err)
		}
		created++
	}
	return created, nil
}

// marshalMetadata encodes an open key-value map as a JSON column value.
func marshalMetadata(m map[string]any) (datatypes.JSON, error) {
	if len(m) == 0 {
		return datatypes.JSON([]byte("{}")), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
