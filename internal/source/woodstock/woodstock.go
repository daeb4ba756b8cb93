// Package woodstock implements the source Adapter for the remote Woodstock
// chatbot database. The store is read-only, lives on independent
// infrastructure with its own credentials, and is queried over a dedicated
// connection pool so its unavailability never touches the primary store.
package woodstock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mainstreethq/inboxd/internal/models"
	"github.com/mainstreethq/inboxd/internal/source"
	"gorm.io/gorm"
)

const (
	// conversationWindow bounds the fetch to recently active conversations.
	conversationWindow = 30 * 24 * time.Hour
	// messageWindow bounds per-conversation message backfill.
	messageWindow = 7 * 24 * time.Hour
	// maxConversations caps one fetch of the remote store.
	maxConversations = 50
	// defaultMessageLimit caps per-conversation message backfill.
	defaultMessageLimit = 20
)

// idPrefix namespaces Woodstock conversation ids in the unified store.
const idPrefix = "woodstock_"

// Adapter reads the remote chatbot_conversations / chatbot_messages schema.
type Adapter struct {
	db  *gorm.DB
	now func() time.Time
}

// Opts holds parameters for creating a Woodstock Adapter.
type Opts struct {
	DB  *gorm.DB         // remote store handle (required)
	Now func() time.Time // optional clock override for tests
}

// New creates a Woodstock Adapter.
func New(opts Opts) (*Adapter, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("woodstock: db is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{db: opts.DB, now: now}, nil
}

// Name returns the source this adapter serves.
func (a *Adapter) Name() models.Source { return models.SourceWoodstock }

// conversationRow mirrors the remote chatbot_conversations columns we read.
type conversationRow struct {
	ConversationID        string
	UserIdentifier        string
	PlatformType          string
	ConversationStartedAt time.Time
	LastMessageAt         time.Time
}

// messageRow mirrors the remote chatbot_messages columns we read.
type messageRow struct {
	MessageContent          string
	MessageRole             string
	MessageCreatedAt        time.Time
	ExecutedFunctionName    string
	FunctionInputParameters string
	FunctionOutputResult    string
}

// FetchConversations returns active remote conversations from the last 30
// days, newest first, normalized into unified records.
func (a *Adapter) FetchConversations(ctx context.Context) ([]source.Conversation, error) {
	cutoff := a.now().Add(-conversationWindow)

	var rows []conversationRow
	err := a.db.WithContext(ctx).Raw(`
		SELECT conversation_id, user_identifier, platform_type,
		       conversation_started_at, last_message_at
		FROM chatbot_conversations
		WHERE is_active = true AND last_message_at > ?
		ORDER BY last_message_at DESC
		LIMIT ?`, cutoff, maxConversations).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("woodstock: fetch conversations: %w", err)
	}

	convos := make([]source.Conversation, 0, len(rows))
	for _, row := range rows {
		convos = append(convos, normalizeConversation(row))
	}
	return convos, nil
}

// FetchMessages returns the recent remote message window for one
// conversation, ascending by creation time.
func (a *Adapter) FetchMessages(ctx context.Context, naturalKey string, limit int) ([]source.Message, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	cutoff := a.now().Add(-messageWindow)

	var rows []messageRow
	err := a.db.WithContext(ctx).Raw(`
		SELECT message_content, message_role, message_created_at,
		       executed_function_name, function_input_parameters, function_output_result
		FROM chatbot_messages
		WHERE conversation_id = ? AND message_created_at > ?
		ORDER BY message_created_at ASC
		LIMIT ?`, naturalKey, cutoff, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("woodstock: fetch messages for %s: %w", naturalKey, err)
	}

	msgs := make([]source.Message, 0, len(rows))
	for _, row := range rows {
		if m, ok := normalizeMessage(row); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

// normalizeConversation maps a remote row to a unified conversation. The
// user identifier doubles as contact info: values containing "@" are emails,
// anything else is treated as a phone number.
func normalizeConversation(row conversationRow) source.Conversation {
	phone, email := "", ""
	if strings.Contains(row.UserIdentifier, "@") {
		email = row.UserIdentifier
	} else {
		phone = row.UserIdentifier
	}

	return source.Conversation{
		ConversationID: idPrefix + row.ConversationID,
		NaturalKey:     row.ConversationID,
		CustomerName:   "AI Customer " + row.UserIdentifier,
		CustomerPhone:  phone,
		CustomerEmail:  email,
		LastMessageAt:  row.LastMessageAt,
		Metadata: map[string]any{
			"original_id":   row.ConversationID,
			"platform_type": row.PlatformType,
			"started_at":    row.ConversationStartedAt,
		},
	}
}

// normalizeMessage maps a remote row to a unified message. Content-free rows
// are dropped. Function-call columns are folded into FunctionData.
func normalizeMessage(row messageRow) (source.Message, bool) {
	content := strings.TrimSpace(row.MessageContent)
	if content == "" {
		return source.Message{}, false
	}

	role := row.MessageRole
	if role != models.RoleUser && role != models.RoleAssistant {
		role = models.RoleAssistant
	}

	var fn map[string]any
	if row.ExecutedFunctionName != "" {
		fn = map[string]any{
			"function_name":    row.ExecutedFunctionName,
			"input_parameters": row.FunctionInputParameters,
			"output_result":    row.FunctionOutputResult,
		}
	}

	return source.Message{
		Content:      content,
		Role:         role,
		CreatedAt:    row.MessageCreatedAt,
		FunctionData: fn,
	}, true
}
