// Package vapi implements the source Adapter for phone calls persisted by
// the VAPI call-completion webhook. Calls live in the primary store; the
// adapter synthesizes a small ordered message set per call.
package vapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mainstreethq/inboxd/internal/models"
	"github.com/mainstreethq/inboxd/internal/source"
	"gorm.io/gorm"
)

// callWindow bounds one fetch to recently completed calls.
const callWindow = 24 * time.Hour

// idPrefix namespaces VAPI call ids in the unified store.
const idPrefix = "vapi_"

// Adapter reads the vapi_calls table fed by the webhook intake.
type Adapter struct {
	db  *gorm.DB
	now func() time.Time
}

// Opts holds parameters for creating a VAPI Adapter.
type Opts struct {
	DB  *gorm.DB         // primary store handle (required)
	Now func() time.Time // optional clock override for tests
}

// New creates a VAPI Adapter.
func New(opts Opts) (*Adapter, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("vapi: db is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{db: opts.DB, now: now}, nil
}

// Name returns the source this adapter serves.
func (a *Adapter) Name() models.Source { return models.SourceVAPI }

// FetchConversations returns conversations for calls recorded in the last
// 24 hours, each carrying its full synthesized timeline.
func (a *Adapter) FetchConversations(ctx context.Context) ([]source.Conversation, error) {
	cutoff := a.now().Add(-callWindow)

	var calls []models.Call
	err := a.db.WithContext(ctx).
		Where("created_at > ?", cutoff).
		Order("call_started_at DESC").
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("vapi: fetch calls: %w", err)
	}

	convos := make([]source.Conversation, 0, len(calls))
	for _, call := range calls {
		convos = append(convos, NormalizeCall(call))
	}
	return convos, nil
}

// FetchMessages returns the synthesized timeline for one call.
func (a *Adapter) FetchMessages(ctx context.Context, naturalKey string, limit int) ([]source.Message, error) {
	var call models.Call
	err := a.db.WithContext(ctx).Where("call_id = ?", naturalKey).First(&call).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("vapi: fetch call %s: %w", naturalKey, err)
	}
	msgs := callMessages(call)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// NormalizeCall maps one call row to a unified conversation carrying its
// synthesized messages. Exported so the webhook-incremental path can reuse
// the exact bulk-sync normalization.
func NormalizeCall(call models.Call) source.Conversation {
	name := call.CustomerName
	if strings.TrimSpace(name) == "" {
		name = "Phone Customer"
	}

	lastContent := call.Summary
	if strings.TrimSpace(lastContent) == "" {
		lastContent = "Phone call completed"
	}

	lastAt := call.CallEndedAt
	if lastAt.IsZero() {
		lastAt = call.CallStartedAt
	}

	meta := map[string]any{
		"call_id":       call.CallID,
		"recording_url": call.RecordingURL,
	}
	if !call.CallEndedAt.IsZero() && !call.CallStartedAt.IsZero() {
		meta["call_duration"] = call.CallEndedAt.Sub(call.CallStartedAt).Seconds()
	}

	return source.Conversation{
		ConversationID:     idPrefix + call.CallID,
		NaturalKey:         call.CallID,
		CustomerName:       name,
		CustomerPhone:      call.CustomerPhone,
		LastMessageContent: lastContent,
		LastMessageAt:      lastAt,
		Metadata:           meta,
		Messages:           callMessages(call),
	}
}

// callMessages synthesizes the ordered message set for a call: a started
// marker, the transcript as the caller's turn, the summary as the
// assistant's, and a recording link when present.
func callMessages(call models.Call) []source.Message {
	endAt := call.CallEndedAt
	if endAt.IsZero() {
		endAt = call.CallStartedAt
	}

	msgs := []source.Message{{
		Content:   "📞 Phone call started",
		Role:      models.RoleAssistant,
		CreatedAt: call.CallStartedAt,
	}}

	if strings.TrimSpace(call.Transcript) != "" {
		msgs = append(msgs, source.Message{
			Content:   call.Transcript,
			Role:      models.RoleUser,
			CreatedAt: call.CallStartedAt,
		})
	}
	if strings.TrimSpace(call.Summary) != "" {
		msgs = append(msgs, source.Message{
			Content:   "📋 Call Summary: " + call.Summary,
			Role:      models.RoleAssistant,
			CreatedAt: endAt,
		})
	}
	if strings.TrimSpace(call.RecordingURL) != "" {
		msgs = append(msgs, source.Message{
			Content:   "🎵 Recording: " + call.RecordingURL,
			Role:      models.RoleAssistant,
			CreatedAt: endAt,
		})
	}
	return msgs
}
