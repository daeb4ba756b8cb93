// Package source defines the adapter contract for conversation origins
// (Woodstock, VAPI, ChatRace) and the canonical records adapters produce.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mainstreethq/inboxd/internal/models"
)

// Adapter is the interface that origin-specific implementations must satisfy.
// Each adapter fetches raw records from its backing store or API and
// normalizes them into canonical conversations and messages. A failing
// adapter contributes zero records for the pass; it must never panic and
// must honor context deadlines on every fetch.
type Adapter interface {
	// Name returns the source this adapter serves.
	Name() models.Source

	// FetchConversations returns the current conversation set for this
	// source, normalized. Conversations may carry a prefetched Messages
	// slice; if empty, the orchestrator calls FetchMessages per record.
	FetchConversations(ctx context.Context) ([]Conversation, error)

	// FetchMessages returns the normalized ascending-time message list for
	// one conversation, identified by its source-natural key.
	FetchMessages(ctx context.Context, naturalKey string, limit int) ([]Message, error)
}

// Conversation is a normalized conversation record produced by an adapter.
type Conversation struct {
	ConversationID     string // globally unique, source-prefixed for non-native sources
	NaturalKey         string // source-intrinsic identifier
	CustomerName       string
	CustomerPhone      string
	CustomerEmail      string
	LastMessageContent string
	LastMessageAt      time.Time
	Metadata           map[string]any
	Messages           []Message // optional prefetched timeline, ascending created-at
}

// Message is a normalized timeline entry produced by an adapter. Content is
// never empty: content-free items are dropped during normalization.
type Message struct {
	Content      string
	Role         string
	CreatedAt    time.Time
	FunctionData map[string]any
}

// Info describes a source for the read API's sources endpoint.
type Info struct {
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Active bool   `json:"active"`
}

// Infos returns static metadata for all known sources.
func Infos() map[models.Source]Info {
	return map[models.Source]Info{
		models.SourceChatRace:  {Name: "ChatRace", Icon: "💬", Active: true},
		models.SourceWoodstock: {Name: "Woodstock AI", Icon: "🌲", Active: true},
		models.SourceVAPI:      {Name: "VAPI Calls", Icon: "📞", Active: true},
	}
}

// All returns the source names in sync order.
func All() []models.Source {
	return []models.Source{models.SourceWoodstock, models.SourceVAPI, models.SourceChatRace}
}

// FromConversationID derives the owning source from a unified conversation
// id by prefix. Ids without a known prefix belong to the chat platform.
func FromConversationID(conversationID string) models.Source {
	switch {
	case strings.HasPrefix(conversationID, "woodstock_"):
		return models.SourceWoodstock
	case strings.HasPrefix(conversationID, "vapi_"):
		return models.SourceVAPI
	default:
		return models.SourceChatRace
	}
}

// GuestName returns the stable placeholder used when a source record has no
// customer name. The positional index keeps UI list ordering deterministic.
func GuestName(idx int) string {
	return fmt.Sprintf("Guest %d", idx+1)
}
