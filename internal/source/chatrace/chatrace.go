// Package chatrace implements the source Adapter for the primary chat
// platform, consumed through its single-endpoint RPC API.
package chatrace

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mainstreethq/inboxd/internal/models"
	"github.com/mainstreethq/inboxd/internal/source"
)

// channelLabels maps platform channel codes to channel labels used by the
// read API's platform filter.
var channelLabels = map[string]string{
	"9":  "webchat",
	"0":  "facebook",
	"10": "instagram",
}

// ChannelLabel returns the label for a platform channel code, or "webchat"
// for unknown codes.
func ChannelLabel(code string) string {
	if label, ok := channelLabels[code]; ok {
		return label
	}
	return "webchat"
}

// ChannelCode returns the platform code for a channel label, or "" when the
// label is not a chat-platform channel.
func ChannelCode(label string) string {
	for code, l := range channelLabels {
		if l == label {
			return code
		}
	}
	return ""
}

// Adapter reads conversations and messages through the platform RPC.
type Adapter struct {
	upstream  Upstream
	accountID string
	pageSize  int
}

// Opts holds parameters for creating a ChatRace Adapter.
type Opts struct {
	Upstream  Upstream // RPC client (required)
	AccountID string   // platform account to scope operations to (required)
	PageSize  int      // conversations fetched per pass (default 200)
}

// New creates a ChatRace Adapter.
func New(opts Opts) (*Adapter, error) {
	if opts.Upstream == nil {
		return nil, fmt.Errorf("chatrace: upstream is required")
	}
	if opts.AccountID == "" {
		return nil, fmt.Errorf("chatrace: account id is required")
	}
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = 200
	}
	return &Adapter{upstream: opts.Upstream, accountID: opts.AccountID, pageSize: pageSize}, nil
}

// Name returns the source this adapter serves.
func (a *Adapter) Name() models.Source { return models.SourceChatRace }

// convRow mirrors one platform conversation row. The platform is loose with
// types (ids and timestamps arrive as strings or numbers), so fields that
// vary are decoded as any and coerced.
type convRow struct {
	MsID       any    `json:"ms_id"`
	ID         any    `json:"id"`
	FullName   string `json:"full_name"`
	ProfilePic string `json:"profile_pic"`
	Timestamp  any    `json:"timestamp"`
	LastMsg    string `json:"last_msg"`
	Channel    any    `json:"channel"`
}

// msgRow mirrors one platform message row.
type msgRow struct {
	Message   string `json:"message"`
	Timestamp any    `json:"timestamp"`
	Dir       any    `json:"dir"`
}

// FetchConversations returns the platform conversation page, normalized.
func (a *Adapter) FetchConversations(ctx context.Context) ([]source.Conversation, error) {
	resp, err := a.upstream.Call(ctx, map[string]any{
		"op":         "conversations",
		"op1":        "get",
		"account_id": a.accountID,
		"offset":     0,
		"limit":      a.pageSize,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("chatrace: conversations: upstream status %q", resp.Status)
	}

	convos := make([]source.Conversation, 0, len(resp.Data))
	for idx, raw := range resp.Data {
		var row convRow
		if err := json.Unmarshal(raw, &row); err != nil {
			// Malformed row: skip it, keep the pass going.
			continue
		}
		convos = append(convos, normalizeConversation(row, idx))
	}
	return convos, nil
}

// FetchMessages returns the decoded timeline for one platform conversation.
// Envelope parse failures degrade to raw text per item; content-free items
// are dropped.
func (a *Adapter) FetchMessages(ctx context.Context, naturalKey string, limit int) ([]source.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	resp, err := a.upstream.Call(ctx, map[string]any{
		"op":         "conversations",
		"op1":        "get",
		"id":         naturalKey,
		"account_id": a.accountID,
		"offset":     0,
		"limit":      limit,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("chatrace: messages for %s: upstream status %q", naturalKey, resp.Status)
	}

	msgs := make([]source.Message, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var row msgRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		if m, ok := normalizeMessage(row); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

// normalizeConversation maps one platform row to a unified conversation.
// The platform is the native source, so its own id is the unified id.
func normalizeConversation(row convRow, idx int) source.Conversation {
	id := asString(row.MsID)
	if id == "" {
		id = asString(row.ID)
	}
	if id == "" {
		id = strconv.Itoa(idx + 1)
	}

	name := strings.TrimSpace(row.FullName)
	if name == "" {
		name = source.GuestName(idx)
	}

	channel := asString(row.Channel)
	if channel == "" {
		channel = "9"
	}

	return source.Conversation{
		ConversationID:     id,
		NaturalKey:         id,
		CustomerName:       name,
		LastMessageContent: row.LastMsg,
		LastMessageAt:      asTime(row.Timestamp),
		Metadata: map[string]any{
			"channel":    channel,
			"platform":   ChannelLabel(channel),
			"avatar_url": row.ProfilePic,
		},
	}
}

// normalizeMessage maps one platform row to a unified message, decoding the
// nested envelope once at this boundary.
func normalizeMessage(row msgRow) (source.Message, bool) {
	content := source.EnvelopeContent(source.DecodeEnvelope(row.Message))
	if content == "" {
		return source.Message{}, false
	}

	role := models.RoleUser
	if asString(row.Dir) == "0" {
		role = models.RoleAssistant
	}

	at := asTime(row.Timestamp)
	if at.IsZero() {
		at = time.Now()
	}

	return source.Message{Content: content, Role: role, CreatedAt: at}, true
}

// asString coerces the platform's string-or-number fields.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// asTime coerces the platform's timestamps: unix milliseconds as a number
// or numeric string, otherwise RFC 3339.
func asTime(v any) time.Time {
	s := asString(v)
	if s == "" {
		return time.Time{}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Time{}
}
