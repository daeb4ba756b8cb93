package source

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EnvelopeKind tags a decoded envelope item.
type EnvelopeKind int

const (
	// EnvelopeText is a plain text item.
	EnvelopeText EnvelopeKind = iota
	// EnvelopeMedia is an attachment with a media URL.
	EnvelopeMedia
	// EnvelopeUnknown is an item that carried no extractable content.
	EnvelopeUnknown
)

// EnvelopeItem is one decoded item from a chat-platform message envelope.
// Envelopes are decoded exactly once at the adapter boundary; downstream
// code only ever sees the tagged form.
type EnvelopeItem struct {
	Kind EnvelopeKind
	Text string
	URL  string
}

// rawEnvelopeItem mirrors the upstream JSON shape for one envelope entry.
type rawEnvelopeItem struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Attachment *struct {
		Payload struct {
			URL      string `json:"url"`
			Elements []struct {
				URL string `json:"url"`
			} `json:"elements"`
		} `json:"payload"`
	} `json:"attachment"`
}

// DecodeEnvelope parses a raw chat-platform message envelope into tagged
// items. The envelope is normally a JSON array of typed entries; when it is
// not valid JSON the whole raw value is returned as a single text item
// rather than failing, matching the platform's own lenient behavior.
// Typing indicators and content-free entries decode to EnvelopeUnknown.
func DecodeEnvelope(raw string) []EnvelopeItem {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var rawItems []rawEnvelopeItem
	if err := json.Unmarshal([]byte(trimmed), &rawItems); err != nil {
		return []EnvelopeItem{{Kind: EnvelopeText, Text: trimmed}}
	}

	items := make([]EnvelopeItem, 0, len(rawItems))
	for _, ri := range rawItems {
		switch {
		case ri.Type == "typing":
			items = append(items, EnvelopeItem{Kind: EnvelopeUnknown})
		case strings.TrimSpace(ri.Text) != "":
			items = append(items, EnvelopeItem{Kind: EnvelopeText, Text: ri.Text})
		case ri.Attachment != nil:
			url := ri.Attachment.Payload.URL
			if len(ri.Attachment.Payload.Elements) > 0 && ri.Attachment.Payload.Elements[0].URL != "" {
				url = ri.Attachment.Payload.Elements[0].URL
			}
			if url != "" {
				items = append(items, EnvelopeItem{Kind: EnvelopeMedia, URL: url})
			} else {
				items = append(items, EnvelopeItem{Kind: EnvelopeUnknown})
			}
		default:
			items = append(items, EnvelopeItem{Kind: EnvelopeUnknown})
		}
	}
	return items
}

// EnvelopeContent renders decoded items as display text: text items as-is,
// media items as "[media] <url>" placeholders, unknown items dropped. The
// result is empty when the envelope carried no content.
func EnvelopeContent(items []EnvelopeItem) string {
	var parts []string
	for _, item := range items {
		switch item.Kind {
		case EnvelopeText:
			parts = append(parts, item.Text)
		case EnvelopeMedia:
			parts = append(parts, fmt.Sprintf("[media] %s", item.URL))
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
