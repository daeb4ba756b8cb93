package source

import (
	"testing"
)

func TestDecodeEnvelope_TypingFiltered(t *testing.T) {
	raw := `[{"type":"typing"},{"text":"Hello"}]`
	items := DecodeEnvelope(raw)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Kind != EnvelopeUnknown {
		t.Errorf("items[0].Kind = %v, want EnvelopeUnknown", items[0].Kind)
	}
	if items[1].Kind != EnvelopeText || items[1].Text != "Hello" {
		t.Errorf("items[1] = %+v, want text Hello", items[1])
	}
	if got := EnvelopeContent(items); got != "Hello" {
		t.Errorf("EnvelopeContent = %q, want Hello", got)
	}
}

func TestDecodeEnvelope_Attachment(t *testing.T) {
	raw := `[{"attachment":{"payload":{"elements":[{"url":"https://cdn.example.com/pic.jpg"}]}}}]`
	items := DecodeEnvelope(raw)
	if len(items) != 1 || items[0].Kind != EnvelopeMedia {
		t.Fatalf("items = %+v, want one media item", items)
	}
	if got := EnvelopeContent(items); got != "[media] https://cdn.example.com/pic.jpg" {
		t.Errorf("EnvelopeContent = %q", got)
	}
}

func TestDecodeEnvelope_PayloadURLFallback(t *testing.T) {
	raw := `[{"attachment":{"payload":{"url":"https://cdn.example.com/file.pdf"}}}]`
	items := DecodeEnvelope(raw)
	if len(items) != 1 || items[0].URL != "https://cdn.example.com/file.pdf" {
		t.Fatalf("items = %+v, want payload url", items)
	}
}

func TestDecodeEnvelope_MalformedFallsBackToText(t *testing.T) {
	raw := `hello there, not json`
	items := DecodeEnvelope(raw)
	if len(items) != 1 || items[0].Kind != EnvelopeText || items[0].Text != raw {
		t.Fatalf("items = %+v, want single raw-text item", items)
	}
}

func TestDecodeEnvelope_Empty(t *testing.T) {
	if items := DecodeEnvelope("   "); items != nil {
		t.Errorf("DecodeEnvelope(blank) = %+v, want nil", items)
	}
}

func TestEnvelopeContent_AllUnknown(t *testing.T) {
	items := DecodeEnvelope(`[{"type":"typing"},{"type":"typing"}]`)
	if got := EnvelopeContent(items); got != "" {
		t.Errorf("EnvelopeContent = %q, want empty", got)
	}
}

func TestFromConversationID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"woodstock_abc-123", "woodstock"},
		{"vapi_c1", "vapi"},
		{"987654321", "chatrace"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := string(FromConversationID(tt.id)); got != tt.want {
				t.Errorf("FromConversationID(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestGuestName(t *testing.T) {
	if got := GuestName(0); got != "Guest 1" {
		t.Errorf("GuestName(0) = %q, want Guest 1", got)
	}
	if got := GuestName(24); got != "Guest 25" {
		t.Errorf("GuestName(24) = %q, want Guest 25", got)
	}
}

func TestInfos_AllSourcesPresent(t *testing.T) {
	infos := Infos()
	if len(infos) != 3 {
		t.Fatalf("got %d sources, want 3", len(infos))
	}
	for _, name := range All() {
		info, ok := infos[name]
		if !ok {
			t.Errorf("missing info for source %s", name)
			continue
		}
		if info.Name == "" || info.Icon == "" {
			t.Errorf("source %s has incomplete info: %+v", name, info)
		}
	}
}
