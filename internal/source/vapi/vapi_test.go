package vapi

import (
	"context"
	"testing"
	"time"

	"github.com/mainstreethq/inboxd/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openCallTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Call{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestNew_RequiresDB(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Fatal("expected error for missing db")
	}
}

func TestNormalizeCall_FullCall(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(4 * time.Minute)
	call := models.Call{
		CallID:        "c1",
		CustomerPhone: "+1555",
		Transcript:    "hi",
		Summary:       "resolved",
		CallStartedAt: t0,
		CallEndedAt:   t1,
		RecordingURL:  "https://rec.example.com/c1.mp3",
	}

	c := NormalizeCall(call)
	if c.ConversationID != "vapi_c1" {
		t.Errorf("ConversationID = %q, want vapi_c1", c.ConversationID)
	}
	if c.CustomerName != "Phone Customer" {
		t.Errorf("CustomerName = %q, want Phone Customer default", c.CustomerName)
	}
	if !c.LastMessageAt.Equal(t1) {
		t.Errorf("LastMessageAt = %v, want call end %v", c.LastMessageAt, t1)
	}
	if got := c.Metadata["call_duration"]; got != 240.0 {
		t.Errorf("call_duration = %v, want 240", got)
	}

	// Started marker, transcript, summary, recording.
	if len(c.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(c.Messages))
	}
	if c.Messages[1].Content != "hi" || c.Messages[1].Role != models.RoleUser {
		t.Errorf("transcript message = %+v", c.Messages[1])
	}
	if c.Messages[2].Content != "📋 Call Summary: resolved" || c.Messages[2].Role != models.RoleAssistant {
		t.Errorf("summary message = %+v", c.Messages[2])
	}
	if !c.Messages[2].CreatedAt.Equal(t1) {
		t.Errorf("summary at %v, want %v", c.Messages[2].CreatedAt, t1)
	}
}

func TestNormalizeCall_MinimalCall(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	c := NormalizeCall(models.Call{CallID: "c2", CallStartedAt: t0})

	if len(c.Messages) != 1 {
		t.Fatalf("got %d messages, want only the started marker", len(c.Messages))
	}
	if c.LastMessageContent != "Phone call completed" {
		t.Errorf("LastMessageContent = %q", c.LastMessageContent)
	}
	if !c.LastMessageAt.Equal(t0) {
		t.Errorf("LastMessageAt = %v, want call start", c.LastMessageAt)
	}
}

func TestFetchConversations_Window(t *testing.T) {
	db := openCallTestDB(t)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	recent := models.Call{CallID: "c-recent", CallStartedAt: now.Add(-time.Hour), CreatedAt: now.Add(-time.Hour)}
	old := models.Call{CallID: "c-old", CallStartedAt: now.Add(-48 * time.Hour), CreatedAt: now.Add(-48 * time.Hour)}
	for _, c := range []models.Call{recent, old} {
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed call: %v", err)
		}
	}

	a, _ := New(Opts{DB: db, Now: func() time.Time { return now }})
	convos, err := a.FetchConversations(context.Background())
	if err != nil {
		t.Fatalf("FetchConversations: %v", err)
	}
	if len(convos) != 1 {
		t.Fatalf("got %d conversations, want 1 inside the 24h window", len(convos))
	}
	if convos[0].ConversationID != "vapi_c-recent" {
		t.Errorf("ConversationID = %q", convos[0].ConversationID)
	}
}

func TestFetchMessages_UnknownCall(t *testing.T) {
	db := openCallTestDB(t)
	a, _ := New(Opts{DB: db})

	msgs, err := a.FetchMessages(context.Background(), "nope", 0)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if msgs != nil {
		t.Errorf("got %v, want nil for unknown call", msgs)
	}
}

func TestFetchMessages_Limit(t *testing.T) {
	db := openCallTestDB(t)
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	call := models.Call{
		CallID: "c1", Transcript: "hi", Summary: "done",
		CallStartedAt: t0, CallEndedAt: t0.Add(time.Minute), CreatedAt: t0,
	}
	if err := db.Create(&call).Error; err != nil {
		t.Fatalf("seed call: %v", err)
	}

	a, _ := New(Opts{DB: db})
	msgs, err := a.FetchMessages(context.Background(), "c1", 2)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("got %d messages, want limit of 2", len(msgs))
	}
}
