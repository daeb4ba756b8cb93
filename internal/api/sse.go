package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mainstreethq/inboxd/internal/models"
)

// conversationEvent holds data for a new-conversation SSE event.
type conversationEvent struct {
	ConversationID string `json:"conversation_id"`
	Source         string `json:"source"`
	CustomerName   string `json:"customer_name"`
	Count          int    `json:"count"`
}

// handleStream serves the inbox SSE feed: a hello event on connect, a
// heartbeat every 15 seconds, and a conversation event whenever the unified
// store gains rows.
func handleStream(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "hello", map[string]any{
			"type": "hello",
			"t":    time.Now().UTC().Format(time.RFC3339),
		})
		c.Writer.Flush()

		if opts.DB == nil {
			return
		}

		// Only alert on conversations created after connect.
		var lastSeenID uint
		var latest models.Conversation
		if err := opts.DB.Order("id DESC").Limit(1).First(&latest).Error; err == nil {
			lastSeenID = latest.ID
		}

		ctx := c.Request.Context()
		poll := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer poll.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]any{
					"type": "heartbeat",
					"t":    time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-poll.C:
				var fresh []models.Conversation
				opts.DB.Where("id > ?", lastSeenID).Order("id ASC").Find(&fresh)
				if len(fresh) == 0 {
					continue
				}
				lastSeenID = fresh[len(fresh)-1].ID

				newest := fresh[len(fresh)-1]
				writeSSE(c.Writer, "conversation", conversationEvent{
					ConversationID: newest.ConversationID,
					Source:         newest.Source,
					CustomerName:   newest.CustomerName,
					Count:          len(fresh),
				})
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
