package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mainstreethq/inboxd/internal/models"
	"github.com/mainstreethq/inboxd/internal/source"
)

// registerRoutes sets up all inbox API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealthz())

	inbox := router.Group("/api/inbox")
	inbox.GET("/conversations", handleConversations(opts))
	inbox.GET("/conversations/:id/messages", handleMessages(opts))
	inbox.POST("/conversations/:id/link-contact", handleLinkContact(opts))
	inbox.POST("/sync", handleSync(opts))
	inbox.GET("/sources", handleSources())
	inbox.GET("/stream", handleStream(opts))

	router.POST("/webhook/vapi", handleVAPIWebhook(opts))
}

func handleHealthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	}
}

// handleConversations serves the merged conversation list. Read paths answer
// partial backend trouble with a status:error envelope, never a 500.
func handleConversations(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		platform := c.Query("platform")
		limit := intQuery(c, "limit", 0)
		offset := intQuery(c, "offset", 0)
		if opts.MaxConversations > 0 && limit > opts.MaxConversations {
			limit = opts.MaxConversations
		}

		result, err := ConversationList(opts.DB, platform, limit, offset)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"data":    result.Rows,
			"total":   result.Total,
			"sources": result.Sources,
		})
	}
}

func handleMessages(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		limit := intQuery(c, "limit", 0)
		if opts.MaxMessages > 0 && limit > opts.MaxMessages {
			limit = opts.MaxMessages
		}

		rows, err := MessageTimeline(opts.DB, id, limit)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": rows})
	}
}

func handleSync(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Orchestrator == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "error", "message": "sync is not configured",
			})
			return
		}
		res, err := opts.Orchestrator.RunPass(c.Request.Context(), models.TriggerManual)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status": "error", "message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "success",
			"run_id":   res.RunID,
			"created":  res.Created,
			"updated":  res.Updated,
			"errors":   res.Errors,
			"messages": res.Messages,
		})
	}
}

func handleSources() gin.HandlerFunc {
	return func(c *gin.Context) {
		infos := make(map[string]source.Info, 3)
		for src, info := range source.Infos() {
			infos[string(src)] = info
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "sources": infos})
	}
}

func handleLinkContact(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var body struct {
			ContactID string `json:"contact_id"`
		}
		_ = c.ShouldBindJSON(&body)
		if body.ContactID == "" {
			body.ContactID = id
		}

		if err := LinkContact(opts.DB, id, body.ContactID); err != nil {
			c.JSON(http.StatusOK, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "contact_id": body.ContactID})
	}
}

// vapiEvent mirrors the webhook payload for call lifecycle events. Only
// call-ended events carry enough data to be worth persisting; everything
// else is acknowledged and dropped.
type vapiEvent struct {
	Type string `json:"type"`
	Call *struct {
		ID       string `json:"id"`
		Customer *struct {
			Number string `json:"number"`
			Name   string `json:"name"`
		} `json:"customer"`
		Transcript   string    `json:"transcript"`
		Summary      string    `json:"summary"`
		StartedAt    time.Time `json:"startedAt"`
		EndedAt      time.Time `json:"endedAt"`
		RecordingURL string    `json:"recordingUrl"`
	} `json:"call"`
}

func handleVAPIWebhook(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var evt vapiEvent
		if err := c.ShouldBindJSON(&evt); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid payload"})
			return
		}

		if evt.Type != "call-ended" || evt.Call == nil || evt.Call.ID == "" {
			c.JSON(http.StatusOK, gin.H{"status": "received"})
			return
		}

		call := models.Call{
			CallID:        evt.Call.ID,
			Transcript:    evt.Call.Transcript,
			Summary:       evt.Call.Summary,
			CallStartedAt: evt.Call.StartedAt,
			CallEndedAt:   evt.Call.EndedAt,
			RecordingURL:  evt.Call.RecordingURL,
		}
		if evt.Call.Customer != nil {
			call.CustomerPhone = evt.Call.Customer.Number
			call.CustomerName = evt.Call.Customer.Name
		}
		now := time.Now().UTC()
		if call.CallStartedAt.IsZero() {
			call.CallStartedAt = now
		}
		if call.CallEndedAt.IsZero() {
			call.CallEndedAt = now
		}

		if opts.Orchestrator != nil {
			if _, err := opts.Orchestrator.IngestCall(c.Request.Context(), call); err != nil {
				// Acknowledge anyway; the scheduled pass retries from the call log.
				log.Printf("api: ingest call %s: %v", call.CallID, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "received"})
	}
}

// intQuery parses an integer query parameter, falling back on absence or
// garbage.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
