package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mainstreethq/inboxd/internal/syncer"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the inbox API server.
type StartOpts struct {
	DB           *gorm.DB
	Orchestrator *syncer.Orchestrator
	Port         int
	// Operator-configured pagination ceilings. Zero means the built-in
	// bounds (500 conversations, 1000 messages).
	MaxConversations int
	MaxMessages      int
	Out              io.Writer
}

// Start launches the inbox API server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("api: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Inbox API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with all routes registered. Split out of
// Start so tests can drive the handlers without binding a port.
func newRouter(opts StartOpts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router
}
