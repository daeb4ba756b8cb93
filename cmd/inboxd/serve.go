package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mainstreethq/inboxd/internal/api"
	"github.com/mainstreethq/inboxd/internal/db"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the inbox API server and the sync scheduler",
		Long:  "Starts the unified inbox HTTP API and schedules periodic sync passes across all configured sources.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inboxd.yaml", "path to inboxd config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, primary, err := connectPrimary(configPath)
	if err != nil {
		return err
	}
	defer db.Close(primary)

	if err := db.AutoMigrate(primary); err != nil {
		return err
	}

	orch, closeAdapters, err := buildOrchestrator(cfg, primary, out)
	if err != nil {
		return err
	}
	defer closeAdapters()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	fmt.Fprintf(out, "Scheduling sync passes (%s)\n", cfg.Sync.Cron)
	go orch.RunScheduler(ctx, cfg.Sync.Cron)

	if port <= 0 {
		port = cfg.API.Port
	}
	return api.Start(ctx, api.StartOpts{
		DB:               primary,
		Orchestrator:     orch,
		Port:             port,
		MaxConversations: cfg.API.MaxConversationLimit,
		MaxMessages:      cfg.API.MaxMessageLimit,
		Out:              out,
	})
}
