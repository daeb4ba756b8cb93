package main

import (
	"context"
	"fmt"

	"github.com/mainstreethq/inboxd/internal/db"
	"github.com/mainstreethq/inboxd/internal/models"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass across all sources",
		Long:  "Fetches, normalizes, and merges conversations from every configured source once, then prints a summary.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inboxd.yaml", "path to inboxd config file")
	return cmd
}

func runSync(cmd *cobra.Command, configPath string) error {
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

	res, err := orch.RunPass(context.Background(), models.TriggerManual)
	if err != nil {
		return fmt.Errorf("sync pass: %w", err)
	}

	fmt.Fprintf(out, "Sync pass %s complete\n", res.RunID)
	for _, sr := range res.Sources {
		if sr.Skipped {
			fmt.Fprintf(out, "  %-10s skipped (sync already in progress)\n", sr.Source)
			continue
		}
		fmt.Fprintf(out, "  %-10s created=%d updated=%d messages=%d errors=%d\n",
			sr.Source, sr.Created, sr.Updated, sr.Messages, sr.Errors)
	}
	fmt.Fprintf(out, "Total: created=%d updated=%d messages=%d errors=%d\n",
		res.Created, res.Updated, res.Messages, res.Errors)
	if len(res.ErrList) > 0 {
		fmt.Fprintln(out, "Errors:")
		for _, e := range res.ErrList {
			fmt.Fprintf(out, "  %s\n", e)
		}
	}
	return nil
}
