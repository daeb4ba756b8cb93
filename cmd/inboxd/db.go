package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/mainstreethq/inboxd/internal/db"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the unified inbox schema",
		Long:  "Connects to the primary store and migrates the unified inbox tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inboxd.yaml", "path to inboxd config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	_, primary, err := connectPrimary(configPath)
	if err != nil {
		return err
	}
	defer db.Close(primary)
	fmt.Fprintln(out, "Connected to primary store")

	if err := db.AutoMigrate(primary); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nUnified inbox schema initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-create the unified inbox tables",
		Long: `Drops all unified inbox tables from the primary store and re-creates
them empty. Source systems are untouched; the next sync pass repopulates
the store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "inboxd.yaml", "path to inboxd config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	if !skipConfirm {
		if !confirmReset(cmd) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	_, primary, err := connectPrimary(configPath)
	if err != nil {
		return err
	}
	defer db.Close(primary)
	fmt.Fprintln(out, "Connected to primary store")

	if err := primary.Migrator().DropTable(db.AllModels()...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	fmt.Fprintf(out, "Dropped %d tables\n", len(db.AllModels()))

	if err := db.AutoMigrate(primary); err != nil {
		return err
	}
	fmt.Fprintf(out, "Re-created %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nUnified inbox store reset successfully.")
	return nil
}

func confirmReset(cmd *cobra.Command) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintln(out, "WARNING: This will permanently delete all merged inbox data.")
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
