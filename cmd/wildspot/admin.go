package main

import (
	"fmt"
	"os"
	"time"

	"github.com/garnizeh/wildspot/internal/db"
	"github.com/garnizeh/wildspot/internal/repository/sqlite"
	"github.com/spf13/cobra"
)

func migrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			d, _, err := openStore(cmd.Context(), cfg, logger, true)
			if err != nil {
				return err
			}
			defer d.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "Database migrated.")
			return nil
		},
	}
}

func seedCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert missing badges from the built-in catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			d, err := db.New(cmd.Context(), cfg.DatabasePath, logger)
			if err != nil {
				return err
			}
			defer d.Close()
			n, err := seedBadges(cmd.Context(), sqlite.New(d, logger), logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d badge(s) inserted.\n", n)
			return nil
		},
	}
}

func backupCmd(g *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a consistent copy of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("%s.%s.bak", cfg.DatabasePath, time.Now().UTC().Format("20060102T150405"))
			}
			d, err := db.New(cmd.Context(), cfg.DatabasePath, logger)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.Backup(cmd.Context(), out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database backed up to %s.\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Backup file (default <database>.<timestamp>.bak)")
	return cmd
}

func restoreCmd(g *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Replace the database with a backup; the server must be stopped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.DatabasePath); err == nil && !force {
				return fmt.Errorf("%s exists; pass --force to overwrite it", cfg.DatabasePath)
			}
			if err := db.Restore(args[0], cfg.DatabasePath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database restored from %s.\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing database")
	return cmd
}
