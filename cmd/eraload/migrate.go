package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/eraload/internal/db"
	"github.com/gyeh/eraload/internal/exitcode"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx := context.Background()

	pool, _ := openStore(ctx, log)
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(exitcode.FinalizeError)
	}

	log.Info().Msg("all migrations applied successfully")
	return nil
}
