package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/eraload/internal/exitcode"
	"github.com/gyeh/eraload/internal/feeschedule"
	"github.com/gyeh/eraload/internal/ingest"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-run uploads left pending by an unavailable fee schedule",
	RunE:  runRetry,
}

func init() {
	retryCmd.Flags().Duration("older-than", 0, "Only retry uploads pending at least this long")
	addOracleFlags(retryCmd)
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx := context.Background()

	pool, st := openStore(ctx, log)
	defer pool.Close()
	oracle, closeOracle := openOracle(ctx, log)
	defer closeOracle()

	start := time.Now()
	svc := ingest.NewService(st, oracle, log, cfg)
	report, err := svc.RetryPending(ctx, cfg.RetryOlderThan)

	fmt.Printf("Retry sweep: %d attempted, %d processed, %d parse errors, %d still pending (%.1fs)\n",
		report.Attempted, report.Processed, report.ParseErrors, report.StillPending, time.Since(start).Seconds())

	switch {
	case err == nil:
		return nil
	case errors.Is(err, feeschedule.ErrUnavailable):
		log.Error().Err(err).Msg("fee schedule still unavailable")
		os.Exit(exitcode.OracleUnavailable)
	case report.Processed+report.ParseErrors > 0:
		log.Error().Err(err).Msg("some uploads failed to retry")
		os.Exit(exitcode.PartialSuccess)
	default:
		log.Error().Err(err).Msg("retry failed")
		os.Exit(exitcode.FinalizeError)
	}
	return nil
}
