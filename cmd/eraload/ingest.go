package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gyeh/eraload/internal/exitcode"
	"github.com/gyeh/eraload/internal/ingest"
	"github.com/gyeh/eraload/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest an 835 remittance file into the database",
	RunE:  runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.String("file", "", "Path to 835 file (required)")
	f.Bool("dry-run", false, "Decode and match without writing (same as plan)")
	addScopeFlags(ingestCmd)
	addOracleFlags(ingestCmd)
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if cfg.DryRun {
		return runPlan(cmd, args)
	}
	log := newLogger()
	ctx := context.Background()

	if err := cfg.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	rf, err := readRemittance()
	if err != nil {
		log.Error().Err(err).Msg("failed to read remittance file")
		os.Exit(exitcode.ValidationError)
	}

	pool, st := openStore(ctx, log)
	defer pool.Close()
	oracle, closeOracle := openOracle(ctx, log)
	defer closeOracle()

	svc := ingest.NewService(st, oracle, log, cfg)
	u, err := svc.CreateUpload(ctx, rf)
	code := outcomeCode(u, err)
	if err != nil {
		log.Error().Err(err).Int("exit_code", code).Msg("ingest did not complete")
	}
	if u != nil {
		printUpload(u)
	}
	if code != exitcode.Success {
		os.Exit(code)
	}
	return nil
}

func readRemittance() (model.RemittanceFile, error) {
	period, err := cfg.Period()
	if err != nil {
		return model.RemittanceFile{}, err
	}
	content, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		return model.RemittanceFile{}, fmt.Errorf("read %s: %w", cfg.FilePath, err)
	}
	return model.RemittanceFile{
		Content:    content,
		PracticeID: cfg.PracticeID,
		Period:     period,
		Filename:   filepath.Base(cfg.FilePath),
	}, nil
}

func printUpload(u *model.EraUpload) {
	fmt.Printf("Upload:     %s\n", u.ID)
	fmt.Printf("Status:     %s\n", u.Status)
	fmt.Printf("Practice:   %s (%s)\n", u.PracticeID, u.Period())
	fmt.Printf("Claims:     %d (%d matched, %d unmatched lines)\n", u.TotalClaims, u.MatchedClaims, u.UnmatchedClaims)
	fmt.Printf("Billed:     %s\n", u.TotalBilledCents)
	fmt.Printf("Paid:       %s\n", u.TotalPaidCents)
	fmt.Printf("Adjusted:   %s\n", u.TotalAdjustmentCents)
	for _, w := range u.ErrorDetail {
		fmt.Printf("  ! %s\n", w)
	}
}
