package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/eraload/internal/exitcode"
	"github.com/gyeh/eraload/internal/feeschedule"
	"github.com/gyeh/eraload/internal/ingest"
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
	"github.com/gyeh/eraload/internal/normalize"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run decode and match (no writes)",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().String("file", "", "Path to 835 file (required)")
	addScopeFlags(planCmd)
	addOracleFlags(planCmd)
	_ = planCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	rf, err := readRemittance()
	if err != nil {
		log.Error().Err(err).Msg("failed to read remittance file")
		os.Exit(exitcode.ValidationError)
	}
	oracle, closeOracle := openOracle(ctx, log)
	defer closeOracle()

	// Plan never touches the store.
	svc := ingest.NewService(nil, oracle, log, cfg)
	plan, err := svc.Plan(ctx, rf)
	if err != nil {
		log.Error().Err(err).Msg("plan failed")
		if errors.Is(err, feeschedule.ErrUnavailable) {
			os.Exit(exitcode.OracleUnavailable)
		}
		os.Exit(exitcode.ValidationError)
	}

	fmt.Println("=== eraload plan ===")
	fmt.Printf("File:        %s\n", cfg.FilePath)
	fmt.Printf("SHA-256:     %s\n", normalize.ContentHash(rf.Content))
	fmt.Printf("Size:        %d bytes\n", len(rf.Content))
	fmt.Printf("Practice:    %s (%s)\n", rf.PracticeID, rf.Period)
	fmt.Printf("Outcome:     %s\n", plan.Status)

	if plan.Result != nil {
		fmt.Printf("Claims:      %d\n", len(plan.Result.Claims))
		fmt.Printf("Line items:  %d\n", len(plan.Result.LineItems))
	}
	if plan.Status == model.StatusProcessed {
		fmt.Printf("Codes:       %d distinct (%d rate lookups, %d found)\n",
			plan.Stats.DistinctCodes, plan.Stats.RateLookups, plan.Stats.RatesFound)
		fmt.Printf("Matched:     %d\n", plan.Stats.Matched)
		fmt.Printf("Unmatched:   %d\n", plan.Stats.Unmatched)
		fmt.Printf("Billed:      %s\n", plan.Totals.TotalBilledCents)
		fmt.Printf("Paid:        %s\n", plan.Totals.TotalPaidCents)
		fmt.Printf("Adjusted:    %s\n", plan.Totals.TotalAdjustmentCents)
		fmt.Println()
		fmt.Printf("  %-4s %-12s %-7s %-8s %10s %10s %10s  %s\n", "seq", "claim", "cpt", "program", "paid", "expected", "variance", "status")
		for _, li := range plan.Result.LineItems {
			fmt.Printf("  %-4d %-12s %-7s %-8s %10s %10s %10s  %s\n",
				li.Seq, li.ClaimID, li.CPTCode, li.ProgramType, li.PaidCents,
				money.Format(li.SystemRevenueCents), money.Format(li.VarianceCents), li.MatchStatus)
		}
	}
	if len(plan.Detail) > 0 {
		fmt.Println()
		fmt.Println("Warnings:")
		for _, d := range plan.Detail {
			fmt.Printf("  ! %s\n", d)
		}
	}
	if plan.Status == model.StatusParseErrors {
		os.Exit(exitcode.ParseError)
	}
	return nil
}
