package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/eraload/internal/exitcode"
	"github.com/gyeh/eraload/internal/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Summarize paid against expected revenue for processed uploads",
	RunE:  runReconcile,
}

func init() {
	addScopeFlags(reconcileCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx := context.Background()

	filter, err := scopeFilter()
	if err != nil {
		log.Error().Err(err).Msg("invalid scope")
		os.Exit(exitcode.UsageError)
	}
	pool, st := openStore(ctx, log)
	defer pool.Close()

	s, err := reconcile.NewAggregator(st, log).Reconcile(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("reconciliation failed")
		os.Exit(exitcode.DBConnError)
	}

	fmt.Println("=== eraload reconcile ===")
	fmt.Printf("Uploads:         %d\n", s.UploadCount)
	fmt.Printf("Line items:      %d\n", s.LineItemCount)
	fmt.Printf("Total paid:      %s\n", s.TotalPaid)
	fmt.Printf("System revenue:  %s\n", s.TotalSystemRevenue)
	fmt.Printf("Variance:        %s\n", s.TotalVariance)
	fmt.Printf("Discrepancies:   %d\n", s.DiscrepancyCount)
	for _, d := range s.Discrepancies {
		fmt.Printf("  %s  %-24s %-7s %-6s paid %10s expected %10s variance %10s\n",
			d.LineItemID, d.PatientName, d.CPTCode, d.ProgramType, d.Paid, d.Expected, d.Variance)
	}
	return nil
}
