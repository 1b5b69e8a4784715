package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/eraload/internal/exitcode"
	"github.com/gyeh/eraload/internal/export"
	"github.com/gyeh/eraload/internal/reconcile"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write reconciled line items to an XLSX workbook or Parquet file",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.String("format", "xlsx", "Output format: xlsx or parquet")
	f.String("out", "", "Output path (required)")
	addScopeFlags(exportCmd)
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx := context.Background()

	if err := cfg.ValidateExport(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	filter, err := scopeFilter()
	if err != nil {
		log.Error().Err(err).Msg("invalid scope")
		os.Exit(exitcode.UsageError)
	}
	pool, st := openStore(ctx, log)
	defer pool.Close()

	items, err := reconcile.NewAggregator(st, log).Items(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("export query failed")
		os.Exit(exitcode.DBConnError)
	}

	out, err := os.Create(cfg.OutPath)
	if err != nil {
		log.Error().Err(err).Msg("create output")
		os.Exit(exitcode.UsageError)
	}
	defer out.Close()

	switch cfg.ExportFormat {
	case "parquet":
		_, err = export.WriteParquet(out, items)
	default:
		scope := export.Scope{Period: filter.Period, PracticeID: cfg.PracticeID}
		err = export.WriteXLSX(out, scope, reconcile.Summarize(items), items)
	}
	if err == nil {
		err = out.Close()
	}
	if err != nil {
		log.Error().Err(err).Str("out", cfg.OutPath).Msg("export failed")
		os.Exit(exitcode.FinalizeError)
	}

	fmt.Printf("Exported %d line items to %s\n", len(items), cfg.OutPath)
	return nil
}
