package main

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/eraload/internal/config"
	"github.com/gyeh/eraload/internal/logging"
)

var (
	v   = config.NewViper()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "eraload",
	Short:        "ERA 835 remittance loader and revenue reconciler",
	Long:         "Decodes X12 835 remittance files, matches service lines against the practice fee schedule and reconciles paid against expected revenue.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		c, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("dsn", "", "Postgres connection string (or set DATABASE_URL)")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("config", "", "YAML policy file (program_types, claimless_policy, ...)")
}

func newLogger() zerolog.Logger {
	return logging.WithLevel(logging.Setup(cfg.LogFormat), cfg.LogLevel)
}

// addOracleFlags registers the fee schedule and pipeline flags shared by
// the commands that process files.
func addOracleFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("oracle-url", "", "Fee schedule service base URL")
	f.Duration("oracle-timeout", 5*time.Second, "Per-request fee schedule timeout")
	f.String("fee-schedule", "", "Fee schedule Parquet file (instead of --oracle-url)")
	f.String("encounters", "", "Encounter Parquet file used with --fee-schedule")
	f.String("redis-addr", "", "Redis address for the rate cache (optional)")
	f.Duration("rate-cache-ttl", 15*time.Minute, "Rate cache TTL")
	f.StringSlice("program-types", nil, "Program types accepted from the fee schedule (default all)")
	f.String("claimless-policy", "surface", "Service lines without a claim: surface or drop")
	f.Int("envelope-scan-bytes", 4096, "Bytes scanned for the ISA envelope")
	f.Duration("process-timeout", 2*time.Minute, "Upper bound on one pipeline run")
}

// addScopeFlags registers the optional practice and period filters.
func addScopeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("practice", "", "Practice ID")
	f.String("month", "", "Billing month (JAN..DEC)")
	f.Int("year", 0, "Billing year")
}
