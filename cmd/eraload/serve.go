package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/eraload/internal/api"
	"github.com/gyeh/eraload/internal/exitcode"
	"github.com/gyeh/eraload/internal/ingest"
	"github.com/gyeh/eraload/internal/reconcile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload and reconciliation HTTP API",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("listen", ":8080", "HTTP listen address")
	f.Int64("max-upload-bytes", 20<<20, "Largest accepted upload")
	addOracleFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, st := openStore(ctx, log)
	defer pool.Close()
	oracle, closeOracle := openOracle(ctx, log)
	defer closeOracle()

	svc := ingest.NewService(st, oracle, log, cfg)
	h := api.NewHandler(svc, reconcile.NewAggregator(st, log), st, log, cfg.MaxUploadBytes)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			os.Exit(exitcode.UsageError)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	return nil
}
