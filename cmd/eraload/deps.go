package main

import (
	"context"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/eraload/internal/db"
	"github.com/gyeh/eraload/internal/exitcode"
	"github.com/gyeh/eraload/internal/feeschedule"
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/store"
)

func openStore(ctx context.Context, log zerolog.Logger) (*pgxpool.Pool, *store.Store) {
	if err := cfg.ValidateDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	pool, err := db.NewPool(ctx, cfg.DSN, db.PoolOptions{})
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	return pool, store.New(pool, log)
}

// openOracle builds the configured fee schedule source, wrapped in the
// Redis rate cache when --redis-addr is set.
func openOracle(ctx context.Context, log zerolog.Logger) (feeschedule.Oracle, func()) {
	if err := cfg.ValidateOracle(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	var oracle feeschedule.Oracle
	if cfg.OracleURL != "" {
		oracle = feeschedule.NewHTTPOracle(cfg.OracleURL, cfg.OracleTimeout, log)
	} else {
		table, err := feeschedule.LoadTable(cfg.FeeSchedulePath, cfg.EncountersPath)
		if err != nil {
			log.Error().Err(err).Msg("failed to load fee schedule")
			os.Exit(exitcode.ValidationError)
		}
		log.Info().Int("rates", table.Len()).Str("file", cfg.FeeSchedulePath).Msg("fee schedule loaded")
		oracle = table
	}

	if cfg.RedisAddr == "" {
		return oracle, func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("rate cache unreachable, lookups will bypass it")
	}
	return feeschedule.NewCachedOracle(oracle, client, cfg.RateCacheTTL, log), func() { client.Close() }
}

// scopeFilter builds a store.Filter from --practice, --month and --year.
// Month and year are required; practice is optional.
func scopeFilter() (store.Filter, error) {
	var f store.Filter
	if p := strings.TrimSpace(cfg.PracticeID); p != "" {
		f.PracticeID = &p
	}
	if strings.TrimSpace(cfg.Month) == "" || cfg.Year == 0 {
		return f, &model.ValidationError{Field: "period", Msg: "--month and --year are required"}
	}
	p, err := cfg.Period()
	if err != nil {
		return f, err
	}
	f.Period = &p
	return f, nil
}
