package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/gyeh/eraload/internal/exitcode"
	"github.com/gyeh/eraload/internal/feeschedule"
)

var cacheCmd = &cobra.Command{
	Use:   "cache-flush",
	Short: "Drop cached fee schedule rates, e.g. after a contract change",
	RunE:  runCacheFlush,
}

func init() {
	cacheCmd.Flags().String("redis-addr", "", "Redis address of the rate cache (required)")
	_ = cacheCmd.MarkFlagRequired("redis-addr")
	rootCmd.AddCommand(cacheCmd)
}

func runCacheFlush(cmd *cobra.Command, args []string) error {
	log := newLogger()
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer client.Close()

	n, err := feeschedule.NewCachedOracle(nil, client, cfg.RateCacheTTL, log).Invalidate(ctx)
	if err != nil {
		log.Error().Err(err).Msg("cache flush failed")
		os.Exit(exitcode.OracleUnavailable)
	}
	fmt.Printf("Removed %d cached rates\n", n)
	return nil
}
