package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"wallet-ledger/config"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	"wallet-ledger/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	timeout := flag.Duration("timeout", 30*time.Second, "migration timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	if err := pgStorage.Migrate(ctx, pool, log); err != nil {
		log.Error().Err(err).Msg("migration failed")
		pool.Close()
		os.Exit(1)
	}
}
