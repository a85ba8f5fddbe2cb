package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"alpaca-trader/internal/cli"
	"alpaca-trader/internal/config"
	"alpaca-trader/internal/logging"
)

func main() {
	// Credentials may come from a local .env during development; a
	// missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger()

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
