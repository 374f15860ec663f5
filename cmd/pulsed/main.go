package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ecashpulse/pulse/cmd/pulsed/bootstrap"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tokenized/config"
	"github.com/tokenized/logger"
)

var (
	envFile  string
	maxPages int
)

var rootCmd = &cobra.Command{
	Use:   "pulsed",
	Short: "eCash Pulse payment service",
	Long: `Verifies eCash payments to the escrow address and settles bets and raffle entries
against them exactly once.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, server := setup()
		defer server.Close()

		logger.Info(ctx, "main : Started : Application Initializing")
		defer logger.Info(ctx, "main : Completed")

		return server.Run(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, server := setup()
		defer server.Close()

		return server.Migrate(ctx)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report escrow payments that were never recorded",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, server := setup()
		defer server.Close()

		report, err := server.Reconcile(ctx, maxPages)
		if err != nil {
			return err
		}

		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before config")
	reconcileCmd.Flags().IntVar(&maxPages, "max-pages", 0, "history pages to scan, 0 for all")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the environment and config, and creates the server. It exits on failure.
func setup() (context.Context, *bootstrap.Server) {

	// ---------------------------------------------------------------------------------------------
	// Environment

	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Failed to load %s : %s\n", envFile, err)
		os.Exit(1)
	}

	// ---------------------------------------------------------------------------------------------
	// Logging

	logPath := os.Getenv("LOG_FILE_PATH")

	logConfig := logger.NewConfig(strings.ToUpper(os.Getenv("DEVELOPMENT")) == "TRUE",
		strings.ToUpper(os.Getenv("LOG_FORMAT")) == "TEXT", logPath)

	ctx := logger.ContextWithLogConfig(context.Background(), logConfig)

	// -------------------------------------------------------------------------
	// Config

	cfg := &bootstrap.Config{}
	// load config using sane fallbacks
	if err := config.LoadConfig(ctx, cfg); err != nil {
		logger.Fatal(ctx, "main : Load Config : %v", err)
	}

	config.DumpSafe(ctx, cfg)

	server, err := bootstrap.Setup(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "main : Setup : %s", err)
	}

	return ctx, server
}
