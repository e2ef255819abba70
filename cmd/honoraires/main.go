package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/config"
	"github.com/diewo77/go-honoraires/internal/db"
	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/services"
)

var (
	verbose bool
	pretty  bool
	timeout time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "honoraires",
	Short: "Fee portfolio analysis for an accounting firm",
	Long: `honoraires syncs the firm's recurring billing subscriptions from the
billing platform, classifies every line into fee axes, audits the portfolio
for billing anomalies, simulates fee increases and plans the split between
fixed and variable billing.

Configuration is read from the environment (and an optional .env file).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		if cfg == nil {
			cfg = config.Load()
		}
		if logger != nil {
			return nil
		}
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Indent JSON output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Operation timeout")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(restructureCmd)
	rootCmd.AddCommand(importProductionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(unlockCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// commandContext is cancelled on SIGINT/SIGTERM or after --timeout.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func openDB() (*gorm.DB, error) {
	conn, err := db.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if cfg.App.Migrations {
		if err := db.Migrate(conn); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

func runGuard(conn *gorm.DB) *services.RunGuard {
	return services.NewRunGuard(conn, logger).WithStaleAfter(cfg.Engine.RunStaleAfter)
}

func classifier() *fees.Classifier {
	return fees.NewClassifier(cfg.Engine.BulletinThreshold)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
