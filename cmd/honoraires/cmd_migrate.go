package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diewo77/go-honoraires/internal/db"
)

var seedCabinets bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Runs the schema migrations. With --seed, the cabinets listed in
BILLING_CABINETS are created when missing.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&seedCabinets, "seed", false, "Seed the configured cabinets")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	conn, err := db.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}
	logger.Info("migrations completed", zap.String("driver", cfg.Database.Driver))
	if seedCabinets {
		if err := db.Seed(conn, cfg.Billing.Cabinets); err != nil {
			return err
		}
		logger.Info("cabinets seeded", zap.Strings("cabinets", cfg.Billing.Cabinets))
	}
	return nil
}
