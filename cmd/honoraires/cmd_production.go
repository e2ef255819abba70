package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/diewo77/go-honoraires/internal/models"
	"github.com/diewo77/go-honoraires/internal/production"
	"github.com/diewo77/go-honoraires/internal/services"
)

var (
	period string
	layout = production.DefaultLayout()
)

var importProductionCmd = &cobra.Command{
	Use:   "import-production FILE.xlsx",
	Short: "Import a monthly payroll production export",
	Long: `Reads the payroll software export (one row per client: SIREN, name,
payslips, hires, exits) and stores the figures of --period for each
matched client. Re-importing a period replaces its figures.`,
	Args: cobra.ExactArgs(1),
	RunE: runImportProduction,
}

func init() {
	f := importProductionCmd.Flags()
	f.StringVar(&period, "period", "", "Production month (YYYY-MM)")
	f.StringVar(&layout.Sheet, "sheet", "", "Sheet name (default: first sheet)")
	f.IntVar(&layout.HeaderRow, "header-row", 0, "Header row number (default: PRODUCTION_HEADER_ROW)")
	f.StringVar(&layout.RegistryCol, "registry-col", layout.RegistryCol, "SIREN column")
	f.StringVar(&layout.NameCol, "name-col", layout.NameCol, "Client name column")
	f.StringVar(&layout.BulletinsCol, "bulletins-col", layout.BulletinsCol, "Payslips column")
	f.StringVar(&layout.EntriesCol, "entries-col", layout.EntriesCol, "Hires column")
	f.StringVar(&layout.ExitsCol, "exits-col", layout.ExitsCol, "Exits column")
	_ = importProductionCmd.MarkFlagRequired("period")
}

func runImportProduction(cmd *cobra.Command, args []string) error {
	if _, err := models.ParsePeriod(period); err != nil {
		return err
	}
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	l := layout
	if l.HeaderRow == 0 {
		l.HeaderRow = cfg.Engine.ProductionHeaderRow
	}

	conn, err := openDB()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	svc := services.NewProductionService(conn, logger, l)
	var report services.ImportReport
	_, err = runGuard(conn).Do(ctx, "import_production", period,
		func(ctx context.Context, _ string) (services.BatchSummary, error) {
			var err error
			report, err = svc.Import(ctx, file, period, filepath.Base(args[0]))
			return report.BatchSummary, err
		})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}
