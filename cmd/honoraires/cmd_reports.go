package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diewo77/go-honoraires/internal/config"
	"github.com/diewo77/go-honoraires/internal/services"
)

var (
	clientFilter  uint
	cabinetFilter string
	annotate      bool

	paramsFile  string
	excludeIDs  []string
	saveTariffs bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Scan active subscriptions for billing anomalies",
	Long: `Classifies every stored line and reports anomalies: payroll billed
both per payslip and as a flat fee, duplicated unique axes or labels,
multiple subscriptions, non-standard labels, unclassified lines and
suspicious prices.

With --annotate the detected payroll billing mode is stored on each client.`,
	RunE: runAudit,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a fee increase over the active portfolio",
	Long: `Applies the increase parameters of --params (YAML or JSON) to every
active line and prints per-client results and a summary per axe and cabinet.

Example parameters file:
  global_rate: 3
  axes:
    compta_mensuelle: {active: true, use_global_rate: true}
    social_bulletin:  {active: true, mode: amount, value: 1.5}`,
	RunE: runSimulate,
}

var restructureCmd = &cobra.Command{
	Use:   "restructure",
	Short: "Plan the split of subscriptions into fixed and variable billing",
	RunE:  runRestructure,
}

func init() {
	auditCmd.Flags().UintVar(&clientFilter, "client", 0, "Audit a single client id")
	auditCmd.Flags().StringVar(&cabinetFilter, "cabinet", "", "Audit a single cabinet")
	auditCmd.Flags().BoolVar(&annotate, "annotate", false, "Store the detected social billing mode on clients")

	simulateCmd.Flags().StringVarP(&paramsFile, "params", "p", "", "Increase parameters file (.yaml, .yml or .json)")
	simulateCmd.Flags().StringSliceVar(&excludeIDs, "exclude", nil, "Client ids to leave unchanged")
	simulateCmd.Flags().BoolVar(&saveTariffs, "save-tariffs", false, "Store the simulated unit prices as reference tariffs")
	_ = simulateCmd.MarkFlagRequired("params")

	restructureCmd.Flags().UintVar(&clientFilter, "client", 0, "Plan a single client id")
}

func runAudit(cmd *cobra.Command, args []string) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	svc := services.NewAuditService(conn, logger, classifier())
	guard := runGuard(conn)
	var out any
	_, err = guard.Do(ctx, "audit", cabinetFilter, func(ctx context.Context, _ string) (services.BatchSummary, error) {
		if annotate {
			summary, err := svc.AnnotateSocialModes(ctx)
			if err != nil {
				return summary, err
			}
			logger.Info("social modes annotated", zap.Int("clients", summary.Succeeded), zap.Int("failed", summary.Failed))
		}
		report, err := svc.Run(ctx, services.LineFilter{ClientID: clientFilter, Cabinet: cabinetFilter, ActiveOnly: true})
		out = report
		return services.BatchSummary{Processed: len(report.Anomalies), Succeeded: len(report.Anomalies)}, err
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	params, err := config.LoadParameters(paramsFile)
	if err != nil {
		return err
	}
	excluded, err := parseIDs(excludeIDs)
	if err != nil {
		return err
	}
	conn, err := openDB()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	svc := services.NewSimulationService(conn, logger, classifier())
	if !saveTariffs {
		res, err := svc.Run(ctx, params, excluded)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}

	type output struct {
		services.SimulationResult
		RunID string                `json:"run_id"`
		Saved services.BatchSummary `json:"saved"`
	}
	var out output
	_, err = runGuard(conn).Do(ctx, "simulate", paramsFile,
		func(ctx context.Context, runID string) (services.BatchSummary, error) {
			res, err := svc.Run(ctx, params, excluded)
			if err != nil {
				return services.BatchSummary{}, err
			}
			out = output{SimulationResult: res, RunID: runID, Saved: svc.SaveTariffs(ctx, res.Clients, runID)}
			return out.Saved, nil
		})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func runRestructure(cmd *cobra.Command, args []string) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	svc := services.NewRestructureService(conn, logger, classifier())
	if clientFilter != 0 {
		plan, err := svc.Plan(ctx, clientFilter)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), plan)
	}
	plans, err := svc.PlanAll(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), plans)
}

func parseIDs(raw []string) ([]uint, error) {
	out := make([]uint, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, uint(id))
	}
	return out, nil
}
