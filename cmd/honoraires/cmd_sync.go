package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/diewo77/go-honoraires/internal/billing"
	"github.com/diewo77/go-honoraires/internal/services"
)

// newBillingAPI is swapped in tests.
var newBillingAPI = func(cabinet string) (services.BillingAPI, error) {
	token, err := cfg.Billing.Token(cabinet)
	if err != nil {
		return nil, err
	}
	return billing.New(cfg.Billing.BaseURL, token,
		billing.WithPageSize(cfg.Billing.PageSize),
		billing.WithLogger(logger.With(zap.String("cabinet", cabinet))),
		billing.WithHTTPClient(&http.Client{Timeout: cfg.Billing.Timeout}),
	), nil
}

var syncCmd = &cobra.Command{
	Use:   "sync [cabinet...]",
	Short: "Sync clients, subscriptions and lines from the billing platform",
	Long: `Fetches every customer and subscription of each cabinet, links
customers to local clients, and replaces the stored subscription lines.

Cabinets default to BILLING_CABINETS. Each cabinet sync is recorded as a
run; a cabinet already syncing is skipped with an error.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cabinets := cfg.Billing.Cabinets
	if len(args) > 0 {
		cabinets = make([]string, 0, len(args))
		for _, a := range args {
			cabinets = append(cabinets, strings.ToLower(a))
		}
	}
	if len(cabinets) == 0 {
		return errors.New("no cabinet to sync: set BILLING_CABINETS or pass cabinet codes")
	}

	conn, err := openDB()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	svc := services.NewSyncService(conn, logger, services.SyncOptions{
		LinePause:     cfg.Billing.LinePause,
		UpdateCabinet: cfg.Billing.UpdateCabinet,
	})
	guard := runGuard(conn)

	reports := make([]services.SyncReport, 0, len(cabinets))
	var failed []string
	for _, cabinet := range cabinets {
		api, err := newBillingAPI(cabinet)
		if err != nil {
			return err
		}
		var report services.SyncReport
		_, err = guard.Do(ctx, "sync", cabinet, func(ctx context.Context, _ string) (services.BatchSummary, error) {
			var runErr error
			report, runErr = svc.Run(ctx, cabinet, api)
			return report.BatchSummary, runErr
		})
		if err != nil {
			logger.Error("sync failed", zap.String("cabinet", cabinet), zap.Error(err))
			failed = append(failed, cabinet)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
		}
		reports = append(reports, report)
	}

	if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("sync failed for %s", strings.Join(failed, ", "))
	}
	return nil
}
