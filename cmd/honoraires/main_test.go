package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diewo77/go-honoraires/internal/billing"
	"github.com/diewo77/go-honoraires/internal/config"
	"github.com/diewo77/go-honoraires/internal/db"
	"github.com/diewo77/go-honoraires/internal/models"
	"github.com/diewo77/go-honoraires/internal/services"
)

type stubAPI struct{}

func (stubAPI) Customers(context.Context) ([]billing.Customer, error) {
	return []billing.Customer{{ID: 7, Name: "Mixte SAS", ExternalReference: "C-7"}}, nil
}

func (stubAPI) Subscriptions(context.Context) ([]billing.Subscription, error) {
	return []billing.Subscription{{
		ID: 70, Label: "Mission", Status: "in_progress",
		Customer:      billing.CustomerRef{ID: 7},
		RecurringRule: billing.RecurringRule{RuleType: "monthly", Interval: 1},
	}}, nil
}

func (stubAPI) SubscriptionLines(context.Context, int64) ([]billing.Line, error) {
	line := func(id int64, label, family string, qty, unit int64) billing.Line {
		q, u := decimal.NewFromInt(qty), decimal.NewFromInt(unit)
		return billing.Line{ID: id, Label: label, Family: family, Quantity: q, UnitPrice: u, AmountHT: q.Mul(u)}
	}
	return []billing.Line{
		line(1, "Mission comptable mensuelle", "comptabilite", 1, 200),
		line(2, "Forfait social", "social", 1, 150),
		line(3, "Bulletin de salaire", "social", 10, 20),
	}, nil
}

func setupCLI(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	pretty = false
	cfg = &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", Path: "file:" + t.Name() + "?mode=memory&cache=shared"},
		App:      config.AppConfig{Migrations: true},
		Billing: config.BillingConfig{
			BaseURL:  "http://billing.test",
			Cabinets: []string{"paris"},
			Tokens:   map[string]string{"paris": "tok"},
		},
		Engine: config.EngineConfig{BulletinThreshold: decimal.NewFromInt(30), ProductionHeaderRow: 1, RunStaleAfter: time.Hour},
	}
	prev := newBillingAPI
	newBillingAPI = func(string) (services.BillingAPI, error) { return stubAPI{}, nil }
	t.Cleanup(func() {
		newBillingAPI = prev
		cfg = nil
		clientFilter, cabinetFilter, annotate = 0, "", false
		paramsFile, excludeIDs, saveTariffs = "", nil, false
	})

	conn, err := openDB()
	require.NoError(t, err)
	require.NoError(t, conn.Create(&models.Client{Name: "Mixte"}).Error)
}

func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, fn(cmd, args))
	return buf.Bytes()
}

func TestMigrateCmd(t *testing.T) {
	setupCLI(t)
	seedCabinets = true
	defer func() { seedCabinets = false }()
	run(t, runMigrate)

	conn, err := db.Open(cfg.Database, nil)
	require.NoError(t, err)
	var n int64
	require.NoError(t, conn.Model(&models.Cabinet{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestSyncThenReports(t *testing.T) {
	setupCLI(t)

	var reports []services.SyncReport
	require.NoError(t, json.Unmarshal(run(t, runSync), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "paris", reports[0].Cabinet)
	assert.Len(t, reports[0].Matched, 1)
	assert.Equal(t, 3, reports[0].Lines)

	annotate = true
	out := run(t, runAudit)
	assert.Contains(t, string(out), `"social_conflict"`)

	dir := t.TempDir()
	paramsFile = filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(paramsFile, []byte("axes:\n  compta_mensuelle: {active: true, value: 10}\n"), 0o644))
	saveTariffs = true
	var sim struct {
		RunID string                `json:"run_id"`
		Saved services.BatchSummary `json:"saved"`
	}
	require.NoError(t, json.Unmarshal(run(t, runSimulate), &sim))
	assert.NotEmpty(t, sim.RunID)
	assert.Equal(t, 1, sim.Saved.Succeeded)

	var plans []json.RawMessage
	require.NoError(t, json.Unmarshal(run(t, runRestructure), &plans))
	assert.Len(t, plans, 1)
}

func TestSyncRequiresCabinet(t *testing.T) {
	setupCLI(t)
	cfg.Billing.Cabinets = nil
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, runSync(cmd, nil))
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", " 2 ", ""})
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids)

	_, err = parseIDs([]string{"x"})
	assert.Error(t, err)
}

func TestUnlockCmd(t *testing.T) {
	setupCLI(t)
	conn, err := openDB()
	require.NoError(t, err)
	_, err = runGuard(conn).Start(context.Background(), "sync", "paris")
	require.NoError(t, err)

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	assert.EqualError(t, runSync(cmd, nil), "sync failed for paris")

	out := run(t, runUnlock, "sync")
	assert.Equal(t, "1 run(s) released\n", string(out))
	run(t, runSync)
}
