package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/models"
	"github.com/diewo77/go-honoraires/internal/pricing"
)

// SimulationService runs fee increase simulations over the active portfolio.
type SimulationService struct {
	db         *gorm.DB
	log        *zap.Logger
	classifier *fees.Classifier
}

// NewSimulationService creates a new SimulationService.
func NewSimulationService(db *gorm.DB, log *zap.Logger, classifier *fees.Classifier) *SimulationService {
	return &SimulationService{db: db, log: nopIfNil(log), classifier: classifier}
}

// SimulationResult holds the per-client results and their summary.
type SimulationResult struct {
	Clients []pricing.ClientResult `json:"clients"`
	Summary pricing.Summary        `json:"summary"`
}

// Run simulates params over every active line. Clients flagged excluded in
// the store, plus the extra ids, get no increase.
func (s *SimulationService) Run(ctx context.Context, params pricing.Parameters, extraExcluded []uint) (SimulationResult, error) {
	lines, err := LoadLines(ctx, s.db, LineFilter{ActiveOnly: true})
	if err != nil {
		return SimulationResult{}, err
	}

	excluded := make(map[uint]bool)
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Client{}).Where("excluded = ?", true).Pluck("id", &ids).Error; err != nil {
		return SimulationResult{}, fmt.Errorf("load excluded clients: %w", err)
	}
	for _, id := range append(ids, extraExcluded...) {
		excluded[id] = true
	}

	usage, err := UsageByClient(ctx, s.db)
	if err != nil {
		return SimulationResult{}, err
	}

	results := pricing.ComputeGlobal(s.classifier.ClassifyAll(lines), params, excluded, usage)
	summary := pricing.Summarize(results)
	s.log.Info("simulation computed",
		zap.Int("clients", summary.Clients), zap.Int("excluded", summary.Excluded),
		zap.String("old", summary.Global.Old.StringFixed(2)), zap.String("new", summary.Global.New.StringFixed(2)))
	return SimulationResult{Clients: results, Summary: summary}, nil
}

// SaveTariffs stores the simulated unit prices as reference tariffs, one per
// client and axe. The line with the largest quantity sets the axe price.
// Excluded clients are skipped.
func (s *SimulationService) SaveTariffs(ctx context.Context, results []pricing.ClientResult, runID string) BatchSummary {
	var summary BatchSummary
	for _, r := range results {
		if r.Excluded {
			continue
		}
		refs := referencePrices(r.Lines)
		if len(refs) == 0 {
			continue
		}
		rows := make([]models.TariffReference, 0, len(refs))
		for _, axe := range fees.Axes() {
			if price, ok := refs[axe]; ok {
				rows = append(rows, models.TariffReference{ClientID: r.ClientID, Axe: axe, UnitPrice: price, RunID: runID})
			}
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "axe"}},
			DoUpdates: clause.AssignmentColumns([]string{"unit_price", "run_id", "updated_at"}),
		}).Create(&rows).Error
		if err != nil {
			summary.fail(KindPersistence, clientKey(r.ClientID), persistErr(err))
			s.log.Warn("could not save tariffs", zap.Uint("client_id", r.ClientID), zap.Error(err))
			continue
		}
		summary.succeed()
	}
	return summary
}

func referencePrices(lines []pricing.LineResult) map[fees.Axe]decimal.Decimal {
	out := make(map[fees.Axe]decimal.Decimal)
	qty := make(map[fees.Axe]decimal.Decimal)
	for _, l := range lines {
		axe := l.Line.Axe
		if axe == fees.Unclassified {
			continue
		}
		q := l.Line.BilledQuantity()
		if best, seen := qty[axe]; seen && !q.GreaterThan(best) {
			continue
		}
		qty[axe] = q
		out[axe] = l.NewUnitPrice
	}
	return out
}

// UsageByClient averages the stored production records per client.
func UsageByClient(ctx context.Context, db *gorm.DB) (map[uint]pricing.MonthlyUsage, error) {
	var rows []struct {
		ClientID  uint
		Periods   int64
		Bulletins int64
		Entries   int64
		Exits     int64
	}
	err := db.WithContext(ctx).Model(&models.ProductionRecord{}).
		Select("client_id, COUNT(*) AS periods, SUM(bulletins) AS bulletins, SUM(entries) AS entries, SUM(exits) AS exits").
		Group("client_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load production usage: %w", err)
	}
	out := make(map[uint]pricing.MonthlyUsage, len(rows))
	for _, r := range rows {
		if r.Periods == 0 {
			continue
		}
		n := decimal.NewFromInt(r.Periods)
		out[r.ClientID] = pricing.MonthlyUsage{
			Bulletins: decimal.NewFromInt(r.Bulletins).DivRound(n, 2),
			Entries:   decimal.NewFromInt(r.Entries).DivRound(n, 2),
			Exits:     decimal.NewFromInt(r.Exits).DivRound(n, 2),
		}
	}
	return out, nil
}

func clientKey(id uint) string {
	return "client:" + strconv.FormatUint(uint64(id), 10)
}
