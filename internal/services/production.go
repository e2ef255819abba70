package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-honoraires/internal/matching"
	"github.com/diewo77/go-honoraires/internal/models"
	"github.com/diewo77/go-honoraires/internal/production"
)

// ProductionService imports the payroll production exports.
type ProductionService struct {
	db      *gorm.DB
	log     *zap.Logger
	matcher *matching.Matcher
	layout  production.Layout
}

// NewProductionService creates a new ProductionService reading layout.
func NewProductionService(db *gorm.DB, log *zap.Logger, layout production.Layout) *ProductionService {
	return &ProductionService{db: db, log: nopIfNil(log), matcher: matching.New(), layout: layout}
}

// ImportReport is the outcome of one production import.
type ImportReport struct {
	BatchSummary
	Period    string           `json:"period"`
	Records   int              `json:"records"`
	Unmatched []production.Row `json:"unmatched"`
}

// Import reads a production workbook for period (YYYY-MM) and upserts one
// record per client. Rows are resolved to clients by SIREN first, then by
// name. Rows resolving to the same client are summed.
func (s *ProductionService) Import(ctx context.Context, r io.Reader, period, source string) (ImportReport, error) {
	period, err := models.ParsePeriod(period)
	if err != nil {
		return ImportReport{}, err
	}
	report := ImportReport{Period: period}

	rows, err := production.Parse(r, s.layout)
	if err != nil {
		return report, err
	}
	clients, err := localClients(s.db.WithContext(ctx))
	if err != nil {
		return report, err
	}

	var order []uint
	records := make(map[uint]*models.ProductionRecord)
	rowsOf := make(map[uint]int)
	for _, row := range rows {
		res, err := s.matcher.Match(matching.ExternalCustomer{Name: row.Name, RegistryNumber: row.RegistryNumber}, clients)
		if errors.Is(err, matching.ErrNoMatchFound) {
			report.Unmatched = append(report.Unmatched, row)
			report.fail(KindNoMatch, "line:"+strconv.Itoa(row.Line), fmt.Errorf("%s: %w", row.Name, err))
			continue
		}
		id := res.Client.ID
		rec, ok := records[id]
		if !ok {
			rec = &models.ProductionRecord{ClientID: id, Period: period, SourceFile: source}
			records[id] = rec
			order = append(order, id)
		}
		rec.Bulletins += row.Bulletins
		rec.Entries += row.Entries
		rec.Exits += row.Exits
		rowsOf[id]++
	}

	for _, id := range order {
		rec := records[id]
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "period"}},
			DoUpdates: clause.AssignmentColumns([]string{"bulletins", "entries", "exits", "source_file", "updated_at"}),
		}).Create(rec).Error
		if err != nil {
			for i := 0; i < rowsOf[id]; i++ {
				report.fail(KindPersistence, clientKey(id), persistErr(err))
			}
			s.log.Warn("could not save production record", zap.Uint("client_id", id), zap.Error(err))
			continue
		}
		report.Records++
		for i := 0; i < rowsOf[id]; i++ {
			report.succeed()
		}
	}

	s.log.Info("production imported",
		zap.String("period", period), zap.Int("rows", len(rows)),
		zap.Int("records", report.Records), zap.Int("unmatched", len(report.Unmatched)))
	return report, nil
}

// Records returns the stored production of one client, oldest first.
func (s *ProductionService) Records(ctx context.Context, clientID uint) ([]models.ProductionRecord, error) {
	var recs []models.ProductionRecord
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).Order("period").Find(&recs).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return recs, nil
}
