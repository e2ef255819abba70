package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/models"
	"github.com/diewo77/go-honoraires/internal/restructure"
)

// RestructureService plans the fixed/variable split from the stored lines.
type RestructureService struct {
	db         *gorm.DB
	log        *zap.Logger
	classifier *fees.Classifier
}

// NewRestructureService creates a new RestructureService.
func NewRestructureService(db *gorm.DB, log *zap.Logger, classifier *fees.Classifier) *RestructureService {
	return &RestructureService{db: db, log: nopIfNil(log), classifier: classifier}
}

// Plan builds the restructuring plan of one client, using its saved tariff
// references when present.
func (s *RestructureService) Plan(ctx context.Context, clientID uint) (restructure.ClientPlan, error) {
	var c models.Client
	if err := s.db.WithContext(ctx).First(&c, clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return restructure.ClientPlan{}, fmt.Errorf("client %d: %w", clientID, ErrClientNotFound)
		}
		return restructure.ClientPlan{}, err
	}
	lines, err := LoadLines(ctx, s.db, LineFilter{ClientID: clientID, ActiveOnly: true})
	if err != nil {
		return restructure.ClientPlan{}, err
	}
	refs, err := s.references(ctx, clientID)
	if err != nil {
		return restructure.ClientPlan{}, err
	}
	return restructure.Plan(planClient(c), s.classifier.ClassifyClient(lines), refs), nil
}

// PlanAll plans every client with at least one active subscription, ordered
// by client id.
func (s *RestructureService) PlanAll(ctx context.Context) ([]restructure.ClientPlan, error) {
	lines, err := LoadLines(ctx, s.db, LineFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	var order []uint
	byClient := make(map[uint][]fees.Line)
	for _, l := range lines {
		if _, seen := byClient[l.ClientID]; !seen {
			order = append(order, l.ClientID)
		}
		byClient[l.ClientID] = append(byClient[l.ClientID], l)
	}

	var tariffs []models.TariffReference
	if err := s.db.WithContext(ctx).Find(&tariffs).Error; err != nil {
		return nil, fmt.Errorf("load tariff references: %w", err)
	}
	refs := make(map[uint]restructure.References)
	for _, t := range tariffs {
		if refs[t.ClientID] == nil {
			refs[t.ClientID] = restructure.References{}
		}
		refs[t.ClientID][t.Axe] = t.UnitPrice
	}

	plans := make([]restructure.ClientPlan, 0, len(order))
	for _, id := range order {
		ls := byClient[id]
		client := restructure.Client{ID: id, Name: ls[0].ClientName, Cabinet: ls[0].Cabinet}
		plans = append(plans, restructure.Plan(client, s.classifier.ClassifyClient(ls), refs[id]))
	}
	s.log.Info("restructuring planned", zap.Int("clients", len(plans)))
	return plans, nil
}

func (s *RestructureService) references(ctx context.Context, clientID uint) (restructure.References, error) {
	var tariffs []models.TariffReference
	if err := s.db.WithContext(ctx).Where("client_id = ?", clientID).Find(&tariffs).Error; err != nil {
		return nil, fmt.Errorf("load tariff references: %w", err)
	}
	refs := make(restructure.References, len(tariffs))
	for _, t := range tariffs {
		refs[t.Axe] = t.UnitPrice
	}
	return refs, nil
}

func planClient(c models.Client) restructure.Client {
	return restructure.Client{ID: c.ID, Name: c.Name, Cabinet: c.Cabinet}
}
