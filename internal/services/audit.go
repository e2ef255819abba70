package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/diagnostics"
	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/models"
)

// AuditService runs the anomaly scan over the stored lines.
type AuditService struct {
	db         *gorm.DB
	log        *zap.Logger
	classifier *fees.Classifier
	opts       diagnostics.Options
}

// NewAuditService creates a new AuditService.
func NewAuditService(db *gorm.DB, log *zap.Logger, classifier *fees.Classifier) *AuditService {
	opts := diagnostics.DefaultOptions()
	opts.BulletinThreshold = classifier.BulletinThreshold
	return &AuditService{db: db, log: nopIfNil(log), classifier: classifier, opts: opts}
}

// Run audits the stored lines matching filter. Only active subscriptions
// are inspected by the audit itself.
func (s *AuditService) Run(ctx context.Context, filter LineFilter) (diagnostics.Report, error) {
	lines, err := LoadLines(ctx, s.db, filter)
	if err != nil {
		return diagnostics.Report{}, err
	}
	report := diagnostics.Audit(s.classifier.ClassifyAll(lines), s.opts)
	s.log.Info("audit finished",
		zap.Int("lines", len(lines)),
		zap.Int("errors", report.Counts[diagnostics.SeverityError]),
		zap.Int("warnings", report.Counts[diagnostics.SeverityWarning]),
		zap.Int("infos", report.Counts[diagnostics.SeverityInfo]))
	return report, nil
}

// AnnotateSocialModes stores the detected social billing mode on every
// client with active lines.
func (s *AuditService) AnnotateSocialModes(ctx context.Context) (BatchSummary, error) {
	var summary BatchSummary
	lines, err := LoadLines(ctx, s.db, LineFilter{ActiveOnly: true})
	if err != nil {
		return summary, err
	}
	var order []uint
	byClient := make(map[uint][]fees.Line)
	for _, l := range lines {
		if _, seen := byClient[l.ClientID]; !seen {
			order = append(order, l.ClientID)
		}
		byClient[l.ClientID] = append(byClient[l.ClientID], l)
	}
	for _, id := range order {
		mode := s.classifier.DetectSocialMode(byClient[id])
		err := s.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).
			Update("social_billing_mode", mode).Error
		if err != nil {
			summary.fail(KindPersistence, clientKey(id), persistErr(err))
			continue
		}
		summary.succeed()
	}
	return summary, nil
}
