package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-honoraires/internal/billing"
	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/matching"
	"github.com/diewo77/go-honoraires/internal/models"
)

// BillingAPI is the read side of the billing platform used by a sync.
type BillingAPI interface {
	Customers(ctx context.Context) ([]billing.Customer, error)
	Subscriptions(ctx context.Context) ([]billing.Subscription, error)
	SubscriptionLines(ctx context.Context, subscriptionID int64) ([]billing.Line, error)
}

// SyncOptions tunes a sync run.
type SyncOptions struct {
	// LinePause is the minimum delay between two line fetches.
	LinePause time.Duration
	// UpdateCabinet moves matched clients to the synced cabinet.
	UpdateCabinet bool
}

// SyncService mirrors a cabinet's customers and subscriptions into the
// local store.
type SyncService struct {
	db      *gorm.DB
	log     *zap.Logger
	matcher *matching.Matcher
	opts    SyncOptions
	now     func() time.Time
}

// NewSyncService creates a new SyncService.
func NewSyncService(db *gorm.DB, log *zap.Logger, opts SyncOptions) *SyncService {
	return &SyncService{db: db, log: nopIfNil(log), matcher: matching.New(), opts: opts, now: time.Now}
}

// CustomerRef identifies an external customer in a sync report.
type CustomerRef struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	RegistryNumber string `json:"registry_number,omitempty"`
}

// MatchedCustomer pairs an external customer with the client it resolved to.
type MatchedCustomer struct {
	Customer CustomerRef `json:"customer"`
	ClientID uint        `json:"client_id"`
	Strategy string      `json:"strategy"`
}

// SyncReport is the outcome of one cabinet sync. Customers without an
// active subscription are never matched and are listed apart from the
// unmatched ones.
type SyncReport struct {
	BatchSummary
	Cabinet             string            `json:"cabinet"`
	Matched             []MatchedCustomer `json:"matched"`
	Unmatched           []CustomerRef     `json:"unmatched"`
	WithoutSubscription []CustomerRef     `json:"without_subscription"`
	Subscriptions       int               `json:"subscriptions"`
	Lines               int               `json:"lines"`
}

// Run syncs one cabinet. An upstream failure stops the run and is returned
// with the partial report; what was persisted before stays.
func (s *SyncService) Run(ctx context.Context, cabinet string, api BillingAPI) (SyncReport, error) {
	report := SyncReport{Cabinet: cabinet}
	log := s.log.With(zap.String("cabinet", cabinet))

	customers, err := api.Customers(ctx)
	if err != nil {
		return report, err
	}
	subs, err := api.Subscriptions(ctx)
	if err != nil {
		return report, err
	}
	log.Info("fetched billing data", zap.Int("customers", len(customers)), zap.Int("subscriptions", len(subs)))

	subsByCustomer := make(map[int64][]billing.Subscription)
	for _, sub := range subs {
		subsByCustomer[sub.Customer.ID] = append(subsByCustomer[sub.Customer.ID], sub)
	}

	clients, err := localClients(s.db.WithContext(ctx))
	if err != nil {
		return report, err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.opts.LinePause > 0 {
		limiter = rate.NewLimiter(rate.Every(s.opts.LinePause), 1)
	}

	for _, cust := range customers {
		ref := customerRef(cust)
		if !hasActive(subsByCustomer[cust.ID]) {
			report.WithoutSubscription = append(report.WithoutSubscription, ref)
			continue
		}

		res, err := s.matcher.Match(toExternal(cust), clients)
		if errors.Is(err, matching.ErrNoMatchFound) {
			report.Unmatched = append(report.Unmatched, ref)
			report.fail(KindNoMatch, customerKey(cust), err)
			log.Debug("customer unmatched", zap.Int64("customer_id", cust.ID), zap.String("name", cust.Name))
			continue
		}

		if err := s.link(ctx, res.Client.ID, cust, cabinet); err != nil {
			report.fail(KindPersistence, customerKey(cust), err)
			log.Warn("could not link client", zap.Uint("client_id", res.Client.ID), zap.Error(err))
			continue
		}
		report.Matched = append(report.Matched, MatchedCustomer{Customer: ref, ClientID: res.Client.ID, Strategy: res.Strategy})

		failed := false
		for _, sub := range subsByCustomer[cust.ID] {
			if err := limiter.Wait(ctx); err != nil {
				return report, fmt.Errorf("%w: %v", billing.ErrUpstreamAPI, err)
			}
			lines, err := api.SubscriptionLines(ctx, sub.ID)
			if err != nil {
				return report, err
			}
			if err := s.saveSubscription(ctx, res.Client.ID, cabinet, sub, lines); err != nil {
				failed = true
				report.fail(KindPersistence, "subscription:"+strconv.FormatInt(sub.ID, 10), err)
				log.Warn("could not save subscription",
					zap.Int64("subscription_id", sub.ID), zap.Uint("client_id", res.Client.ID), zap.Error(err))
				continue
			}
			report.Subscriptions++
			report.Lines += len(lines)
		}
		if !failed {
			report.succeed()
		}
	}

	log.Info("sync finished",
		zap.Int("matched", len(report.Matched)), zap.Int("unmatched", len(report.Unmatched)),
		zap.Int("without_subscription", len(report.WithoutSubscription)), zap.Int("failed", report.Failed))
	return report, nil
}

func (s *SyncService) link(ctx context.Context, clientID uint, cust billing.Customer, cabinet string) error {
	var c models.Client
	if err := s.db.WithContext(ctx).First(&c, clientID).Error; err != nil {
		return persistErr(err)
	}
	c.Link(linkRef(cust), cust.ID, s.now())
	if s.opts.UpdateCabinet && cabinet != "" {
		c.Cabinet = cabinet
	}
	if err := s.db.WithContext(ctx).Save(&c).Error; err != nil {
		return persistErr(err)
	}
	return nil
}

// saveSubscription upserts the subscription and replaces all its lines in one
// transaction.
func (s *SyncService) saveSubscription(ctx context.Context, clientID uint, cabinet string, sub billing.Subscription, lines []billing.Line) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.Subscription{
			ExternalID: sub.ID,
			ClientID:   clientID,
			Cabinet:    cabinet,
			Label:      sub.Label,
			Status:     fees.SubscriptionStatus(strings.ToLower(sub.Status)),
			Frequency:  frequency(sub.RecurringRule.RuleType),
			Interval:   max(sub.RecurringRule.Interval, 1),
			BillingDay: sub.RecurringRule.DayOfMonth,
			TotalHT:    sub.AmountHT.Round(2),
			TotalTTC:   sub.AmountTTC.Round(2),
			TotalVAT:   sub.Tax.Round(2),
			SyncedAt:   s.now(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"client_id", "cabinet", "label", "status", "frequency", "interval",
				"billing_day", "total_ht", "total_ttc", "total_vat", "synced_at", "updated_at",
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		var stored models.Subscription
		if err := tx.Where("external_id = ?", sub.ID).First(&stored).Error; err != nil {
			return err
		}
		if err := tx.Where("subscription_id = ?", stored.ID).Delete(&models.InvoiceLine{}).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		rows := make([]models.InvoiceLine, 0, len(lines))
		for i, l := range lines {
			rows = append(rows, models.InvoiceLine{
				SubscriptionID: stored.ID,
				ExternalID:     l.ID,
				Label:          l.Label,
				Family:         l.Family,
				Description:    l.Description,
				Quantity:       l.Quantity,
				UnitPrice:      l.UnitPrice.Round(2),
				AmountHT:       l.AmountHT.Round(2),
				AmountTTC:      l.AmountTTC.Round(2),
				Position:       i,
			})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return persistErr(err)
	}
	return nil
}

func hasActive(subs []billing.Subscription) bool {
	for _, s := range subs {
		if fees.SubscriptionStatus(strings.ToLower(s.Status)).Active() {
			return true
		}
	}
	return false
}

func frequency(ruleType string) fees.Frequency {
	if strings.EqualFold(ruleType, string(fees.FrequencyYearly)) {
		return fees.FrequencyYearly
	}
	return fees.FrequencyMonthly
}

// linkRef is the value stored in the client linkage field: the platform's
// stable reference, or the numeric id when it has none.
func linkRef(c billing.Customer) string {
	if c.ExternalReference != "" {
		return c.ExternalReference
	}
	return strconv.FormatInt(c.ID, 10)
}

func toExternal(c billing.Customer) matching.ExternalCustomer {
	return matching.ExternalCustomer{
		ID:             c.ID,
		Reference:      linkRef(c),
		Name:           c.Name,
		RegistryNumber: c.RegNo,
		VATNumber:      c.VATNumber,
		Emails:         c.Emails,
	}
}

func customerRef(c billing.Customer) CustomerRef {
	return CustomerRef{ID: c.ID, Name: c.Name, RegistryNumber: c.RegNo}
}

func customerKey(c billing.Customer) string {
	return "customer:" + strconv.FormatInt(c.ID, 10)
}
