package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/models"
)

// LineFilter narrows LoadLines.
type LineFilter struct {
	ClientID   uint
	Cabinet    string
	ActiveOnly bool
}

// LoadLines flattens stored subscriptions and their lines into fees.Line,
// ordered by client, subscription and position. Lines of deleted clients are
// left out. The cabinet filter matches the subscription's or the client's.
func LoadLines(ctx context.Context, db *gorm.DB, f LineFilter) ([]fees.Line, error) {
	q := db.WithContext(ctx).
		Preload("Client").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") })
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Cabinet != "" {
		q = q.Where("cabinet = ? OR client_id IN (?)", f.Cabinet,
			db.Model(&models.Client{}).Select("id").Where("cabinet = ?", f.Cabinet))
	}
	if f.ActiveOnly {
		q = q.Where("status IN ?", []string{string(fees.StatusNotStarted), string(fees.StatusInProgress)})
	}

	var subs []models.Subscription
	if err := q.Order("client_id, id").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}

	var out []fees.Line
	for _, s := range subs {
		if s.Client == nil {
			continue
		}
		cabinet := s.Client.Cabinet
		if cabinet == "" {
			cabinet = s.Cabinet
		}
		for _, l := range s.Lines {
			out = append(out, fees.Line{
				ID:                 l.ID,
				Label:              l.Label,
				Family:             fees.ParseFamily(l.Family),
				Description:        l.Description,
				Quantity:           l.Quantity,
				UnitPrice:          l.UnitPrice,
				AmountHT:           l.AmountHT,
				AmountTTC:          l.AmountTTC,
				SubscriptionID:     s.ID,
				SubscriptionLabel:  s.Label,
				SubscriptionStatus: s.Status,
				Frequency:          s.Frequency,
				Interval:           s.Interval,
				ClientID:           s.Client.ID,
				ClientName:         s.Client.Name,
				Cabinet:            cabinet,
			})
		}
	}
	return out, nil
}
