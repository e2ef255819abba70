package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/matching"
	"github.com/diewo77/go-honoraires/internal/models"
)

var (
	// ErrPersistence marks a single record write that failed.
	ErrPersistence = errors.New("persistence_failure")
	// ErrRunInProgress is returned when a run of the same kind is running.
	ErrRunInProgress = errors.New("run_in_progress")
	// ErrClientNotFound is returned for unknown or deleted clients.
	ErrClientNotFound = errors.New("client_not_found")
)

// Item error kinds.
const (
	KindNoMatch     = "no_match"
	KindPersistence = "persistence"
	KindUpstream    = "upstream"
)

// ItemError is one failed item of a batch.
type ItemError struct {
	Kind    string `json:"kind"`
	Ref     string `json:"ref"`
	Message string `json:"message"`
}

// BatchSummary is returned by every batch operation. A partial failure is
// reported here, never as the operation's error.
type BatchSummary struct {
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors"`
}

func (b *BatchSummary) succeed() {
	b.Processed++
	b.Succeeded++
}

func (b *BatchSummary) fail(kind, ref string, err error) {
	b.Processed++
	b.Failed++
	b.Errors = append(b.Errors, ItemError{Kind: kind, Ref: ref, Message: err.Error()})
}

func persistErr(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// localClients loads the matching view of every live client.
func localClients(db *gorm.DB) ([]matching.LocalClient, error) {
	var clients []models.Client
	if err := db.Order("id").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	out := make([]matching.LocalClient, 0, len(clients))
	for _, c := range clients {
		out = append(out, toLocalClient(c))
	}
	return out, nil
}

func toLocalClient(c models.Client) matching.LocalClient {
	reg := c.SIREN
	if reg == "" {
		reg = c.SIRET
	}
	return matching.LocalClient{
		ID:             c.ID,
		Name:           c.Name,
		Cabinet:        c.Cabinet,
		RegistryNumber: reg,
		ExternalRef:    c.ExternalRef,
	}
}
