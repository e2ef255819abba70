package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/models"
)

// DefaultRunStaleAfter is how long a run may stay running before it is taken
// for abandoned.
const DefaultRunStaleAfter = 6 * time.Hour

// RunGuard persists batch runs and keeps a single running run per kind.
type RunGuard struct {
	db         *gorm.DB
	log        *zap.Logger
	now        func() time.Time
	staleAfter time.Duration
}

// NewRunGuard creates a RunGuard with the default stale delay.
func NewRunGuard(db *gorm.DB, log *zap.Logger) *RunGuard {
	return &RunGuard{db: db, log: nopIfNil(log), now: time.Now, staleAfter: DefaultRunStaleAfter}
}

// WithStaleAfter sets the age past which a running run no longer blocks its
// kind. Non-positive values keep the default.
func (g *RunGuard) WithStaleAfter(d time.Duration) *RunGuard {
	if d > 0 {
		g.staleAfter = d
	}
	return g
}

// Start records a new running run, or fails with ErrRunInProgress. Runs of
// the same kind left running for longer than the stale delay are closed as
// failed first. The unique index on running runs settles concurrent starts.
func (g *RunGuard) Start(ctx context.Context, kind, scope string) (*models.Run, error) {
	now := g.now()
	run := &models.Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Scope:     scope,
		Status:    models.RunStatusRunning,
		StartedAt: now,
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cutoff := now.Add(-g.staleAfter)
		released, err := g.release(tx, kind, now, "abandoned", &cutoff)
		if err != nil {
			return err
		}
		if released > 0 {
			g.log.Warn("stale runs closed", zap.String("kind", kind), zap.Int64("count", released))
		}

		var running int64
		if err := tx.Model(&models.Run{}).
			Where("kind = ? AND status = ?", kind, models.RunStatusRunning).
			Count(&running).Error; err != nil {
			return err
		}
		if running > 0 {
			return fmt.Errorf("%s: %w", kind, ErrRunInProgress)
		}
		if err := tx.Create(run).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%s: %w", kind, ErrRunInProgress)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.log.Info("run started", zap.String("run_id", run.ID), zap.String("kind", kind), zap.String("scope", scope))
	return run, nil
}

// Release closes every running run of kind as failed, whatever its age. It
// returns the number of runs closed.
func (g *RunGuard) Release(ctx context.Context, kind string) (int64, error) {
	n, err := g.release(g.db.WithContext(ctx), kind, g.now(), "released", nil)
	if err != nil {
		return 0, persistErr(err)
	}
	g.log.Info("runs released", zap.String("kind", kind), zap.Int64("count", n))
	return n, nil
}

// release closes the running runs of kind, only those started before
// olderThan when it is set.
func (g *RunGuard) release(tx *gorm.DB, kind string, now time.Time, reason string, olderThan *time.Time) (int64, error) {
	b, err := json.Marshal([]ItemError{{Kind: "run", Ref: kind, Message: reason}})
	if err != nil {
		return 0, err
	}
	q := tx.Model(&models.Run{}).Where("kind = ? AND status = ?", kind, models.RunStatusRunning)
	if olderThan != nil {
		q = q.Where("started_at < ?", *olderThan)
	}
	res := q.Updates(map[string]any{
			"status":      models.RunStatusFailed,
			"finished_at": now,
			"errors":      string(b),
		})
	return res.RowsAffected, res.Error
}

// Finish closes run with the batch outcome. A non-nil runErr marks it failed.
func (g *RunGuard) Finish(ctx context.Context, run *models.Run, summary BatchSummary, runErr error) error {
	now := g.now()
	run.FinishedAt = &now
	run.Processed = summary.Processed
	run.Succeeded = summary.Succeeded
	run.Failed = summary.Failed
	run.Status = models.RunStatusSucceeded
	errs := summary.Errors
	if runErr != nil {
		run.Status = models.RunStatusFailed
		errs = append(errs, ItemError{Kind: "run", Ref: run.Kind, Message: runErr.Error()})
	}
	if len(errs) > 0 {
		b, err := json.Marshal(errs)
		if err != nil {
			return err
		}
		run.Errors = string(b)
	}
	if err := g.db.WithContext(ctx).Save(run).Error; err != nil {
		return persistErr(err)
	}
	g.log.Info("run finished",
		zap.String("run_id", run.ID), zap.String("status", string(run.Status)),
		zap.Int("processed", run.Processed), zap.Int("failed", run.Failed), zap.Duration("duration", run.Duration()))
	return nil
}

// Do wraps fn between Start and Finish.
func (g *RunGuard) Do(ctx context.Context, kind, scope string, fn func(ctx context.Context, runID string) (BatchSummary, error)) (BatchSummary, error) {
	run, err := g.Start(ctx, kind, scope)
	if err != nil {
		return BatchSummary{}, err
	}
	summary, runErr := fn(ctx, run.ID)
	if err := g.Finish(context.WithoutCancel(ctx), run, summary, runErr); err != nil {
		g.log.Error("could not record run outcome", zap.String("run_id", run.ID), zap.Error(err))
	}
	return summary, runErr
}

// Last returns the most recent run of kind.
func (g *RunGuard) Last(ctx context.Context, kind string) (*models.Run, error) {
	var run models.Run
	err := g.db.WithContext(ctx).Where("kind = ?", kind).Order("started_at DESC").First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}
