package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type chatTokenCleaner interface {
	DeactivateExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type purchaseCleaner interface {
	CancelStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job sweeps access state that expired on its own: chat tokens past their
// window and checkout attempts the gateway will never confirm.
type Job struct {
	tokens           chatTokenCleaner
	purchases        purchaseCleaner
	pendingRetention time.Duration
	now              func() time.Time
	logger           *zap.Logger
}

func New(tokens chatTokenCleaner, purchases purchaseCleaner, pendingRetention time.Duration, logger *zap.Logger) *Job {
	if pendingRetention <= 0 {
		pendingRetention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		tokens:           tokens,
		purchases:        purchases,
		pendingRetention: pendingRetention,
		now:              time.Now,
		logger:           logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	now := j.now()

	if j.tokens != nil {
		deactivated, err := j.tokens.DeactivateExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("deactivate expired chat tokens: %w", err)
		}
		if deactivated > 0 {
			j.logger.Info("expired chat tokens deactivated", zap.Int64("count", deactivated))
		}
	}

	if j.purchases != nil {
		canceled, err := j.purchases.CancelStalePending(ctx, now.Add(-j.pendingRetention))
		if err != nil {
			return fmt.Errorf("cancel stale pending purchases: %w", err)
		}
		if canceled > 0 {
			j.logger.Info("stale pending purchases canceled", zap.Int64("count", canceled))
		}
	}

	return nil
}
