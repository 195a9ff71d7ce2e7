package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/metrics"
)

const defaultSessionStaleAfter = 24 * time.Hour

type sessionSweeper interface {
	CleanupStaleSessions(ctx context.Context, olderThan time.Duration) (int, error)
}

// CheckoutSessionCleanupJobParams configure the stale-session sweep.
type CheckoutSessionCleanupJobParams struct {
	Logger     *logger.Logger
	Checkout   sessionSweeper
	Metrics    *metrics.CronJobMetrics
	StaleAfter time.Duration
}

// NewCheckoutSessionCleanupJob builds the job that removes abandoned
// checkout sessions.
func NewCheckoutSessionCleanupJob(params CheckoutSessionCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Checkout == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultSessionStaleAfter
	}
	return &checkoutSessionCleanupJob{
		logg:       params.Logger,
		checkout:   params.Checkout,
		metrics:    params.Metrics,
		staleAfter: staleAfter,
	}, nil
}

type checkoutSessionCleanupJob struct {
	logg       *logger.Logger
	checkout   sessionSweeper
	metrics    *metrics.CronJobMetrics
	staleAfter time.Duration
}

func (j *checkoutSessionCleanupJob) Name() string { return "checkout-session-cleanup" }

func (j *checkoutSessionCleanupJob) Run(ctx context.Context) error {
	deleted, err := j.checkout.CleanupStaleSessions(ctx, j.staleAfter)
	if j.metrics != nil && deleted > 0 {
		j.metrics.AddSwept(j.Name(), deleted)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale_after":      j.staleAfter.String(),
		"sessions_deleted": deleted,
	})
	if err != nil {
		return fmt.Errorf("checkout session cleanup: %w", err)
	}
	j.logg.Info(logCtx, "checkout session cleanup complete")
	return nil
}
