package cron

import (
	"context"
	"fmt"

	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/metrics"
)

type cartSweeper interface {
	CleanupExpiredCarts(ctx context.Context) (int, error)
}

// CartCleanupJobParams configure the expired-cart sweep.
type CartCleanupJobParams struct {
	Logger  *logger.Logger
	Carts   cartSweeper
	Metrics *metrics.CronJobMetrics
}

// NewCartCleanupJob builds the job that removes expired carts.
func NewCartCleanupJob(params CartCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	return &cartCleanupJob{
		logg:    params.Logger,
		carts:   params.Carts,
		metrics: params.Metrics,
	}, nil
}

type cartCleanupJob struct {
	logg    *logger.Logger
	carts   cartSweeper
	metrics *metrics.CronJobMetrics
}

func (j *cartCleanupJob) Name() string { return "cart-cleanup" }

// Run sweeps expired carts. The sweep itself continues past individual
// cart failures, so a non-nil error here still reports the carts removed.
func (j *cartCleanupJob) Run(ctx context.Context) error {
	deleted, err := j.carts.CleanupExpiredCarts(ctx)
	if j.metrics != nil && deleted > 0 {
		j.metrics.AddSwept(j.Name(), deleted)
	}
	logCtx := j.logg.WithField(ctx, "carts_deleted", deleted)
	if err != nil {
		return fmt.Errorf("cart cleanup: %w", err)
	}
	j.logg.Info(logCtx, "cart cleanup complete")
	return nil
}
