// api/scheduler/job.go
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/propsync/keyway/api/config"
	logger "github.com/propsync/keyway/api/logging"
)

// StartRenewalJob runs the sweep on the configured interval until ctx is
// cancelled. Each tick gets its own timeout so a stuck vendor call cannot
// wedge the schedule.
func StartRenewalJob(ctx context.Context, sweeper *Sweeper) {
	if !config.GetBool("renewal.jobEnabled") {
		logger.Info("Renewal job disabled by configuration")
		return
	}

	interval := config.GetDuration("renewal.jobInterval")
	if interval == 0 {
		interval = time.Hour
	}
	tickTimeout := config.GetDuration("renewal.jobTimeout")
	if tickTimeout == 0 {
		tickTimeout = 10 * time.Minute
	}

	logger.Info("Renewal job started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Renewal job stopped")
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
			if _, err := sweeper.Sweep(tickCtx, time.Now()); err != nil {
				logger.Error("Renewal sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}
