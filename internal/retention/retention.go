package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatline/pkg/config"
	"chatline/pkg/logger"
	"chatline/pkg/store"
)

// Start launches the history-retention scheduler when enabled.
// Conversations older than the configured period are purged on each
// cron tick. Returns a cancel func.
func Start(ctx context.Context, ret config.RetentionConfig) (context.CancelFunc, error) {
	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	period, err := time.ParseDuration(ret.Period)
	if err != nil || period <= 0 {
		return nil, fmt.Errorf("invalid retention period: %q", ret.Period)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", ret.Period)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, period)
	return cancel, nil
}

// RunOnce purges messages persisted before now minus period.
func RunOnce(period time.Duration) error {
	cutoff := time.Now().UTC().Add(-period).UnixNano()
	n, err := store.PurgeMessagesBefore(cutoff)
	if err != nil {
		return err
	}
	logger.Info("retention_run_done", "purged", n, "cutoff", cutoff)
	return nil
}

// runScheduler sleeps until each next cron tick and triggers a run.
func runScheduler(ctx context.Context, cronExpr string, period time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(period); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}
