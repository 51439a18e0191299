package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"
)

// StartCronJob runs job on every tick of cronExpr until ctx is cancelled.
// Runs never overlap; a tick that arrives while job is still running is skipped.
func StartCronJob(ctx context.Context, name, cronExpr string, job func(context.Context) error) error {
	if !gronx.IsValid(cronExpr) {
		return fmt.Errorf("job %s: invalid cron expression %q", name, cronExpr)
	}
	log := Logger.With(zap.String("job", name), zap.String("cron", cronExpr))
	log.Info("cron job scheduled")

	go func() {
		for {
			next, err := gronx.NextTickAfter(cronExpr, time.Now(), false)
			if err != nil {
				log.Error("next tick failed", zap.Error(err))
				if !sleepCtx(ctx, 30*time.Second) {
					return
				}
				continue
			}
			if !sleepCtx(ctx, time.Until(next)) {
				log.Info("cron job stopping")
				return
			}
			start := time.Now()
			if err := job(ctx); err != nil {
				log.Error("cron job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
				continue
			}
			log.Debug("cron job finished", zap.Duration("took", time.Since(start)))
		}
	}()
	return nil
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
