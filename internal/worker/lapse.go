package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Lapser rejects Pending appointments whose preferred date has passed.
type Lapser interface {
	LapsePastPending(ctx context.Context, today time.Time) (int, error)
}

// RunLapseLoop runs once immediately, then every interval until ctx ends.
func RunLapseLoop(ctx context.Context, svc Lapser, interval time.Duration, now func() time.Time, logger *zap.Logger) {
	RunOnce(ctx, svc, now, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping lapse loop")
			return
		case <-ticker.C:
			RunOnce(ctx, svc, now, logger)
		}
	}
}

func RunOnce(ctx context.Context, svc Lapser, now func() time.Time, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.LapsePastPending(runCtx, now())
	if err != nil {
		logger.Error("lapse run failed", zap.Error(err))
		return
	}
	logger.Info("lapse run complete",
		zap.Int("lapsed", n),
		zap.Duration("took", time.Since(start)),
	)
}
