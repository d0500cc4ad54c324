package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job prunes read notifications past their retention window. Purchases,
// download tokens and the download audit trail are never pruned; they are
// the billing record.
type Job struct {
	notifications notificationCleaner
	interval      time.Duration
	retention     time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

type notificationCleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	Interval              time.Duration
	NotificationRetention time.Duration
}

func NewJob(notifications notificationCleaner, logger *zap.Logger, cfg Config) *Job {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.NotificationRetention <= 0 {
		cfg.NotificationRetention = 90 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		notifications: notifications,
		interval:      cfg.Interval,
		retention:     cfg.NotificationRetention,
		now:           time.Now,
		logger:        logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.notifications == nil {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	rows, err := j.notifications.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup stale notifications: %w", err)
	}
	if rows > 0 {
		j.logger.Info("cleanup stale notifications completed", zap.Int64("deleted", rows))
	}

	return nil
}

func (j *Job) RunPeriodic(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("cleanup run failed", zap.Error(err))
			}
		}
	}
}
