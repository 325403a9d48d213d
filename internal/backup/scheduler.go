package backup

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/config"
)

// Scheduler takes periodic snapshots until its context ends.
type Scheduler struct {
	m      *Manager
	cfg    config.BackupConfig
	logger *zap.Logger
}

func NewScheduler(m *Manager, cfg config.BackupConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{m: m, cfg: cfg, logger: logger.Named("backup-scheduler")}
}

// Run blocks until ctx is done. It returns nil on cancellation. The interval
// ticker starts together with the startup timer, so a long startup delay
// never postpones the periodic snapshots.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("scheduled backups disabled")
		return nil
	}

	var startup, tick <-chan time.Time
	if s.cfg.OnStartup {
		timer := time.NewTimer(s.cfg.StartupDelay)
		defer timer.Stop()
		startup = timer.C
	}
	if s.cfg.Interval > 0 {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
		s.logger.Info("scheduled backups started", zap.Duration("interval", s.cfg.Interval))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-startup:
			startup = nil
			s.fire(ctx, "startup")
		case <-tick:
			s.fire(ctx, "scheduled")
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, reason string) {
	_, err := s.m.TryCreate(ctx, reason)
	switch {
	case err == nil:
	case errors.Is(err, ErrBusy):
		s.logger.Warn("skipping snapshot; another backup or restore is running", zap.String("reason", reason))
	case ctx.Err() != nil:
	default:
		s.logger.Error("scheduled snapshot failed", zap.String("reason", reason), zap.Error(err))
	}
}
