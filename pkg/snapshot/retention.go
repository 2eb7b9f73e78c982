package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"opschat/pkg/logger"
)

// StartRetention starts a cron-scheduled prune of aged message tails and
// returns a cancel func. An empty cron expression defaults to daily at
// 02:00.
func (s *Store) StartRetention(ctx context.Context, cronExpr string, maxAge time.Duration) (context.CancelFunc, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive")
	}
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cronExpr)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "max_age", maxAge.String())
	ctx2, cancel := context.WithCancel(ctx)
	go s.runRetention(ctx2, cronExpr, maxAge)
	return cancel, nil
}

// runRetention computes the next tick for the configured cron expression
// with gronx and sleeps until that time.
func (s *Store) runRetention(ctx context.Context, cronExpr string, maxAge time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_stopping")
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
		case <-ctx.Done():
			logger.Info("retention_stopping")
			return
		}

		n, err := s.PruneOlderThan(time.Now().Add(-maxAge))
		if err != nil {
			logger.Error("retention_prune_failed", "error", err)
			continue
		}
		logger.Info("retention_pruned", "removed", n)
	}
}
