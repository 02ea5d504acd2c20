package presence

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RunSweeper drives the eviction sweep on a fixed cadence until ctx is
// cancelled. It blocks; callers run it on its own goroutine. The sweep is
// the system's only autonomous action and never blocks request handling.
func RunSweeper(ctx context.Context, svc *Service, interval, threshold time.Duration, log *logrus.Entry) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithFields(logrus.Fields{
		"interval":  interval,
		"threshold": threshold,
	}).Info("presence sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info("presence sweeper stopped")
			return
		case <-ticker.C:
			evicted, err := svc.EvictStale(ctx, time.Now(), threshold)
			if err != nil {
				log.WithError(err).Error("presence sweep failed")
				continue
			}
			if evicted > 0 {
				log.WithField("evicted", evicted).Info("presence sweep removed stale participants")
			}
		}
	}
}
