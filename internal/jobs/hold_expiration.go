// Package jobs runs background maintenance next to the HTTP server.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HoldExpirer is the operation the sweep runs on every tick.
type HoldExpirer interface {
	ExpireOverdueHolds(ctx context.Context) (int, error)
}

// HoldExpirationJob periodically expires overdue seat holds so seats come
// back to AVAILABLE even when no request touches their showtime.
type HoldExpirationJob struct {
	expirer  HoldExpirer
	interval time.Duration
	log      *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewHoldExpirationJob creates a job sweeping every interval.
func NewHoldExpirationJob(expirer HoldExpirer, interval time.Duration, log *slog.Logger) *HoldExpirationJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &HoldExpirationJob{
		expirer:  expirer,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval until Stop
// is called or ctx is done. Sweeps never overlap.
func (j *HoldExpirationJob) Start(ctx context.Context) {
	j.log.Info("starting hold expiration job", "interval", j.interval.String())
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.RunOnce(ctx)
		for {
			select {
			case <-ticker.C:
				j.RunOnce(ctx)
			case <-ctx.Done():
				j.log.Info("hold expiration job stopped")
				return
			case <-j.done:
				j.log.Info("hold expiration job stopped")
				return
			}
		}
	}()
}

// Stop ends the loop and waits for a running sweep to finish.
func (j *HoldExpirationJob) Stop() {
	j.stopOnce.Do(func() { close(j.done) })
	j.wg.Wait()
}

// RunOnce performs a single sweep and returns the number of holds it
// expired. Failures are logged; the next tick tries again.
func (j *HoldExpirationJob) RunOnce(ctx context.Context) int {
	n, err := j.expirer.ExpireOverdueHolds(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.log.Error("failed to expire holds", "error", err)
		}
		return 0
	}
	if n > 0 {
		j.log.Info("expired overdue holds", "count", n)
	} else {
		j.log.Debug("no overdue holds")
	}
	return n
}
