package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/cinema-ticketing/internal/logger"
)

type fakeExpirer struct {
	calls atomic.Int32
	n     int
	err   error
}

func (f *fakeExpirer) ExpireOverdueHolds(context.Context) (int, error) {
	f.calls.Add(1)
	return f.n, f.err
}

func TestRunOnce(t *testing.T) {
	f := &fakeExpirer{n: 3}
	j := NewHoldExpirationJob(f, time.Second, logger.Discard())

	assert.Equal(t, 3, j.RunOnce(context.Background()))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestRunOnce_ErrorIsSwallowed(t *testing.T) {
	f := &fakeExpirer{err: errors.New("db down")}
	j := NewHoldExpirationJob(f, time.Second, logger.Discard())

	assert.Equal(t, 0, j.RunOnce(context.Background()))
}

func TestStart_SweepsUntilStopped(t *testing.T) {
	f := &fakeExpirer{}
	j := NewHoldExpirationJob(f, 10*time.Millisecond, logger.Discard())

	j.Start(context.Background())
	assert.Eventually(t, func() bool { return f.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	j.Stop()
	j.Stop()

	after := f.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, f.calls.Load())
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	f := &fakeExpirer{}
	j := NewHoldExpirationJob(f, 10*time.Millisecond, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	j.Start(ctx)
	assert.Eventually(t, func() bool { return f.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	j.Stop()
}
