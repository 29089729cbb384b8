package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	runs    atomic.Int32
	running atomic.Int32
	overlap atomic.Bool
	hold    time.Duration
}

func (s *countingSweeper) RunSettlementSweep(ctx context.Context) []string {
	if s.running.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.running.Add(-1)
	s.runs.Add(1)

	select {
	case <-time.After(s.hold):
	case <-ctx.Done():
	}
	return []string{}
}

func TestNew_InvalidSchedule(t *testing.T) {
	t.Parallel()
	_, err := New(&countingSweeper{}, "every now and then", time.Second)
	require.Error(t, err)
}

func TestScheduler_RunsWithoutOverlap(t *testing.T) {
	t.Parallel()
	sw := &countingSweeper{hold: 1500 * time.Millisecond}
	s, err := New(sw, "@every 1s", 5*time.Second)
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return sw.runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	// a second tick lands while the first sweep still holds
	time.Sleep(1200 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(stopCtx)

	require.False(t, sw.overlap.Load())
}

func TestScheduler_StopCancelsLongSweep(t *testing.T) {
	t.Parallel()
	sw := &countingSweeper{hold: time.Hour}
	s, err := New(sw, "@every 1s", 0)
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return sw.running.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Stop(stopCtx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	require.Equal(t, int32(0), sw.running.Load())
}

func TestScheduler_SweepTimeout(t *testing.T) {
	t.Parallel()
	sw := &countingSweeper{hold: time.Hour}
	s, err := New(sw, "@every 1h", 10*time.Millisecond)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.runOnce()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep ignored its timeout")
	}
	s.Stop(context.Background())
}
