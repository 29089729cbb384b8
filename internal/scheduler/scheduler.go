package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/philippspitzley/auctioneer/utils"
)

// Sweeper is the job the scheduler runs on every tick
type Sweeper interface {
	RunSettlementSweep(ctx context.Context) []string
}

// Scheduler runs the settlement sweep on a cron schedule. A tick that fires while
// the previous sweep is still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New registers the sweep under schedule (standard cron syntax or descriptors such as "@every 15m")
func New(sweeper Sweeper, schedule string, timeout time.Duration) (*Scheduler, error) {
	logger := cron.VerbosePrintfLogger(logrus.StandardLogger())
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    c,
		sweeper: sweeper,
		timeout: timeout,
		baseCtx: ctx,
		cancel:  cancel,
	}

	if _, err := c.AddFunc(schedule, s.runOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	ctx := s.baseCtx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	settled := s.sweeper.RunSettlementSweep(ctx)
	utils.Debug("Scheduled sweep completed", map[string]any{
		"settled":  len(settled),
		"duration": time.Since(start).String(),
	})
}

func (s *Scheduler) Start() {
	utils.Info("Scheduler started", map[string]any{"jobs": len(s.cron.Entries())})
	s.cron.Start()
}

// Stop prevents new ticks and waits for a running sweep until ctx expires,
// at which point the sweep's context is cancelled.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.cancel()
		<-done.Done()
	}
	s.cancel()
	utils.Info("Scheduler stopped", nil)
}
