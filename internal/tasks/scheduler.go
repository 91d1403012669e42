package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/polychrome/internal/shared"
)

// DefaultSweepInterval matches cache.sweep_interval in the default config.
const DefaultSweepInterval = 5 * time.Minute

// SweepResult counts what one sweep removed.
type SweepResult struct {
	Responses int       `json:"responses"`
	Streams   int       `json:"streams"`
	At        time.Time `json:"at"`
}

// Scheduler periodically sweeps expired cache entries.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	clock    clock.Clock
	logger   *log.Logger

	mu     sync.Mutex
	last   SweepResult
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a Scheduler that sweeps every interval (5m when zero).
func NewScheduler(sweeper Sweeper, interval time.Duration, clk clock.Clock, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		clock:    clk,
		logger:   shared.WithLogger(logger, "component", "scheduler"),
	}
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce(ctx context.Context) SweepResult {
	responses, streams := s.sweeper.Sweep(ctx)
	res := SweepResult{Responses: responses, Streams: streams, At: s.clock.Now()}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	if responses > 0 || streams > 0 {
		s.logger.Info("cache sweep", "responses", responses, "streams", streams)
	} else {
		s.logger.Debug("cache sweep found nothing to remove")
	}
	return res
}

// LastSweep returns the result of the most recent sweep, zero before the first.
func (s *Scheduler) LastSweep() SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Start launches the sweep loop. Calling Start on a running Scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop ends the loop started by Start and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
