// Package cron runs the node's background jobs on robfig/cron schedules:
// deposit verification, due draws, payouts, refunds, payout reconciliation
// and the stats cache refresh.
package cron

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/solraffle/raffle-node/raffleNode/lock"
	"github.com/solraffle/raffle-node/raffleNode/metrics"
)

// RunFunc performs one run of a job and returns how many items it handled.
type RunFunc func(ctx context.Context) (int, error)

type job struct {
	name    string
	spec    string
	run     RunFunc
	running atomic.Bool
}

// Scheduler owns the cron instance and the registered jobs. Each run holds
// a "job:<name>" lock so only one replica executes it when the locker is
// shared.
type Scheduler struct {
	cron    *cron.Cron
	locker  lock.Locker
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	started bool
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler whose runs are bounded by timeout.
func NewScheduler(locker lock.Locker, timeout time.Duration, logger zerolog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	log := logger.With().Str("component", "cron").Logger()
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{log})),
		),
		locker:  locker,
		timeout: timeout,
		logger:  log,
		jobs:    make(map[string]*job),
		baseCtx: context.Background(),
	}
}

// Register adds a job. An empty spec registers the job for RunNow only.
func (s *Scheduler) Register(name, spec string, fn RunFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}

	j := &job{name: name, spec: spec, run: fn}
	if spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.execute(s.context(), j) }); err != nil {
			return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
		}
	}
	s.jobs[name] = j
	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// Start begins running scheduled jobs until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.cron.Start()

	names := make([]string, 0, len(s.jobs))
	for name, j := range s.jobs {
		if j.spec != "" {
			names = append(names, name+"="+j.spec)
		}
	}
	s.logger.Info().Strs("jobs", names).Msg("scheduler started")
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunNow executes a registered job immediately in the caller's goroutine.
// It reports false when the job is unknown or already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) (int, bool, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return 0, false, nil
	}
	return s.execute(ctx, j)
}

func (s *Scheduler) execute(parent context.Context, j *job) (int, bool, error) {
	if !j.running.CompareAndSwap(false, true) {
		s.logger.Debug().Str("job", j.name).Msg("previous run still in progress, skipping")
		return 0, false, nil
	}
	defer j.running.Store(false)

	release, ok := lock.TryAcquire(s.locker, "job:"+j.name, s.timeout)
	if !ok {
		s.logger.Debug().Str("job", j.name).Msg("job held by another replica, skipping")
		return 0, false, nil
	}
	defer release()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.run(ctx)
	elapsed := time.Since(start)
	metrics.RecordJob(j.name, err == nil, elapsed)

	if err != nil {
		s.logger.Error().Err(err).Str("job", j.name).Dur("elapsed", elapsed).Msg("job failed")
		return n, true, err
	}
	if n > 0 {
		s.logger.Info().Str("job", j.name).Int("items", n).Dur("elapsed", elapsed).Msg("job finished")
	} else {
		s.logger.Debug().Str("job", j.name).Dur("elapsed", elapsed).Msg("job finished, nothing to do")
	}
	return n, true, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
