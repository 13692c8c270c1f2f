package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tradingmodels/internal/logger"
)

// Job is one unit of scheduled work
type Job func(ctx context.Context) error

// Scheduler manages the cron entries of a serving process
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	log  *logger.Logger

	mu   sync.Mutex
	jobs map[string]Job
}

// New creates a scheduler whose jobs run with ctx. Overlapping runs of the
// same entry are skipped.
func New(ctx context.Context, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:  ctx,
		log:  log,
		jobs: make(map[string]Job),
	}
}

// Every registers job to run at a fixed interval (at least one second)
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("register %s: interval must be positive", name)
	}
	return s.Add(name, fmt.Sprintf("@every %s", interval), job)
}

// Add registers job under a standard five-field cron spec or descriptor
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("register %s: job already exists", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	s.jobs[name] = job
	return nil
}

// RunNow executes a registered job immediately on the caller's goroutine
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return job(s.ctx)
}

// Len returns the number of registered jobs
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("jobs", s.Len()))
}

// Stop stops the cron loop and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(name string, job Job) {
	if s.ctx.Err() != nil {
		return
	}
	started := time.Now()
	if err := job(s.ctx); err != nil {
		s.log.Error("scheduled job failed",
			logger.String("job", name),
			logger.Error(err),
		)
		return
	}
	s.log.Debug("scheduled job finished",
		logger.String("job", name),
		logger.Duration("duration_ms", time.Since(started)),
	)
}
