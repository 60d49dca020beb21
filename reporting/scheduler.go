package reporting

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

type (
	// SchedulerOption configures a Scheduler
	SchedulerOption func(*Scheduler)

	// Scheduler runs a job once per interval until its context is cancelled
	Scheduler struct {
		runs      int64
		interval  time.Duration
		job       func()
		log       *log.Logger
		immediate bool
	}
)

// WithImmediate runs the job once as soon as the Scheduler starts
func WithImmediate() SchedulerOption {
	return func(s *Scheduler) {
		s.immediate = true
	}
}

// NewScheduler creates a Scheduler which calls job every interval
func NewScheduler(interval time.Duration, job func(), logger *log.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		interval: interval,
		job:      job,
		log:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Runs returns how many times the job has completed
func (s *Scheduler) Runs() int64 {
	return atomic.LoadInt64(&s.runs)
}

// Run blocks, firing the job each interval. The next firing is scheduled
// for interval after the previous job returns. Run returns ctx.Err() once
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.log.WithFields(log.Fields{
		"interval":  s.interval.String(),
		"immediate": s.immediate,
	}).Debug("Scheduler started")

	if s.immediate {
		s.fire()
	}

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.WithField("runs", s.Runs()).Debug("Scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.fire()
			timer.Reset(s.interval)
		}
	}
}

func (s *Scheduler) fire() {
	start := time.Now()
	s.job()
	runs := atomic.AddInt64(&s.runs, 1)
	s.log.WithFields(log.Fields{
		"run":     runs,
		"elapsed": time.Since(start).String(),
	}).Debug("Scheduled job finished")
}
