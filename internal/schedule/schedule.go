// Package schedule runs jobs on cron expressions, one run at a time.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron scheduler. A run that is still going when its
// next tick fires makes that tick a no-op.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
	ctx  context.Context
}

// New creates a scheduler logging through log.
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	l := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		log: log,
		ctx: context.Background(),
	}
}

// Add registers job under name on spec, a standard five-field cron
// expression or a descriptor such as "@every 15m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddJob(spec, s.wrap(name, job))
	if err != nil {
		return fmt.Errorf("schedule %s on %q: %w", name, spec, err)
	}
	s.log.Info("job scheduled", "job", name, "schedule", spec)
	return nil
}

func (s *Scheduler) wrap(name string, job Job) cron.Job {
	return cron.FuncJob(func() {
		start := time.Now()
		s.log.Info("running job", "job", name)
		if err := job(s.ctx); err != nil {
			s.log.Error("job failed", "job", name, "error", err, "duration", time.Since(start).String())
			return
		}
		s.log.Info("job finished", "job", name, "duration", time.Since(start).String())
	})
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits
// for a running job to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()

	s.log.Info("stopping scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
