// Package schedule runs a backup job on a cron schedule inside one process.
//
// It is an alternative to a system crontab entry. Runs never overlap: a
// tick that arrives while the previous run is still going is skipped.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Func is the work done on every tick.
type Func func(ctx context.Context)

// Scheduler fires a Func on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	fn       Func
	log      *zap.Logger

	mu  sync.Mutex
	ctx context.Context
	id  cron.EntryID
}

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	log      *zap.Logger
	location *time.Location
}

// WithLogger sets the logger; zap.NewNop() if unset.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithLocation sets the time zone the schedule is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// New parses a standard five-field cron expression (or a descriptor such as
// "@daily") and returns a Scheduler for fn.
func New(spec string, fn Func, opts ...Option) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return NewWithSchedule(sched, fn, opts...), nil
}

// NewWithSchedule returns a Scheduler driven by an arbitrary cron.Schedule.
func NewWithSchedule(sched cron.Schedule, fn Func, opts ...Option) *Scheduler {
	o := options{log: zap.NewNop(), location: time.Local}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	logger := cronLogger{log: o.log.Named("cron")}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(o.location),
			cron.WithLogger(logger),
			cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
		),
		schedule: sched,
		fn:       fn,
		log:      o.log,
	}
	s.id = s.cron.Schedule(sched, cron.FuncJob(s.tick))
	return s
}

// Next returns when the job fires next. It is zero until Run has started.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.id).Next
}

// Run starts the scheduler and blocks until ctx is canceled. It then waits
// for a run in progress to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("Scheduler started", zap.Time("next", s.Next()))

	<-ctx.Done()

	s.log.Info("Scheduler stopping; waiting for the current run")
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	// Stop() can race a tick that was already dispatched.
	if ctx.Err() != nil {
		return
	}
	s.fn(ctx)
	s.log.Info("Next run scheduled", zap.Time("next", s.schedule.Next(time.Now())))
}

// cronLogger adapts zap to cron.Logger. cron's routine chatter goes to debug.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.log.Sugar().Warnw("Previous run still in progress; skipping tick", keysAndValues...)
		return
	}
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
