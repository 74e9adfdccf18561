// Package schedule runs scan cycles on cron expressions.
package schedule

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"go-openclaw-scanner/internal/ports"
)

// Expressions take five fields, an optional leading seconds field, or a
// descriptor such as "@hourly" or "@every 30m".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether expr is a schedule the scheduler accepts.
func Validate(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Scheduler wraps robfig/cron. Entries are added and removed while it runs.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu      sync.Mutex
	started bool
}

func New(logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Schedule registers fn under expr and starts the cron loop on first use.
func (s *Scheduler) Schedule(expr string, fn func()) (ports.Trigger, error) {
	id, err := s.cron.AddFunc(expr, fn)
	if err != nil {
		return nil, fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.mu.Lock()
	if !s.started {
		s.cron.Start()
		s.started = true
		s.logger.Info().Msg("⏰ Cron started")
	}
	s.mu.Unlock()

	s.logger.Debug().Str("schedule", expr).Time("next", s.cron.Entry(id).Next).Msg("Schedule registered")
	return &trigger{cron: s.cron, id: id}, nil
}

// Stop halts the cron loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info().Msg("Cron stopped")
}

type trigger struct {
	cron *cron.Cron
	id   cron.EntryID
	once sync.Once
}

func (t *trigger) Stop() {
	t.once.Do(func() { t.cron.Remove(t.id) })
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
