// Package sweeper runs the idle-conversation sweep on a schedule.
//
// Conversations never expire on their own; the sweeper periodically
// asks the engine to abandon threads that have gone quiet for longer
// than the configured idle threshold. Schedules accept standard
// 5-field cron expressions and descriptors like "@every 10m".
//
//	sw, err := sweeper.New(eng, sweeper.WithSchedule("@every 5m"))
//	if err != nil { ... }
//	sw.Start(ctx)
//	defer sw.Stop(ctx)
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Engine is the part of the conversation engine the sweeper drives.
// *engine.Engine satisfies this interface via SweepIdle.
type Engine interface {
	SweepIdle(ctx context.Context) (int, error)
}

// DefaultSchedule is used when no schedule is configured.
const DefaultSchedule = "@every 10m"

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithSchedule sets the sweep schedule. Standard 5-field cron
// expressions and descriptors like "@every 30s" are accepted.
func WithSchedule(expr string) Option {
	return func(s *Sweeper) { s.expr = expr }
}

// WithLogger sets a custom logger for the sweeper.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a sweep schedule expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Sweeper fires Engine.SweepIdle on a schedule until stopped.
type Sweeper struct {
	engine   Engine
	expr     string
	schedule cronlib.Schedule
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Sweeper. The schedule expression is validated up front.
func New(eng Engine, opts ...Option) (*Sweeper, error) {
	s := &Sweeper{
		engine: eng,
		expr:   DefaultSchedule,
		logger: slog.Default(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	sched, err := ParseSchedule(s.expr)
	if err != nil {
		return nil, fmt.Errorf("chatflow/sweeper: parse schedule %q: %w", s.expr, err)
	}
	s.schedule = sched
	return s, nil
}

// Start launches the sweep goroutine.
func (s *Sweeper) Start(_ context.Context) error {
	s.wg.Add(1)
	go s.loop()
	s.logger.Info("idle sweeper started", slog.String("schedule", s.expr))
	return nil
}

// Stop signals the sweeper to stop and waits for the goroutine to finish.
func (s *Sweeper) Stop(_ context.Context) error {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("idle sweeper stopped")
	return nil
}

// loop sleeps until the next scheduled fire time and sweeps.
func (s *Sweeper) loop() {
	defer s.wg.Done()

	for {
		now := time.Now()
		timer := time.NewTimer(s.schedule.Next(now).Sub(now))

		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx := context.Background()

	swept, err := s.engine.SweepIdle(ctx)
	if err != nil {
		s.logger.Error("idle sweep error",
			slog.Int("swept", swept),
			slog.String("error", err.Error()),
		)
		return
	}
	if swept > 0 {
		s.logger.Info("idle sweep", slog.Int("swept", swept))
	}
}
