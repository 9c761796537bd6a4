package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/rotorscope/internal/node"
	"github.com/roman-kulish/rotorscope/internal/telemetry"
)

const (
	DefaultSweepInterval   = 100 * time.Millisecond
	DefaultMonitorInterval = 50 * time.Millisecond
	DefaultMonitorSamples  = 200
)

var (
	// ErrAlreadyRunning is returned by Run when the worker is already started
	ErrAlreadyRunning = errors.New("scheduler is already running")

	// ErrNotRunning is returned by control calls once the worker has stopped
	ErrNotRunning = errors.New("scheduler is not running")

	// ErrNotMonitoring is returned by SetFrequency outside monitor mode
	ErrNotMonitoring = errors.New("not monitoring")
)

// WithLogger sets the logger for the scheduler
func WithLogger(logger *slog.Logger) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.logger = logger.With(slog.String("component", "acquisition"))
	}
}

// WithSweepInterval sets the delay between two sweep ticks
func WithSweepInterval(d time.Duration) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.sweepInterval = d
	}
}

// WithMonitorInterval sets the delay between two monitor ticks
func WithMonitorInterval(d time.Duration) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.monitorInterval = d
	}
}

// WithMonitorSamples sets the capacity of the monitor traces
func WithMonitorSamples(n int) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.monitorSamples = n
	}
}

// WithClock replaces the monotonic clock used for host time
func WithClock(now func() time.Time) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.now = now
	}
}

// command is a control request executed on the worker between ticks
type command struct {
	fn    func(ctx context.Context) error
	reply chan error
}

// Scheduler runs one acquisition session at a time on a single worker. Every
// device call and every series write happens on that worker; control calls
// are queued to it and never preempt a tick.
type Scheduler struct {
	dev      Device
	reporter telemetry.Reporter

	sweepInterval   time.Duration
	monitorInterval time.Duration
	monitorSamples  int
	now             func() time.Time

	isRunning atomic.Bool
	commands  chan command
	stopped   chan struct{}

	session session // owned by the worker
	current atomic.Pointer[View]

	logger *slog.Logger
}

// NewScheduler creates a new idle Scheduler with a discard logger
func NewScheduler(dev Device, reporter telemetry.Reporter, options ...func(s *Scheduler)) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Scheduler{
		dev:             dev,
		reporter:        reporter,
		sweepInterval:   DefaultSweepInterval,
		monitorInterval: DefaultMonitorInterval,
		monitorSamples:  DefaultMonitorSamples,
		now:             time.Now,
		commands:        make(chan command),
		stopped:         make(chan struct{}),
		logger:          logger,
	}

	for _, option := range options {
		option(&s)
	}

	s.current.Store(&View{State: Idle})
	return &s
}

// Run executes the worker until ctx is cancelled. The first tick of every
// session runs immediately; the next one is scheduled a fixed delay after
// the previous one completed.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.isRunning.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.stopped)

	s.logger.Info("acquisition worker started")

	var (
		timer  *time.Timer
		tickCh <-chan time.Time
	)
	schedule := func(d time.Duration) {
		if timer != nil {
			timer.Stop()
		}
		if s.session == nil {
			timer, tickCh = nil, nil
			return
		}
		timer = time.NewTimer(d)
		tickCh = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.replace(nil)
			s.logger.Info("acquisition worker stopped")
			return nil

		case cmd := <-s.commands:
			prev := s.session
			cmd.reply <- cmd.fn(ctx)
			if s.session != prev {
				schedule(0)
			}

		case <-tickCh:
			s.runTick(ctx)
			schedule(s.session.interval())
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	err := s.session.tick(ctx)
	if err == nil {
		return
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return // interrupted, nothing was committed
	}

	s.logger.Warn(fmt.Sprintf("tick failed: %s", err.Error()), slog.String("session", s.session.id()))
	s.reporter.ReportError(s.session.id(), err.Error())
}

// StartSweep replaces the current session with a sweep across band
func (s *Scheduler) StartSweep(ctx context.Context, band Band) error {
	if err := band.Validate(); err != nil {
		return err
	}

	return s.submit(ctx, func(context.Context) error {
		ss, err := newSweepSession(s, band)
		if err != nil {
			return err
		}

		s.replace(ss)
		s.logger.Info("sweep started", slog.String("session", ss.sessionID), slog.String("band", band.String()))
		return nil
	})
}

// StartMonitor replaces the current session with monitoring at the device's
// frequency. A non-zero frequency inside band is tuned first. The frequency
// the device reports is published once before the first tick.
func (s *Scheduler) StartMonitor(ctx context.Context, band Band, frequency int) error {
	if err := band.Validate(); err != nil {
		return err
	}
	if frequency != 0 && !band.Contains(frequency) {
		return node.NewConfigError(fmt.Sprintf("frequency %d MHz outside band %s", frequency, band))
	}

	return s.submit(ctx, func(ctx context.Context) error {
		ms, err := newMonitorSession(s, band)
		if err != nil {
			return err
		}

		s.replace(ms)
		s.logger.Info("monitor started", slog.String("session", ms.sessionID), slog.String("band", band.String()))

		if frequency != 0 {
			if err := s.dev.SetFrequency(ctx, frequency); err != nil {
				s.reportFailure(ms.sessionID, fmt.Errorf("tuning to %d MHz: %w", frequency, err))
			}
		}

		f, err := s.dev.GetFrequency(ctx)
		if err != nil {
			s.reportFailure(ms.sessionID, fmt.Errorf("reading frequency: %w", err))
			return nil
		}

		ms.frequency = f
		s.current.Store(ms.view())
		s.reporter.Report(&telemetry.Telemetry{
			SessionID: ms.sessionID,
			Mode:      telemetry.ModeMonitor,
			Timestamp: s.now(),
			Frequency: f,
		})
		return nil
	})
}

// SetFrequency tunes the device while monitoring. Both traces are cleared
// and the periodic task keeps running. The command is not acknowledged by
// the device; a later read confirms it.
func (s *Scheduler) SetFrequency(ctx context.Context, frequency int) error {
	return s.submit(ctx, func(ctx context.Context) error {
		ms, ok := s.session.(*monitorSession)
		if !ok {
			return ErrNotMonitoring
		}
		if !ms.band.Contains(frequency) {
			return node.NewConfigError(fmt.Sprintf("frequency %d MHz outside band %s", frequency, ms.band))
		}

		ms.retune(frequency)
		s.current.Store(ms.view())

		if err := s.dev.SetFrequency(ctx, frequency); err != nil {
			return fmt.Errorf("tuning to %d MHz: %w", frequency, err)
		}

		s.logger.Info("frequency changed", slog.String("session", ms.sessionID), slog.Int("frequency", frequency))
		return nil
	})
}

// Stop ends the current session and leaves the scheduler idle
func (s *Scheduler) Stop(ctx context.Context) error {
	return s.submit(ctx, func(context.Context) error {
		s.replace(nil)
		return nil
	})
}

// State returns the current mode
func (s *Scheduler) State() State {
	return s.current.Load().State
}

// View returns the current session snapshot
func (s *Scheduler) View() *View {
	return s.current.Load()
}

// replace swaps the session and publishes its view. Runs on the worker.
func (s *Scheduler) replace(next session) {
	if s.session != nil {
		s.logger.Info("session ended", slog.String("session", s.session.id()))
	}

	s.session = next
	if next == nil {
		s.current.Store(&View{State: Idle})
		return
	}
	s.current.Store(next.view())
}

func (s *Scheduler) reportFailure(sessionID string, err error) {
	s.logger.Warn(err.Error(), slog.String("session", sessionID))
	s.reporter.ReportError(sessionID, err.Error())
}

// submit queues fn on the worker and waits for its result
func (s *Scheduler) submit(ctx context.Context, fn func(ctx context.Context) error) error {
	reply := make(chan error, 1)

	select {
	case s.commands <- command{fn: fn, reply: reply}:
	case <-s.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
