package acquisition

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roman-kulish/rotorscope/internal/series"
	"github.com/roman-kulish/rotorscope/internal/telemetry"
)

// session is one acquisition run. It is owned by the scheduler worker and
// replaced wholesale on every mode or band change.
type session interface {
	id() string
	interval() time.Duration
	tick(ctx context.Context) error
	view() *View
}

// sweepSession cycles the device across the band, one grid point per tick
type sweepSession struct {
	sessionID string
	band      Band
	every     time.Duration
	start     time.Time

	live *series.FixedSeries
	min  *series.FixedSeries
	max  *series.FixedSeries

	dev      Device
	reporter telemetry.Reporter
	now      func() time.Time
}

func newSweepSession(s *Scheduler, band Band) (*sweepSession, error) {
	live, err := series.NewFixedSeries("Live", band.Low, band.Step, band.Len())
	if err != nil {
		return nil, err
	}
	lo, err := series.NewFixedSeries("Min", band.Low, band.Step, band.Len())
	if err != nil {
		return nil, err
	}
	hi, err := series.NewFixedSeries("Max", band.Low, band.Step, band.Len())
	if err != nil {
		return nil, err
	}

	return &sweepSession{
		sessionID: uuid.NewString(),
		band:      band,
		every:     s.sweepInterval,
		start:     s.now(),
		live:      live,
		min:       lo,
		max:       hi,
		dev:       s.dev,
		reporter:  s.reporter,
		now:       s.now,
	}, nil
}

func (ss *sweepSession) id() string              { return ss.sessionID }
func (ss *sweepSession) interval() time.Duration { return ss.every }

func (ss *sweepSession) view() *View {
	return &View{
		SessionID: ss.sessionID,
		State:     Sweeping,
		Band:      ss.band,
		Live:      ss.live,
		Min:       ss.min,
		Max:       ss.max,
	}
}

func (ss *sweepSession) tick(ctx context.Context) error {
	f, err := ss.dev.GetFrequency(ctx)
	if err != nil {
		return fmt.Errorf("reading frequency: %w", err)
	}

	stats, err := ss.dev.ReadStats(ctx, ss.now().Sub(ss.start).Milliseconds())
	if err != nil {
		return fmt.Errorf("reading stats at %d MHz: %w", f, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if ss.band.OnGrid(f) {
		ss.commit(f, stats.RSSI)
	}

	next := ss.band.Next(f)
	setErr := ss.dev.SetFrequency(ctx, next)

	rssi := stats.RSSI
	ss.reporter.Report(&telemetry.Telemetry{
		SessionID:     ss.sessionID,
		Mode:          telemetry.ModeSweep,
		Timestamp:     ss.now(),
		Frequency:     f,
		RSSI:          &rssi,
		NextFrequency: &next,
	})

	if setErr != nil {
		return fmt.Errorf("tuning to %d MHz: %w", next, setErr)
	}
	return nil
}

// commit writes rssi into the live, min and max bins of f. f is on the grid.
func (ss *sweepSession) commit(f, rssi int) {
	_ = ss.live.Set(f, rssi)

	if v, ok, _ := ss.min.At(f); ok {
		_ = ss.min.Set(f, min(v, rssi))
	} else {
		_ = ss.min.Set(f, rssi)
	}

	if v, ok, _ := ss.max.At(f); ok {
		_ = ss.max.Set(f, max(v, rssi))
	} else {
		_ = ss.max.Set(f, rssi)
	}
}

// monitorSession polls the device at its current frequency
type monitorSession struct {
	sessionID string
	band      Band
	every     time.Duration
	window    int64 // ms
	start     time.Time
	frequency int

	trace   *series.RingSeries
	history *series.RingSeries

	dev      Device
	reporter telemetry.Reporter
	now      func() time.Time
}

func newMonitorSession(s *Scheduler, band Band) (*monitorSession, error) {
	trace, err := series.NewRingSeries("Live", s.monitorSamples)
	if err != nil {
		return nil, err
	}
	history, err := series.NewRingSeries("History", s.monitorSamples)
	if err != nil {
		return nil, err
	}

	return &monitorSession{
		sessionID: uuid.NewString(),
		band:      band,
		every:     s.monitorInterval,
		window:    int64(s.monitorSamples) * s.monitorInterval.Milliseconds(),
		start:     s.now(),
		trace:     trace,
		history:   history,
		dev:       s.dev,
		reporter:  s.reporter,
		now:       s.now,
	}, nil
}

func (ms *monitorSession) id() string              { return ms.sessionID }
func (ms *monitorSession) interval() time.Duration { return ms.every }

func (ms *monitorSession) view() *View {
	return &View{
		SessionID: ms.sessionID,
		State:     Monitoring,
		Band:      ms.band,
		Frequency: ms.frequency,
		Window:    ms.window,
		Trace:     ms.trace,
		History:   ms.history,
	}
}

func (ms *monitorSession) tick(ctx context.Context) error {
	stats, err := ms.dev.ReadStats(ctx, ms.now().Sub(ms.start).Milliseconds())
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	ts := stats.Timestamp
	ms.trace.Add(ts, stats.RSSI)

	if stats.HistoryRSSI != 0 {
		ms.history.Add(ts-int64(stats.MsSinceHistoryStart), stats.HistoryRSSI)
		if stats.MsSinceHistoryStart != stats.MsSinceHistoryEnd {
			ms.history.Add(ts-int64(stats.MsSinceHistoryEnd), stats.HistoryRSSI)
		}
	}

	rssi := stats.RSSI
	ms.reporter.Report(&telemetry.Telemetry{
		SessionID: ms.sessionID,
		Mode:      telemetry.ModeMonitor,
		Timestamp: ms.now(),
		Frequency: ms.frequency,
		RSSI:      &rssi,
		Window:    &telemetry.Window{From: ts - ms.window, To: ts},
	})
	return nil
}

// retune clears both traces so samples from two frequencies are never mixed
func (ms *monitorSession) retune(f int) {
	ms.trace.Reset()
	ms.history.Reset()
	ms.frequency = f
}
