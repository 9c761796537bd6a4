package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/roman-kulish/rotorscope/internal/acquisition"
	"github.com/roman-kulish/rotorscope/internal/config"
	"github.com/roman-kulish/rotorscope/internal/telemetry"
)

// sampler is the part of the scheduler driven by the console
type sampler interface {
	StartSweep(ctx context.Context, band acquisition.Band) error
	StartMonitor(ctx context.Context, band acquisition.Band, frequency int) error
	SetFrequency(ctx context.Context, frequency int) error
	Stop(ctx context.Context) error
	View() *acquisition.View
}

// controller keeps the mode inputs (band, step, monitored frequency) and
// turns console commands into scheduler transitions
type controller struct {
	mu        sync.Mutex
	sampler   sampler
	recorder  *telemetry.Recorder
	sweep     config.SweepConfig
	frequency int // Tuned when monitoring starts, 0 keeps the device's
	out       io.Writer
}

func newController(s sampler, recorder *telemetry.Recorder, cfg *config.Config, out io.Writer) *controller {
	return &controller{
		sampler:   s,
		recorder:  recorder,
		sweep:     cfg.Sweep,
		frequency: cfg.Monitor.Frequency,
		out:       out,
	}
}

// start enters the configured initial mode
func (c *controller) start(ctx context.Context) error {
	if c.sweep.Enabled {
		return c.apply(ctx, Command{Kind: CommandSweep})
	}
	return c.apply(ctx, Command{Kind: CommandMonitor})
}

func (c *controller) apply(ctx context.Context, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd.Kind {
	case CommandSweep:
		return c.sampler.StartSweep(ctx, c.sweep.Band(c.sweep.Fast))

	case CommandMonitor:
		return c.sampler.StartMonitor(ctx, c.sweep.Band(false), c.frequency)

	case CommandStop:
		return c.sampler.Stop(ctx)

	case CommandFrequency:
		if err := c.sampler.SetFrequency(ctx, cmd.Frequency); err != nil {
			return err
		}
		c.frequency = cmd.Frequency
		return nil

	case CommandBand:
		next := c.sweep
		next.Low, next.High = cmd.Low, cmd.High
		for _, fast := range []bool{false, true} {
			if err := next.Band(fast).Validate(); err != nil {
				return err
			}
		}
		if c.frequency != 0 && !next.Band(false).Contains(c.frequency) {
			c.frequency = 0
		}
		c.sweep = next
		return c.restart(ctx)

	case CommandStep:
		c.sweep.Fast = cmd.Fast
		if c.sampler.View().State == acquisition.Sweeping {
			return c.restart(ctx)
		}
		return nil

	case CommandStatus:
		return c.writeStatus()

	case CommandHelp:
		_, err := io.WriteString(c.out, consoleHelp)
		return err

	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Kind)
	}
}

// restart rebuilds the current session with the new band or step
func (c *controller) restart(ctx context.Context) error {
	switch c.sampler.View().State {
	case acquisition.Sweeping:
		return c.sampler.StartSweep(ctx, c.sweep.Band(c.sweep.Fast))
	case acquisition.Monitoring:
		return c.sampler.StartMonitor(ctx, c.sweep.Band(false), c.frequency)
	default:
		return nil
	}
}

func (c *controller) writeStatus() error {
	view := c.sampler.View()

	status := fmt.Sprintf("state: %s", view.State)
	if view.State != acquisition.Idle {
		status += fmt.Sprintf(", session: %s, band: %s", view.SessionID, view.Band)
	}
	status += "\n"

	if t := c.recorder.Get(); t != nil && t.SessionID == view.SessionID {
		status += fmt.Sprintf("last sample: %d MHz", t.Frequency)
		if t.RSSI != nil {
			status += fmt.Sprintf(", rssi %d", *t.RSSI)
		}
		status += fmt.Sprintf(" (%s)\n", humanize.Time(t.Timestamp))
	}

	if f := c.recorder.LastFailure(); f != nil && f.SessionID == view.SessionID {
		status += fmt.Sprintf("last error: %s (%s)\n", f.Message, humanize.Time(f.Timestamp))
	}

	reports, failures := c.recorder.Counts()
	status += fmt.Sprintf("ticks: %s reported, %s failed\n", humanize.Comma(int64(reports)), humanize.Comma(int64(failures)))

	_, err := io.WriteString(c.out, status)
	return err
}
