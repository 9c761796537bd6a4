package acquisition

import (
	"context"

	"github.com/roman-kulish/rotorscope/internal/node"
	"github.com/roman-kulish/rotorscope/internal/series"
)

// Device is the command set the scheduler drives. *node.Client implements it.
type Device interface {
	GetFrequency(ctx context.Context) (int, error)
	SetFrequency(ctx context.Context, freq int) error
	ReadStats(ctx context.Context, hostTime int64) (*node.LapStats, error)
}

// State is the scheduler mode
type State int

const (
	Idle State = iota
	Sweeping
	Monitoring
)

func (s State) String() string {
	switch s {
	case Sweeping:
		return "sweeping"
	case Monitoring:
		return "monitoring"
	default:
		return "idle"
	}
}

// View is a read-only snapshot of the active session for renderers. The
// series are live and may be read concurrently with the worker.
type View struct {
	SessionID string
	State     State
	Band      Band
	Frequency int   // Monitored frequency, 0 while unknown or sweeping
	Window    int64 // Visible trace window in ms

	Live *series.FixedSeries
	Min  *series.FixedSeries
	Max  *series.FixedSeries

	Trace   *series.RingSeries
	History *series.RingSeries
}
