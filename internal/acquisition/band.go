package acquisition

import (
	"fmt"

	"github.com/roman-kulish/rotorscope/internal/node"
)

// Band is a closed frequency range swept at a fixed step, all in MHz
type Band struct {
	Low  int `yaml:"low" json:"low"`
	High int `yaml:"high" json:"high"`
	Step int `yaml:"step" json:"step"`
}

// Validate reports a band the device cannot be tuned across
func (b Band) Validate() error {
	switch {
	case b.Step <= 0:
		return node.NewConfigError(fmt.Sprintf("band: step must be positive: %d", b.Step))
	case b.Low <= 0 || b.High > 0xFFFF:
		return node.NewConfigError(fmt.Sprintf("band: %d..%d outside 1..65535", b.Low, b.High))
	case b.Low >= b.High:
		return node.NewConfigError(fmt.Sprintf("band: low %d must be below high %d", b.Low, b.High))
	}
	return nil
}

// Len returns the number of grid points of the band
func (b Band) Len() int {
	return (b.High-b.Low)/b.Step + 1
}

// Contains reports whether f lies within [Low, High]
func (b Band) Contains(f int) bool {
	return f >= b.Low && f <= b.High
}

// OnGrid reports whether f is one of the band's grid points
func (b Band) OnGrid(f int) bool {
	return b.Contains(f) && (f-b.Low)%b.Step == 0
}

// Next returns the grid point after f, wrapping to Low past High. A
// frequency below the band snaps to Low, one between grid points snaps to
// the next grid point.
func (b Band) Next(f int) int {
	if f < b.Low {
		return b.Low
	}

	next := b.Low + ((f-b.Low)/b.Step+1)*b.Step
	if next > b.High {
		return b.Low
	}
	return next
}

func (b Band) String() string {
	return fmt.Sprintf("%d-%d/%d MHz", b.Low, b.High, b.Step)
}
