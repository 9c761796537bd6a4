package series

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutOfRange is returned for a frequency outside the series range
	ErrOutOfRange = errors.New("frequency out of range")

	// ErrOffGrid is returned for a frequency between two bins
	ErrOffGrid = errors.New("frequency off grid")
)

// FixedSeries is a frequency-indexed accumulator covering
// [origin, origin+step*(length-1)] at a fixed step. Every bin carries an
// explicit valid flag, so a genuine reading of 0 is not mistaken for "unset".
type FixedSeries struct {
	title  string
	origin int // Lowest frequency in MHz
	step   int // Frequency increment per bin in MHz

	mu     sync.RWMutex
	values []int
	valid  []bool
}

// NewFixedSeries creates a new series of length bins starting at origin.
func NewFixedSeries(title string, origin, step, length int) (*FixedSeries, error) {
	if step <= 0 || length <= 0 {
		return nil, fmt.Errorf("invalid series parameters: step=%d, length=%d", step, length)
	}
	return &FixedSeries{
		title:  title,
		origin: origin,
		step:   step,
		values: make([]int, length),
		valid:  make([]bool, length),
	}, nil
}

// Title returns the series title
func (fs *FixedSeries) Title() string {
	return fs.title
}

// Index returns the bin index of frequency x
func (fs *FixedSeries) Index(x int) (int, error) {
	offset := x - fs.origin
	if offset < 0 || offset > fs.step*(len(fs.values)-1) {
		return 0, fmt.Errorf("%s: %w: %d", fs.title, ErrOutOfRange, x)
	}
	if offset%fs.step != 0 {
		return 0, fmt.Errorf("%s: %w: %d", fs.title, ErrOffGrid, x)
	}
	return offset / fs.step, nil
}

// Set writes y into the bin of frequency x
func (fs *FixedSeries) Set(x, y int) error {
	i, err := fs.Index(x)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.values[i] = y
	fs.valid[i] = true
	return nil
}

// At reads the bin of frequency x. It returns 0 and false for a bin never written.
func (fs *FixedSeries) At(x int) (int, bool, error) {
	i, err := fs.Index(x)
	if err != nil {
		return 0, false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.values[i], fs.valid[i], nil
}

// Len returns the number of bins
func (fs *FixedSeries) Len() int {
	return len(fs.values)
}

// X returns the frequency of bin i
func (fs *FixedSeries) X(i int) int {
	return fs.origin + fs.step*i
}

// Bins returns a copy of every bin in frequency order
func (fs *FixedSeries) Bins() []Bin {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	bins := make([]Bin, len(fs.values)) // Preallocate with length
	for i := range fs.values {
		bins[i] = Bin{
			Frequency: fs.X(i),
			Value:     fs.values[i],
			Valid:     fs.valid[i],
		}
	}
	return bins
}
