package acquisition

import (
	"context"
	"sync"

	"github.com/roman-kulish/rotorscope/internal/node"
)

// fakeDevice tunes instantly and serves scripted stats
type fakeDevice struct {
	mu        sync.Mutex
	frequency int
	tuned     []int
	stats     []node.LapStats // consumed in order, the last one repeats
	statsErr  error
	freqErr   error
	reads     int
}

func (d *fakeDevice) GetFrequency(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.freqErr != nil {
		return 0, d.freqErr
	}
	return d.frequency, nil
}

func (d *fakeDevice) SetFrequency(ctx context.Context, freq int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.frequency = freq
	d.tuned = append(d.tuned, freq)
	return nil
}

func (d *fakeDevice) ReadStats(ctx context.Context, hostTime int64) (*node.LapStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &node.ChannelError{Op: "read", Err: err}
	}
	if d.statsErr != nil {
		return nil, d.statsErr
	}

	d.reads++
	stats := node.LapStats{RSSI: 50}
	if len(d.stats) > 0 {
		stats = d.stats[0]
		if len(d.stats) > 1 {
			d.stats = d.stats[1:]
		}
	}
	stats.Timestamp = hostTime
	return &stats, nil
}

func (d *fakeDevice) setFrequency(f int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frequency = f
}

func (d *fakeDevice) setStats(stats ...node.LapStats) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = stats
}

func (d *fakeDevice) setStatsErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statsErr = err
}

func (d *fakeDevice) current() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frequency
}

func (d *fakeDevice) readCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}
