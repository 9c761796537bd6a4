package acquisition

import (
	"context"
	"testing"
	"time"

	"github.com/roman-kulish/rotorscope/internal/node"
	"github.com/roman-kulish/rotorscope/internal/series"
	"github.com/roman-kulish/rotorscope/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBand = Band{Low: 5645, High: 5655, Step: 2}

func fixedClock() func() time.Time {
	now := time.Unix(1000, 0)
	return func() time.Time {
		return now
	}
}

func binValue(t *testing.T, fs *series.FixedSeries, f int) (int, bool) {
	t.Helper()
	v, ok, err := fs.At(f)
	require.NoError(t, err)
	return v, ok
}

func TestSweepSession_Tick(t *testing.T) {
	dev := &fakeDevice{frequency: 5645}
	rec := telemetry.NewRecorder()
	s := NewScheduler(dev, rec, WithClock(fixedClock()))

	ss, err := newSweepSession(s, testBand)
	require.NoError(t, err)

	dev.setStats(node.LapStats{RSSI: 50})
	require.NoError(t, ss.tick(context.Background()))

	assert.Equal(t, 5647, dev.current())
	v, ok := binValue(t, ss.live, 5645)
	assert.True(t, ok)
	assert.Equal(t, 50, v)

	got := rec.Get()
	require.NotNil(t, got)
	assert.Equal(t, telemetry.ModeSweep, got.Mode)
	assert.Equal(t, 5645, got.Frequency)
	assert.Equal(t, 50, *got.RSSI)
	assert.Equal(t, 5647, *got.NextFrequency)
	assert.Equal(t, ss.sessionID, got.SessionID)
}

func TestSweepSession_MinMax(t *testing.T) {
	dev := &fakeDevice{frequency: 5645}
	s := NewScheduler(dev, telemetry.NewRecorder())

	ss, err := newSweepSession(s, testBand)
	require.NoError(t, err)

	for _, rssi := range []int{50, 30, 0, 90, 60} {
		dev.setFrequency(5645)
		dev.setStats(node.LapStats{RSSI: rssi})
		require.NoError(t, ss.tick(context.Background()))
	}

	live, _ := binValue(t, ss.live, 5645)
	lo, _ := binValue(t, ss.min, 5645)
	hi, _ := binValue(t, ss.max, 5645)
	assert.Equal(t, 60, live)
	assert.Equal(t, 0, lo, "a reading of 0 is a minimum, not unset")
	assert.Equal(t, 90, hi)

	_, ok := binValue(t, ss.max, 5647)
	assert.False(t, ok)
}

func TestSweepSession_WrapsAcrossBand(t *testing.T) {
	dev := &fakeDevice{frequency: 5645}
	s := NewScheduler(dev, telemetry.NewRecorder())

	ss, err := newSweepSession(s, testBand)
	require.NoError(t, err)

	for i := 0; i < testBand.Len(); i++ {
		require.NoError(t, ss.tick(context.Background()))
	}

	assert.Equal(t, []int{5647, 5649, 5651, 5653, 5655, 5645}, dev.tuned)
	for _, b := range ss.live.Bins() {
		assert.True(t, b.Valid, "bin %d not visited", b.Frequency)
	}
}

func TestSweepSession_OffGridDevice(t *testing.T) {
	dev := &fakeDevice{frequency: 5800}
	s := NewScheduler(dev, telemetry.NewRecorder())

	ss, err := newSweepSession(s, testBand)
	require.NoError(t, err)

	require.NoError(t, ss.tick(context.Background()))

	assert.Equal(t, 5645, dev.current(), "device outside the band snaps to low")
	for _, b := range ss.live.Bins() {
		assert.False(t, b.Valid)
	}
}

// scriptedChannel is a node.Channel that answers each read with the next
// scripted reply and reports silence once the script runs out
type scriptedChannel struct {
	replies [][]byte
	writes  [][]byte
}

func (c *scriptedChannel) Write(p []byte, _ time.Duration) (int, error) {
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *scriptedChannel) Read(p []byte, _ time.Duration) (int, error) {
	if len(c.replies) == 0 {
		return 0, nil
	}
	n := copy(p, c.replies[0])
	c.replies = c.replies[1:]
	return n, nil
}

func (c *scriptedChannel) Close() error { return nil }

// frequencyReply encodes a read-frequency response for f
func frequencyReply(f int) []byte {
	p := []byte{byte(f >> 8), byte(f)}
	return append(p, node.Checksum(p))
}

// lapStatsReply encodes a read-lap-stats response carrying rssi
func lapStatsReply(rssi byte) []byte {
	p := make([]byte, 16)
	p[3] = rssi
	return append(p, node.Checksum(p))
}

func TestSweepSession_FailedTickLeavesSeries(t *testing.T) {
	ch := &scriptedChannel{}
	client := node.NewClient(ch)
	rec := telemetry.NewRecorder()
	s := NewScheduler(client, rec)

	ss, err := newSweepSession(s, testBand)
	require.NoError(t, err)

	ch.replies = [][]byte{frequencyReply(5645), lapStatsReply(50)}
	require.NoError(t, ss.tick(context.Background()))
	reports, failures := rec.Counts()

	// the node answers the second read-stats with a truncated frame
	ch.writes = nil
	ch.replies = [][]byte{frequencyReply(5645), make([]byte, 10)}

	err = ss.tick(context.Background())
	var protoErr *node.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, node.CmdReadLapStats, protoErr.Command)

	assert.Equal(t, [][]byte{{node.CmdReadFrequency}, {node.CmdReadLapStats}}, ch.writes, "no retune after a failed read")
	gotReports, gotFailures := rec.Counts()
	assert.Equal(t, reports, gotReports)
	assert.Equal(t, failures, gotFailures)

	for _, fs := range []*series.FixedSeries{ss.live, ss.min, ss.max} {
		v, ok := binValue(t, fs, 5645)
		assert.True(t, ok, fs.Title())
		assert.Equal(t, 50, v, fs.Title())

		_, ok = binValue(t, fs, 5647)
		assert.False(t, ok, fs.Title())
	}
}

func TestSweepSession_CancelledTickCommitsNothing(t *testing.T) {
	dev := &fakeDevice{frequency: 5645}
	s := NewScheduler(dev, telemetry.NewRecorder())

	ss, err := newSweepSession(s, testBand)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ss.tick(ctx), context.Canceled)
	_, ok := binValue(t, ss.live, 5645)
	assert.False(t, ok)
	assert.Empty(t, dev.tuned)
}

func TestMonitorSession_HistoryMarkers(t *testing.T) {
	testCases := []struct {
		name  string
		stats node.LapStats
		want  []series.Point
	}{
		{
			name:  "no history",
			stats: node.LapStats{RSSI: 40},
			want:  []series.Point{},
		},
		{
			name:  "single point",
			stats: node.LapStats{RSSI: 40, HistoryRSSI: 90, MsSinceHistoryStart: 300, MsSinceHistoryEnd: 300},
			want:  []series.Point{{X: 700, Y: 90}},
		},
		{
			name:  "two points",
			stats: node.LapStats{RSSI: 40, HistoryRSSI: 90, MsSinceHistoryStart: 500, MsSinceHistoryEnd: 200},
			want:  []series.Point{{X: 500, Y: 90}, {X: 800, Y: 90}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dev := &fakeDevice{frequency: 5800}
			dev.setStats(tc.stats)

			start := time.Unix(1000, 0)
			calls := 0
			clock := func() time.Time {
				calls++
				if calls == 1 {
					return start
				}
				return start.Add(time.Second)
			}

			rec := telemetry.NewRecorder()
			s := NewScheduler(dev, rec, WithClock(clock))

			ms, err := newMonitorSession(s, testBand)
			require.NoError(t, err)
			require.NoError(t, ms.tick(context.Background()))

			assert.Equal(t, []series.Point{{X: 1000, Y: 40}}, ms.trace.Points())
			assert.Equal(t, tc.want, ms.history.Points())

			got := rec.Get()
			require.NotNil(t, got)
			require.NotNil(t, got.Window)
			assert.Equal(t, telemetry.Window{From: 1000 - 10000, To: 1000}, *got.Window)
			assert.Equal(t, 40, *got.RSSI)
		})
	}
}

func TestMonitorSession_Retune(t *testing.T) {
	dev := &fakeDevice{frequency: 5800}
	s := NewScheduler(dev, telemetry.NewRecorder(), WithMonitorSamples(4))

	ms, err := newMonitorSession(s, testBand)
	require.NoError(t, err)

	dev.setStats(node.LapStats{RSSI: 40, HistoryRSSI: 90, MsSinceHistoryStart: 20, MsSinceHistoryEnd: 10})
	for i := 0; i < 6; i++ {
		require.NoError(t, ms.tick(context.Background()))
	}
	assert.Equal(t, 4, ms.trace.Len())
	assert.Equal(t, 4, ms.history.Len())

	ms.retune(5650)
	assert.Equal(t, 0, ms.trace.Len())
	assert.Equal(t, 0, ms.history.Len())
	assert.Equal(t, 5650, ms.view().Frequency)
}
