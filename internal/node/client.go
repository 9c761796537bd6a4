package node

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds every channel read and write
const DefaultTimeout = 100 * time.Millisecond

// Channel is a duplex byte stream with bounded waits. Read returns 0 bytes
// and no error when the timeout elapses without data.
type Channel interface {
	Write(p []byte, timeout time.Duration) (int, error)
	Read(p []byte, timeout time.Duration) (int, error)
	Close() error
}

// inputResetter is implemented by channels able to drop unread input
type inputResetter interface {
	ResetInputBuffer() error
}

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) func(c *Client) {
	return func(c *Client) {
		c.logger = logger.With(slog.String("component", "node"))
	}
}

// WithTimeout sets the per-call channel timeout
func WithTimeout(timeout time.Duration) func(c *Client) {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithClock replaces the monotonic clock used for round-trip measurement
func WithClock(now func() time.Time) func(c *Client) {
	return func(c *Client) {
		c.now = now
	}
}

// Client encodes the node command set over a Channel. Calls are not
// safe for concurrent use; only the channel swap is synchronised.
type Client struct {
	mu sync.RWMutex
	ch Channel

	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewClient creates a new Client over ch with a discard logger
func NewClient(ch Channel, options ...func(c *Client)) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Client{
		ch:      ch,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  logger,
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// GetFrequency reads the frequency the node is tuned to, in MHz
func (c *Client) GetFrequency(ctx context.Context) (int, error) {
	resp, err := c.exchange(ctx, CmdReadFrequency, frequencyPayloadSize)
	if err != nil {
		return 0, err
	}
	return DecodeFrequency(resp)
}

// SetFrequency tunes the node. No reply is expected; whether the command
// landed is only visible through a later GetFrequency.
func (c *Client) SetFrequency(ctx context.Context, freq int) error {
	if freq < 0 || freq > 0xFFFF {
		return NewConfigError(fmt.Sprintf("node: frequency out of range: %d", freq))
	}
	if err := ctx.Err(); err != nil {
		return channelError("write", err)
	}

	if _, err := c.channel().Write(EncodeSetFrequency(uint16(freq)), c.timeout); err != nil {
		return channelError("write", err)
	}

	c.logger.Debug("frequency command sent", slog.Int("frequency", freq))
	return nil
}

// ReadStats polls the lap stats. The sample is stamped at hostTime plus half
// the measured round trip, on the assumption that the node took the
// measurement midway through the exchange.
func (c *Client) ReadStats(ctx context.Context, hostTime int64) (*LapStats, error) {
	sent := c.now()
	resp, err := c.exchange(ctx, CmdReadLapStats, lapStatsPayloadSize)
	received := c.now()
	if err != nil {
		return nil, err
	}

	stats, err := DecodeLapStats(resp)
	if err != nil {
		return nil, err
	}

	delay := received.Sub(sent) / 2
	stats.Timestamp = hostTime + delay.Milliseconds()
	return stats, nil
}

// Connected returns false while the client runs on an offline channel
func (c *Client) Connected() bool {
	_, offline := c.channel().(*offlineChannel)
	return !offline
}

// Attach replaces the channel, closing the previous one
func (c *Client) Attach(ch Channel) error {
	c.mu.Lock()
	prev := c.ch
	c.ch = ch
	c.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			return fmt.Errorf("closing previous channel: %w", err)
		}
	}
	return nil
}

// Close releases the channel
func (c *Client) Close() error {
	return c.channel().Close()
}

func (c *Client) channel() Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ch
}

// exchange sends a single-byte request and reads back a fixed-size response
func (c *Client) exchange(ctx context.Context, cmd byte, payloadSize int) ([]byte, error) {
	ch := c.channel()

	if err := ctx.Err(); err != nil {
		return nil, channelError("write", err)
	}

	if r, ok := ch.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			c.logger.Debug("failed to discard stale input", slog.String("error", err.Error()))
		}
	}

	if _, err := ch.Write([]byte{cmd}, c.timeout); err != nil {
		return nil, channelError("write", err)
	}

	want := payloadSize + 1
	buf := make([]byte, responseBufferSize)
	deadline := c.now().Add(c.timeout)

	var total int
	for total < want {
		if err := ctx.Err(); err != nil {
			return nil, channelError("read", err)
		}

		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			break
		}

		n, err := ch.Read(buf[total:], remaining)
		if err != nil {
			return nil, channelError("read", err)
		}
		if n == 0 {
			break
		}
		total += n
	}

	if total == 0 {
		return nil, &ChannelError{Op: "read", Err: ErrTimeout}
	}
	if total != want {
		return nil, NewProtocolError(cmd, fmt.Sprintf("unexpected response size %d", total))
	}
	return buf[:total], nil
}
