package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	DefaultBaudRate    = 115200
	DefaultSettleDelay = 2 * time.Second
)

// ErrNoDevice is returned when discovery finds no compatible USB serial port
var ErrNoDevice = errors.New("no compatible USB devices")

// DialConfig describes how to reach the node
type DialConfig struct {
	Port        string        // Serial device path, discovered when empty
	VendorID    string        // Optional USB VID filter for discovery (hex, e.g. "10c4")
	ProductID   string        // Optional USB PID filter for discovery (hex, e.g. "ea60")
	BaudRate    int           // Line speed, 8-N-1 framing is fixed
	SettleDelay time.Duration // Wait after opening before the first command
}

// SerialChannel is a Channel over a serial port
type SerialChannel struct {
	name    string
	port    serial.Port
	writing atomic.Bool // set while a port write is pending
}

// OpenSerial opens the node's serial port and waits for it to settle. The
// nodes reset when the port opens and ignore commands until their firmware
// is up.
func OpenSerial(ctx context.Context, config DialConfig) (*SerialChannel, error) {
	name := config.Port
	if name == "" {
		var err error
		if name, err = Discover(config.VendorID, config.ProductID); err != nil {
			return nil, err
		}
	}

	baudRate := config.BaudRate
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, &ChannelError{Op: "open " + name, Err: err}
	}

	if config.SettleDelay > 0 {
		t := time.NewTimer(config.SettleDelay)
		defer t.Stop()

		select {
		case <-t.C:
		case <-ctx.Done():
			_ = port.Close()
			return nil, &ChannelError{Op: "open " + name, Err: ctx.Err()}
		}
	}

	return &SerialChannel{name: name, port: port}, nil
}

// Name returns the device path of the port
func (s *SerialChannel) Name() string {
	return s.name
}

// Write writes p, failing with ErrTimeout when the port does not accept it in
// time. Until the timed out write completes, further writes fail with
// ErrWriteInFlight so that two commands never interleave on the wire.
func (s *SerialChannel) Write(p []byte, timeout time.Duration) (int, error) {
	if !s.writing.CompareAndSwap(false, true) {
		return 0, &ChannelError{Op: "write", Err: ErrWriteInFlight}
	}

	type result struct {
		n   int
		err error
	}

	done := make(chan result, 1)
	go func() {
		defer s.writing.Store(false)

		n, err := s.port.Write(p)
		done <- result{n, err}
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return r.n, &ChannelError{Op: "write", Err: r.err}
		}
		return r.n, nil
	case <-t.C:
		return 0, &ChannelError{Op: "write", Err: ErrTimeout}
	}
}

// Read reads into p, waiting at most timeout. It returns 0 bytes when nothing arrived.
func (s *SerialChannel) Read(p []byte, timeout time.Duration) (int, error) {
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return 0, &ChannelError{Op: "read", Err: err}
	}

	n, err := s.port.Read(p)
	if err != nil {
		return n, &ChannelError{Op: "read", Err: err}
	}
	return n, nil
}

// ResetInputBuffer drops bytes left over from an earlier, timed out exchange
func (s *SerialChannel) ResetInputBuffer() error {
	return s.port.ResetInputBuffer()
}

func (s *SerialChannel) Close() error {
	return s.port.Close()
}

// PortInfo describes a serial port found on the host
type PortInfo struct {
	Name      string
	IsUSB     bool
	VendorID  string
	ProductID string
	Serial    string
	Product   string
}

// ListPorts lists the serial ports of the host
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:      d.Name,
			IsUSB:     d.IsUSB,
			VendorID:  d.VID,
			ProductID: d.PID,
			Serial:    d.SerialNumber,
			Product:   d.Product,
		})
	}
	return ports, nil
}

// Discover returns the first USB serial port, optionally matching vendorID and productID
func Discover(vendorID, productID string) (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}

	if name, ok := selectPort(ports, vendorID, productID); ok {
		return name, nil
	}
	return "", ErrNoDevice
}

func selectPort(ports []PortInfo, vendorID, productID string) (string, bool) {
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if vendorID != "" && !strings.EqualFold(p.VendorID, vendorID) {
			continue
		}
		if productID != "" && !strings.EqualFold(p.ProductID, productID) {
			continue
		}
		return p.Name, true
	}
	return "", false
}

// offlineChannel stands in for a node that could not be connected
type offlineChannel struct {
	cause error
}

// Offline returns a Channel on which every call fails with ErrNotConnected
func Offline(cause error) Channel {
	return &offlineChannel{cause: cause}
}

func (o *offlineChannel) err(op string) error {
	if o.cause == nil {
		return &ChannelError{Op: op, Err: ErrNotConnected}
	}
	return &ChannelError{Op: op, Err: fmt.Errorf("%w: %w", ErrNotConnected, o.cause)}
}

func (o *offlineChannel) Write([]byte, time.Duration) (int, error) {
	return 0, o.err("write")
}

func (o *offlineChannel) Read([]byte, time.Duration) (int, error) {
	return 0, o.err("read")
}

func (o *offlineChannel) Close() error {
	return nil
}
