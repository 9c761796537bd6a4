package node

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the channel produced no data within the call timeout
	ErrTimeout = errors.New("timeout")

	// ErrNotConnected is returned by every call on a client without a usable channel
	ErrNotConnected = errors.New("not connected")

	// ErrWriteInFlight is returned while a timed out write still holds the port
	ErrWriteInFlight = errors.New("previous write still in flight")
)

// ChannelError reports an I/O failure or a timeout on the byte stream
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("node: %s: %s", e.Op, e.Err.Error())
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a response of the wrong length or with a bad checksum
type ProtocolError struct {
	Command byte
	msg     string
}

func NewProtocolError(cmd byte, msg string) *ProtocolError {
	return &ProtocolError{Command: cmd, msg: msg}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("node: 0x%02x: %s", e.Command, e.msg)
}

// ConfigError reports a value rejected before it reaches the device
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}

func channelError(op string, err error) error {
	var chErr *ChannelError
	if errors.As(err, &chErr) {
		return err
	}
	return &ChannelError{Op: op, Err: err}
}
