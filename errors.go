package serial

import (
	"errors"
	"fmt"
)

var (
	// ErrUsage reports a wrong command line. Nothing has been acquired yet.
	ErrUsage = errors.New("usage")

	// ErrStreamEnded is matched by every *StreamEndedError.
	ErrStreamEnded = errors.New("stream ended")

	// ErrStopped is returned by Bridge.Run after Stop was called.
	ErrStopped = errors.New("bridge stopped")
)

// DeviceOpenError is returned when the device path cannot be opened.
type DeviceOpenError struct {
	Path string
	Err  error
}

func (e *DeviceOpenError) Error() string { return fmt.Sprintf("open %s: %v", e.Path, e.Err) }
func (e *DeviceOpenError) Unwrap() error { return e.Err }

// DeviceConfigError is returned when the line discipline or speed cannot be applied.
type DeviceConfigError struct {
	Op  string
	Err error
}

func (e *DeviceConfigError) Error() string { return fmt.Sprintf("configure device: %s: %v", e.Op, e.Err) }
func (e *DeviceConfigError) Unwrap() error { return e.Err }

// TerminalConfigError is returned when the console cannot be put into raw mode.
type TerminalConfigError struct {
	Err error
}

func (e *TerminalConfigError) Error() string { return fmt.Sprintf("console raw mode: %v", e.Err) }
func (e *TerminalConfigError) Unwrap() error { return e.Err }

// StreamEndedError describes why the bridge loop terminated.
// Source is "device", "console" or "poll".
type StreamEndedError struct {
	Source string
	Err    error
}

func (e *StreamEndedError) Error() string {
	if e.Err == nil {
		return e.Source + ": " + ErrStreamEnded.Error()
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, ErrStreamEnded, e.Err)
}

func (e *StreamEndedError) Unwrap() error { return e.Err }

// Is reports ErrStreamEnded as a match so callers can treat every loop exit alike.
func (e *StreamEndedError) Is(target error) bool { return target == ErrStreamEnded }
