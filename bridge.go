package serial

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Device is the serial side of a Bridge. *Port implements it.
type Device interface {
	Read(buf []byte) (int, error)
	WritePaced(frame []byte) error
	Fd() int
}

// Bridge shuttles bytes between a console and a Device on one goroutine.
// Device output is rendered with AppendDisplay; console input is echoed
// the same way and forwarded with WritePaced.
type Bridge struct {
	dev  Device
	in   *os.File
	inFd int
	out  io.Writer

	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd
	stopOnce  sync.Once
	closeOnce sync.Once
}

// NewBridge returns a Bridge reading keystrokes from in and writing the
// display stream to out. in is switched to blocking mode: Run reads it
// only after poll reports it ready.
func NewBridge(dev Device, in *os.File, out io.Writer) (*Bridge, error) {
	inFd := int(in.Fd())
	if err := unix.SetNonblock(inFd, false); err != nil {
		return nil, fmt.Errorf("clear O_NONBLOCK on console: %w", err)
	}
	pipeFds := make([]int, 2)
	if err := unix.Pipe(pipeFds); err != nil {
		return nil, err
	}
	return &Bridge{
		dev:   dev,
		in:    in,
		inFd:  inFd,
		out:   out,
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
	}, nil
}

// Run multiplexes the two endpoints until one of them ends. The wait has
// no timeout: an idle link blocks forever.
//
// Run returns a *StreamEndedError (matching ErrStreamEnded) when a read
// returns no data or the wait fails, and ErrStopped after Stop.
func (b *Bridge) Run() error {
	buf := make([]byte, DefaultFrameSize)
	display := make([]byte, 0, 4*DefaultFrameSize)

	pfd := []unix.PollFd{
		{Fd: int32(b.dev.Fd()), Events: unix.POLLIN},
		{Fd: int32(b.inFd), Events: unix.POLLIN},
		{Fd: int32(b.pipeR), Events: unix.POLLIN},
	}
	for {
		for i := range pfd {
			pfd[i].Revents = 0
		}
		if _, err := unix.Poll(pfd, -1); err != nil {
			// The runtime preempts with signals; an interrupted wait is not a failure.
			if err == unix.EINTR {
				continue
			}
			return &StreamEndedError{Source: "poll", Err: err}
		}
		if pfd[2].Revents&unix.POLLIN != 0 {
			return ErrStopped
		}

		if readable(pfd[0]) {
			n, err := b.dev.Read(buf)
			if n <= 0 {
				return &StreamEndedError{Source: "device", Err: err}
			}
			display = AppendDisplay(display[:0], buf[:n])
			if _, err := b.out.Write(display); err != nil {
				return &StreamEndedError{Source: "console", Err: err}
			}
		}

		if readable(pfd[1]) {
			n, err := b.in.Read(buf)
			if n <= 0 {
				return &StreamEndedError{Source: "console", Err: err}
			}
			// Raw mode turned the terminal's echo off.
			display = AppendDisplay(display[:0], buf[:n])
			if _, err := b.out.Write(display); err != nil {
				return &StreamEndedError{Source: "console", Err: err}
			}
			if err := b.dev.WritePaced(buf[:n]); err != nil {
				return &StreamEndedError{Source: "device", Err: err}
			}
		}
	}
}

// readable treats hangup and error as readiness so the following read
// observes the end of the stream instead of the loop spinning.
func readable(pfd unix.PollFd) bool {
	return pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0
}

// Stop wakes a blocked Run, which then returns ErrStopped.
// Safe to call from another goroutine and more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		unix.Write(b.pipeW, []byte{1})
	})
}

// Close releases the self-pipe. It does not close the endpoints.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if e := unix.Close(b.pipeR); e != nil {
			err = e
		}
		if e := unix.Close(b.pipeW); e != nil && err == nil {
			err = e
		}
	})
	return err
}
