package serial

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// DefaultBaudRate is the line rate of the target board. It is not a
	// standard Bxxx rate and is applied through the platform speed ioctl.
	DefaultBaudRate = 2125000

	// DefaultPaceDelay is slept before every byte sent to the device.
	// The target's receiver drops bytes that arrive back to back.
	DefaultPaceDelay = time.Millisecond

	// DefaultFrameSize bounds a single read from either endpoint.
	DefaultFrameSize = 1024
)

// Config holds configuration parameters for opening the device.
type Config struct {
	Device    string
	BaudRate  int           // default DefaultBaudRate
	PaceDelay time.Duration // default DefaultPaceDelay
	Logger    *log.Logger   // nil discards
}

func (c Config) withDefaults() Config {
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.PaceDelay <= 0 {
		c.PaceDelay = DefaultPaceDelay
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	return c
}

// Port is an open, configured serial device.
type Port struct {
	fd        int
	file      *os.File
	closeOnce sync.Once
	closeErr  error
	config    Config
}

// Open opens the device for reading and writing and configures it for
// raw 8N1 operation at cfg.BaudRate.
//
// The device is opened non-blocking so drivers waiting on carrier detect
// cannot hang the open, and is switched back to blocking right away.
func Open(cfg Config) (*Port, error) {
	cfg = cfg.withDefaults()

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &DeviceOpenError{Path: cfg.Device, Err: err}
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, &DeviceOpenError{Path: cfg.Device, Err: fmt.Errorf("clear O_NONBLOCK: %w", err)}
	}
	if err := configure(fd, cfg.BaudRate); err != nil {
		unix.Close(fd)
		return nil, err
	}
	cfg.Logger.Printf("opened %s at %d baud", cfg.Device, cfg.BaudRate)

	return &Port{
		fd:     fd,
		file:   os.NewFile(uintptr(fd), cfg.Device),
		config: cfg,
	}, nil
}

// configure applies the raw line discipline first and the speed second.
// Setting the speed on a line that still runs the canonical discipline
// lets the driver interpret bytes already in flight.
func configure(fd, baud int) error {
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return &DeviceConfigError{Op: "get termios", Err: err}
	}

	makeRaw(termios)
	// Ignore modem status lines, otherwise reads wait for carrier detect.
	termios.Cflag |= unix.CLOCAL | unix.CREAD

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, termios); err != nil {
		return &DeviceConfigError{Op: "set termios", Err: err}
	}
	if err := setSpeed(fd, baud); err != nil {
		return &DeviceConfigError{Op: fmt.Sprintf("set speed %d", baud), Err: err}
	}
	return nil
}

// makeRaw matches cfmakeraw(3).
func makeRaw(termios *unix.Termios) {
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8

	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
}

// Fd returns the device file descriptor for readiness polling.
func (p *Port) Fd() int {
	return p.fd
}

// Read performs a single blocking read. A zero count means the link is gone.
func (p *Port) Read(buf []byte) (int, error) {
	return p.file.Read(buf)
}

// WritePaced sends frame one byte per write, sleeping PaceDelay before
// each byte and sending CR as LF. It blocks for len(frame)*PaceDelay.
func (p *Port) WritePaced(frame []byte) error {
	return writePaced(p.file, frame, p.config.PaceDelay, time.Sleep)
}

func writePaced(w io.Writer, frame []byte, delay time.Duration, sleep func(time.Duration)) error {
	var one [1]byte
	for _, b := range frame {
		sleep(delay)
		one[0] = DeviceByte(b)
		if _, err := w.Write(one[:]); err != nil {
			return fmt.Errorf("paced write: %w", err)
		}
	}
	return nil
}

// Close closes the device. Safe to call multiple times; subsequent calls
// return the first result.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.file.Close()
		p.config.Logger.Printf("closed %s", p.config.Device)
	})
	return p.closeErr
}
