//go:build linux

package serial

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// readN reads exactly n bytes from a pty master or fails the test.
func readN(t *testing.T, f *os.File, n int, timeout time.Duration) []byte {
	t.Helper()
	require.NoError(t, f.SetReadDeadline(time.Now().Add(timeout)))
	got := make([]byte, 0, n)
	buf := make([]byte, 64)
	for len(got) < n {
		m, err := f.Read(buf[:n-len(got)])
		got = append(got, buf[:m]...)
		require.NoError(t, err)
	}
	return got
}

func openPortPair(t *testing.T, cfg Config) (*Port, *os.File) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	cfg.Device = slave.Name()
	port, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })
	return port, master
}

func TestPort_OpenMissingDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttyNOPE")
	_, err := Open(Config{Device: path})
	require.Error(t, err)

	var openErr *DeviceOpenError
	require.True(t, errors.As(err, &openErr))
	require.Equal(t, path, openErr.Path)
	require.ErrorIs(t, err, unix.ENOENT)
	require.Contains(t, err.Error(), path)
}

func TestPort_OpenNotATerminal(t *testing.T) {
	_, err := Open(Config{Device: os.DevNull})
	require.Error(t, err)

	var cfgErr *DeviceConfigError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, "get termios", cfgErr.Op)
	require.ErrorIs(t, err, unix.ENOTTY)
}

func TestPort_OpenAppliesRawModeAndSpeed(t *testing.T) {
	port, _ := openPortPair(t, Config{})

	termios, err := unix.IoctlGetTermios(port.Fd(), unix.TCGETS)
	require.NoError(t, err)
	require.Zero(t, termios.Lflag&(unix.ICANON|unix.ECHO|unix.ISIG|unix.IEXTEN))
	require.Zero(t, termios.Iflag&(unix.ICRNL|unix.IXON))
	require.Zero(t, termios.Oflag&unix.OPOST)
	require.NotZero(t, termios.Cflag&unix.CLOCAL)
	require.Equal(t, uint32(unix.CS8), termios.Cflag&unix.CSIZE)
	require.Equal(t, uint8(1), termios.Cc[unix.VMIN])
	require.Equal(t, uint8(0), termios.Cc[unix.VTIME])

	termios2, err := unix.IoctlGetTermios(port.Fd(), unix.TCGETS2)
	require.NoError(t, err)
	require.Equal(t, uint32(unix.BOTHER), termios2.Cflag&unix.CBAUD)
	require.Equal(t, uint32(DefaultBaudRate), termios2.Ospeed)

	// Blocking I/O restored after the non-blocking open.
	flags, err := unix.FcntlInt(uintptr(port.Fd()), unix.F_GETFL, 0)
	require.NoError(t, err)
	require.Zero(t, flags&unix.O_NONBLOCK)
}

func TestPort_Read(t *testing.T) {
	port, master := openPortPair(t, Config{})

	_, err := master.Write([]byte("hello\r"))
	require.NoError(t, err)

	buf := make([]byte, DefaultFrameSize)
	var got []byte
	for len(got) < 6 {
		n, err := port.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	// No ICRNL on a raw line.
	require.Equal(t, "hello\r", string(got))
}

func TestPort_ReadAfterHangup(t *testing.T) {
	port, master := openPortPair(t, Config{})
	require.NoError(t, master.Close())

	n, err := port.Read(make([]byte, 16))
	require.Zero(t, n)
	require.Error(t, err)
}

func TestPort_WritePaced(t *testing.T) {
	port, master := openPortPair(t, Config{PaceDelay: 2 * time.Millisecond})

	start := time.Now()
	require.NoError(t, port.WritePaced([]byte("AB\r")))
	require.GreaterOrEqual(t, time.Since(start), 6*time.Millisecond)

	require.Equal(t, "AB\n", string(readN(t, master, 3, 500*time.Millisecond)))
}

type pacedEvent struct {
	sleep time.Duration
	b     byte
}

type pacedRecorder struct {
	events []pacedEvent
	failAt int
}

func (r *pacedRecorder) Write(p []byte) (int, error) {
	if r.failAt > 0 && len(r.events) >= r.failAt {
		return 0, unix.EIO
	}
	for _, b := range p {
		r.events = append(r.events, pacedEvent{b: b})
	}
	return len(p), nil
}

func (r *pacedRecorder) sleep(d time.Duration) {
	r.events = append(r.events, pacedEvent{sleep: d})
}

func TestWritePaced_OneWritePerByteAfterDelay(t *testing.T) {
	rec := &pacedRecorder{}
	require.NoError(t, writePaced(rec, []byte("AB\r"), time.Millisecond, rec.sleep))

	require.Equal(t, []pacedEvent{
		{sleep: time.Millisecond}, {b: 'A'},
		{sleep: time.Millisecond}, {b: 'B'},
		{sleep: time.Millisecond}, {b: '\n'},
	}, rec.events)
}

func TestWritePaced_PreservesLength(t *testing.T) {
	rec := &pacedRecorder{}
	frame := []byte("\r\n\r\x00\xff")
	require.NoError(t, writePaced(rec, frame, 0, func(time.Duration) {}))

	var sent []byte
	for _, e := range rec.events {
		sent = append(sent, e.b)
	}
	require.Equal(t, []byte("\n\n\n\x00\xff"), sent)
}

func TestWritePaced_StopsOnError(t *testing.T) {
	rec := &pacedRecorder{failAt: 2}
	err := writePaced(rec, []byte("abc"), 0, rec.sleep)
	require.ErrorIs(t, err, unix.EIO)
	require.Len(t, rec.events, 3) // sleep, 'a', sleep
}

func TestPort_DefaultsAndLogging(t *testing.T) {
	var logs bytes.Buffer
	port, _ := openPortPair(t, Config{Logger: log.New(&logs, "", 0)})

	require.Equal(t, DefaultBaudRate, port.config.BaudRate)
	require.Equal(t, DefaultPaceDelay, port.config.PaceDelay)
	require.Contains(t, logs.String(), "at 2125000 baud")
}

func TestPort_CloseIdempotent(t *testing.T) {
	port, _ := openPortPair(t, Config{})
	require.NoError(t, port.Close())
	require.NoError(t, port.Close())
}
