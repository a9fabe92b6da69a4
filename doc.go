// Package serial bridges an interactive console to a serial device.
//
// It is built for boards whose receivers cannot keep up with line-rate
// bursts and that expect LF terminated commands: every byte sent to the
// device is preceded by a short delay, and CR is sent as LF. Bytes coming
// back are made safe for the console: CR and LF become CRLF and anything
// outside printable ASCII is shown as a bracketed hex escape like [1B].
//
// Features:
//   - Raw, non-canonical device setup with an arbitrary baud rate
//     (termios2 BOTHER on Linux, IOSSIOSPEED on macOS)
//   - Console raw mode with exactly-once restore
//   - Single goroutine poll loop over both endpoints, no timeouts
//   - Self-pipe mechanism for stopping the loop from a signal handler
//   - PTY-based tests
//
// Example usage:
//
//	port, err := serial.Open(serial.Config{Device: "/dev/ttyUSB0"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	raw, err := serial.EnterRawMode(int(os.Stdin.Fd()), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer raw.Restore()
//
//	bridge, err := serial.NewBridge(port, os.Stdin, os.Stdout)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bridge.Close()
//
//	// Returns when either side closes; Stop from another goroutine ends it early.
//	err = bridge.Run()
package serial
