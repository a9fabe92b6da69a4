// Command serial-connect attaches the terminal to a serial device.
//
//	serial-connect /dev/ttyUSB0
//
// Keystrokes go to the device one byte per millisecond with CR sent as LF.
// Device output is printed with control bytes escaped. The program exits
// when either side closes.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	serial "github.com/luhtfiimanal/go-serial-connect"
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func parseArgs(args []string) (string, error) {
	if len(args) != 2 {
		return "", serial.ErrUsage
	}
	return args[1], nil
}

func progName(args []string) string {
	if len(args) == 0 {
		return "serial-connect"
	}
	return filepath.Base(args[0])
}

// run returns the exit code. Deferred cleanup has finished by the time
// it returns, so main can exit directly.
func run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	device, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Usage: %s /dev/<device>\n", progName(args))
		return 1
	}

	logger := log.New(stderr, "serial-connect: ", 0)

	port, err := serial.Open(serial.Config{Device: device})
	if err != nil {
		logger.Print(err)
		return 1
	}
	defer port.Close()

	// ISIG is off in raw mode, so these only arrive from outside the
	// terminal. Registered before the raw switch so none of them can
	// take the default action while the console is raw; the channel
	// holds one until the bridge exists to be stopped.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigs)

	raw, err := serial.EnterRawMode(int(stdin.Fd()), logger)
	if err != nil {
		logger.Print(err)
		return 1
	}
	defer raw.Restore()

	// report prints a diagnostic on a cooked terminal. Restore runs once,
	// so the deferred call above stays the obligation for every other path.
	report := func(v ...any) {
		if rerr := raw.Restore(); rerr != nil {
			logger.Print(rerr)
		}
		logger.Print(v...)
	}

	bridge, err := serial.NewBridge(port, stdin, stdout)
	if err != nil {
		report("bridge: ", err)
		return 1
	}
	defer bridge.Close()

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-sigs:
			bridge.Stop()
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-stopped
	}()

	err = bridge.Run()
	switch {
	case errors.Is(err, serial.ErrStreamEnded):
		if rerr := raw.Restore(); rerr != nil {
			logger.Print(rerr)
		}
		return 0
	case errors.Is(err, serial.ErrStopped):
		report("stopped by signal")
		return 1
	default:
		report(err)
		return 1
	}
}
