package serial

import (
	"fmt"
	"io"
	"log"
	"sync"

	"golang.org/x/term"
)

// RawMode is a console switched to raw mode. It owns the attributes
// captured before the switch and puts them back on Restore.
type RawMode struct {
	fd    int
	state *term.State
	once  sync.Once
	err   error
	log   *log.Logger
}

// EnterRawMode snapshots the attributes of the terminal on fd and
// switches it to raw mode: no line buffering, no echo, no input or
// output translation, no signal characters, reads return after one byte.
//
// Callers defer Restore immediately after a successful call.
func EnterRawMode(fd int, logger *log.Logger) (*RawMode, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, &TerminalConfigError{Err: err}
	}
	return &RawMode{fd: fd, state: state, log: logger}, nil
}

// Restore reapplies the captured attributes. Only the first call touches
// the terminal; later calls return its result.
func (r *RawMode) Restore() error {
	r.once.Do(func() {
		if err := term.Restore(r.fd, r.state); err != nil {
			r.err = &TerminalConfigError{Err: fmt.Errorf("restore: %w", err)}
			return
		}
		r.log.Print("restored terminal settings")
	})
	return r.err
}
