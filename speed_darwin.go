//go:build darwin

package serial

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA

	// _IOW('T', 2, speed_t) from IOKit/serial/ioss.h.
	iossiospeed = 0x80085402
)

// setSpeed uses IOSSIOSPEED, which accepts rates the termios speed
// fields reject. It must run after the termios apply, which would
// otherwise reset the rate.
func setSpeed(fd, baud int) error {
	speed := uint64(baud)
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), iossiospeed, uintptr(unsafe.Pointer(&speed))); errno != 0 {
		return errno
	}
	return nil
}
