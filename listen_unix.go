//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package wsengine

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// listenControl returns the socket hook applied to the listening socket
// before bind.
func listenControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	if !reusePort {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		})
		if err != nil {
			return err
		}
		return serr
	}
}
