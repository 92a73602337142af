//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package wsengine

import "syscall"

// SO_REUSEPORT is not available here; the option is ignored.
func listenControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	return nil
}
