package server

import (
	"fmt"
	"net"
	"syscall"
)

// rawTCPConn asserts that an accepted net.Conn exposes a raw fd (true of
// every listener this package creates, which are always "tcp").
func rawTCPConn(c net.Conn) syscall.Conn {
	sc, ok := c.(syscall.Conn)
	if !ok {
		panic(fmt.Sprintf("server: accepted conn of type %T exposes no raw fd", c))
	}
	return sc
}

// rawFD extracts the kernel file descriptor backing a net.Conn or
// net.Listener so it can be registered directly with the reactor. The
// returned fd remains owned by c; callers must not close it themselves.
func rawFD(c syscall.Conn) (int, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	var ctrlErr error
	if err := rc.Control(func(ufd uintptr) { fd = int(ufd) }); err != nil {
		ctrlErr = err
	}
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	if fd == 0 {
		return 0, fmt.Errorf("server: could not resolve raw fd")
	}
	return fd, nil
}
