//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// EpollBackend is the Linux Backend implementation, grounded on the raw
// socket/syscall plumbing the pack's tcp-info tooling drives through
// golang.org/x/sys: a single epoll fd tracking every listener and client
// connection, supporting far more than the 65,535-descriptor floor §4.B
// requires (bounded only by RLIMIT_NOFILE).
type EpollBackend struct {
	epfd int
}

func NewEpollBackend() (*EpollBackend, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &EpollBackend{epfd: fd}, nil
}

func toEpollEvents(i Interest) uint32 {
	var ev uint32
	if i&Read != 0 {
		ev |= unix.EPOLLIN
	}
	if i&Write != 0 {
		ev |= unix.EPOLLOUT
	}
	if i&Edge != 0 {
		ev |= unix.EPOLLET
	}
	return ev
}

func (b *EpollBackend) Add(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (b *EpollBackend) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (b *EpollBackend) Remove(fd int) error {
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (b *EpollBackend) Wait(timeout time.Duration) ([]Event, error) {
	events := make([]unix.EpollEvent, 256)
	ms := int(timeout / time.Millisecond)
	if timeout < 0 {
		ms = -1
	}

	n, err := unix.EpollWait(b.epfd, events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		flags := events[i].Events
		switch {
		case flags&(unix.EPOLLERR|unix.EPOLLHUP) != 0:
			out = append(out, Event{FD: fd, Kind: EventError})
		default:
			if flags&unix.EPOLLIN != 0 {
				out = append(out, Event{FD: fd, Kind: EventRead})
			}
			if flags&unix.EPOLLOUT != 0 {
				out = append(out, Event{FD: fd, Kind: EventWrite})
			}
		}
	}
	return out, nil
}

func (b *EpollBackend) Close() error {
	return unix.Close(b.epfd)
}

// DefaultBackend picks the native backend for this platform.
func DefaultBackend() (Backend, error) {
	return NewEpollBackend()
}
