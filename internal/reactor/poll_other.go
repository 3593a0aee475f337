//go:build !linux

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pollBackend is the portable fallback backend for non-Linux platforms,
// built on poll(2) via golang.org/x/sys/unix. It trades the O(1)
// epoll_wait for an O(n) scan, acceptable off the Linux hot path that
// production deployments actually run on.
type pollBackend struct {
	mu    sync.Mutex
	fds   map[int]Interest
}

func NewPollBackend() (*pollBackend, error) {
	return &pollBackend{fds: make(map[int]Interest)}, nil
}

func (b *pollBackend) Add(fd int, interest Interest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fds[fd] = interest
	return nil
}

func (b *pollBackend) Modify(fd int, interest Interest) error {
	return b.Add(fd, interest)
}

func (b *pollBackend) Remove(fd int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.fds, fd)
	return nil
}

func (b *pollBackend) Wait(timeout time.Duration) ([]Event, error) {
	b.mu.Lock()
	pollfds := make([]unix.PollFd, 0, len(b.fds))
	order := make([]int, 0, len(b.fds))
	for fd, interest := range b.fds {
		var ev int16
		if interest&Read != 0 {
			ev |= unix.POLLIN
		}
		if interest&Write != 0 {
			ev |= unix.POLLOUT
		}
		pollfds = append(pollfds, unix.PollFd{Fd: int32(fd), Events: ev})
		order = append(order, fd)
	}
	b.mu.Unlock()

	ms := int(timeout / time.Millisecond)
	if timeout < 0 {
		ms = -1
	}
	if len(pollfds) == 0 {
		time.Sleep(timeout)
		return nil, nil
	}

	n, err := unix.Poll(pollfds, ms)
	if err != nil || n == 0 {
		return nil, err
	}

	out := make([]Event, 0, n)
	for i, pfd := range pollfds {
		if pfd.Revents == 0 {
			continue
		}
		switch {
		case pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0:
			out = append(out, Event{FD: order[i], Kind: EventError})
		default:
			if pfd.Revents&unix.POLLIN != 0 {
				out = append(out, Event{FD: order[i], Kind: EventRead})
			}
			if pfd.Revents&unix.POLLOUT != 0 {
				out = append(out, Event{FD: order[i], Kind: EventWrite})
			}
		}
	}
	return out, nil
}

func (b *pollBackend) Close() error { return nil }

func DefaultBackend() (Backend, error) {
	return NewPollBackend()
}
