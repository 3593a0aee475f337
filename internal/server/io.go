package server

import (
	"github.com/relaycore/ircd/internal/conn"
	"github.com/relaycore/ircd/internal/dispatch"
	"github.com/relaycore/ircd/internal/dnsresolve"
	"github.com/relaycore/ircd/internal/module"
	"github.com/relaycore/ircd/internal/reactor"
	"github.com/relaycore/ircd/pkg/ircwire"
)

// commandPayload is what EventPreCommand/EventPostCommand subscribers
// receive: the session issuing the line and its parsed invocation.
type commandPayload struct {
	Session *Session
	Invocation dispatch.Invocation
}

// acceptOn accepts every pending connection on a listening fd and hands
// each one to the reactor as a fresh Session, per spec.md §4.B/§4.D. The
// accepted socket's fd is resolved before any TLS upgrade and used for its
// reactor registration, since terminating TLS wraps the same underlying
// socket without changing its descriptor.
func (ctx *Context) acceptOn(entry *listenerEntry) {
	for {
		raw, err := entry.ln.Accept()
		if err != nil {
			return
		}
		fd, err := rawFD(rawTCPConn(raw))
		if err != nil {
			ctx.Log.Warn("accept: could not resolve fd: %v", err)
			raw.Close()
			continue
		}
		upgraded, err := entry.upgrader.Upgrade(raw)
		if err != nil {
			ctx.Log.Warn("tls upgrade from %s failed: %v", raw.RemoteAddr(), err)
			raw.Close()
			continue
		}
		c := conn.New(fd, upgraded)
		s := newSession(ctx, c)
		ctx.trackSession(s)
		if err := ctx.Engine.Add(fd, reactor.Read); err != nil {
			ctx.Log.Error("accept: reactor.Add(%d): %v", fd, err)
			ctx.untrackSession(s)
			c.Close()
			continue
		}
		ctx.startReverseDNS(s)
	}
}

// startReverseDNS kicks off an async PTR lookup for a freshly accepted
// connection's peer IP, if a resolver is configured. The result arrives
// later via dnsResults, drained once per Run iteration.
func (ctx *Context) startReverseDNS(s *Session) {
	if ctx.DNS == nil {
		return
	}
	host, _, err := splitHostPort(s.Conn.RemoteAddr().String())
	if err != nil || host == "" {
		return
	}
	ctx.DNS.LookupAsync(s.Conn.FD, host, ctx.dnsResults)
}

// applyDNSResult installs a resolved hostname once a background PTR
// lookup completes. A session gone by the time the lookup returns (fd
// reused or closed) is silently ignored, and a result belonging to a
// now-different connection on the same fd is likewise discarded since
// fds are only handed out after the reactor forgets the old one.
func (ctx *Context) applyDNSResult(res dnsresolve.Result) {
	if res.Host == "" {
		return
	}
	s, ok := ctx.sessionByFD(res.FD)
	if !ok {
		return
	}
	if s.Conn.State == conn.Registered {
		if s.User == nil || s.User.DisplayedHost != s.User.RealHost {
			return // a vhost already overrode the displayed host
		}
		s.User.RealHost = res.Host
		s.User.DisplayedHost = res.Host
		return
	}
	s.Conn.ResolvedHost = res.Host
}

func (ctx *Context) handleReadable(s *Session) {
	lines, overflow, err := s.Conn.RecvReady()
	for _, line := range lines {
		if !s.Conn.ChargeFlood(len(line)) {
			ctx.killSession(s, "Excess Flood")
			return
		}
		ctx.dispatchLine(s, line)
		if s.Conn.State == conn.Quitting || s.Conn.State == conn.Dead {
			return
		}
	}
	if overflow {
		ctx.killSession(s, "RecvQ exceeded")
		return
	}
	if err != nil {
		ctx.killSession(s, quitReasonForError(err))
	}
}

func (ctx *Context) handleWritable(s *Session) {
	ctx.flushOrArm(s)
}

// flushOrArm drains as much of s's output buffer as the socket accepts,
// then arms or disarms write-readiness on the reactor depending on
// whether anything remains queued.
func (ctx *Context) flushOrArm(s *Session) {
	drained, ok := s.Conn.SendReady()
	if !ok {
		ctx.killSession(s, "Write error")
		return
	}
	interest := reactor.Read
	if !drained {
		interest |= reactor.Write
	}
	if err := ctx.Engine.Modify(s.Conn.FD, interest); err != nil {
		ctx.killSession(s, "Write error")
	}
}

func (ctx *Context) dispatchLine(s *Session, line string) {
	msg, ok := ircwire.Parse(line)
	if !ok {
		return
	}
	inv := dispatch.Invocation{Command: msg.Command, Params: msg.Params}
	if ctx.Metrics != nil {
		ctx.Metrics.CommandsTotal.WithLabelValues(inv.Command).Inc()
	}
	payload := commandPayload{Session: s, Invocation: inv}
	if ctx.Modules.Fire(module.EventPreCommand, payload) {
		return
	}
	ctx.Commands.Dispatch(s, inv)
	ctx.Modules.Fire(module.EventPostCommand, payload)
}

func quitReasonForError(err error) string {
	if err.Error() == "EOF" {
		return "Client closed connection"
	}
	return "Read error: " + err.Error()
}
