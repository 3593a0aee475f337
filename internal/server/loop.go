package server

import (
	"time"

	"github.com/relaycore/ircd/internal/conn"
	"github.com/relaycore/ircd/internal/module"
	"github.com/relaycore/ircd/internal/reactor"
)

// tickInterval bounds how long one reactor.Wait call blocks, so the
// event loop still gets to run ping/registration-timeout and quit-queue
// housekeeping even on an idle server (spec.md §4.J).
const tickInterval = time.Second

// Run is the single-threaded event loop from spec.md §4.J: it waits on
// the reactor, dispatches readiness to listeners or sessions, then runs
// one round of timer and quit-queue housekeeping per iteration. It
// returns only when stop is closed, a RESTART/DIE halt has been
// requested, or the reactor reports a fatal error.
func (ctx *Context) Run(stop <-chan struct{}, rehash <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return ctx.shutdown()
		default:
		}
		if ctx.haltRequested {
			return ctx.shutdown()
		}

		events, err := ctx.Engine.Wait(tickInterval)
		if err != nil {
			return err
		}

		for _, ev := range events {
			if entry, ok := ctx.listeners[ev.FD]; ok {
				if ev.Kind == reactor.EventRead {
					ctx.acceptOn(entry)
				}
				continue
			}
			s, ok := ctx.sessionByFD(ev.FD)
			if !ok {
				continue
			}
			switch ev.Kind {
			case reactor.EventRead:
				ctx.handleReadable(s)
			case reactor.EventWrite:
				ctx.handleWritable(s)
			case reactor.EventError:
				ctx.killSession(s, "Connection reset")
			}
		}

		select {
		case <-rehash:
			ctx.runRehash()
		default:
		}

		ctx.drainDNSResults()
		ctx.runTick(time.Now())
		ctx.reapQuitQueue()
	}
}

// drainDNSResults applies every background reverse-DNS lookup that
// finished since the last iteration, receiving until dnsResults has
// nothing ready.
func (ctx *Context) drainDNSResults() {
	if ctx.dnsResults == nil {
		return
	}
	for {
		select {
		case res := <-ctx.dnsResults:
			ctx.applyDNSResult(res)
		default:
			return
		}
	}
}

// runTick applies the ping/registration-timeout discipline to every live
// connection (§4.D). Sessions whose Conn.Tick produces a quit reason are
// queued for teardown rather than torn down mid-scan.
func (ctx *Context) runTick(now time.Time) {
	limits := ctx.Config.Get().Limits
	pingFreq := conn.DefaultPingFreq
	pingTimeout := conn.DefaultPingTimeout

	for _, s := range ctx.conns {
		if s.Conn.State == conn.Quitting || s.Conn.State == conn.Dead {
			continue
		}
		if s.Conn.State != conn.Registered {
			deadline := s.Conn.RegistrationDeadline
			if limits.RegistrationTimeoutSec > 0 {
				deadline = s.Conn.LastActivity.Add(time.Duration(limits.RegistrationTimeoutSec) * time.Second)
			}
			if now.After(deadline) {
				ctx.killSession(s, "Registration timeout")
				continue
			}
		}
		pingLine, quitReason := s.Conn.Tick(now, pingFreq, pingTimeout, ctx.Hostname)
		if quitReason != "" {
			ctx.killSession(s, quitReason)
			continue
		}
		if pingLine != "" {
			s.WriteLine(pingLine)
		}
	}
}

// reapQuitQueue tears down every session queued by killSession during
// this iteration: channel parts, directory removal, module notification,
// and finally the reactor/fd cleanup. Deferred to the end of the
// iteration so handlers never have to worry about a session they're
// holding disappearing mid-dispatch (§4.J).
func (ctx *Context) reapQuitQueue() {
	if len(ctx.quitQueue) == 0 {
		return
	}
	queue := ctx.quitQueue
	ctx.quitQueue = nil

	for _, s := range queue {
		ctx.teardownSession(s)
	}
}

func (ctx *Context) teardownSession(s *Session) {
	reason := s.Conn.QuitReason
	if reason == "" {
		reason = "Client Quit"
	}

	if s.User != nil {
		chans := ctx.channelsOfUser(s)
		ctx.Router.ToChannels(chans, ":"+s.Source()+" QUIT :"+reason, s.User.ID)
		for _, c := range chans {
			if emptied := ctx.Dir.Part(s.User.ID, c.ID); emptied && !c.Persistent {
				ctx.destroyChannel(c)
			}
		}
		ctx.Modules.Fire(module.EventDisconnect, s)
		ctx.recordWhowas(s.User)
		ctx.Dir.RemoveUser(s.User.ID)
	}

	ctx.untrackSession(s)
	ctx.Engine.Remove(s.Conn.FD)
	s.Conn.Close()
}

// shutdown broadcasts ERROR to every connected session and tears them all
// down, for a clean exit on SIGTERM/SIGINT (ambient to every command
// handler; grounded on the ERROR-then-close convention every RFC client
// expects before a server vanishes).
func (ctx *Context) shutdown() error {
	for _, s := range ctx.conns {
		s.Conn.Write("ERROR :Closing Link: " + ctx.Hostname + " (Server shutting down)")
		ctx.flushOrArm(s)
	}
	for _, s := range ctx.conns {
		ctx.killSession(s, "Server shutting down")
	}
	ctx.reapQuitQueue()
	return ctx.Engine.Close()
}

// runRehash reloads the config snapshot and fires EventRehash so modules
// can react (e.g. reloading their own option blocks).
func (ctx *Context) runRehash() {
	if err := ctx.Config.Rehash(); err != nil {
		ctx.Log.Error("rehash failed: %v", err)
		return
	}
	ctx.Modules.Fire(module.EventRehash, ctx.Config.Get())
}
