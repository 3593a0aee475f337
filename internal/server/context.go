// Package server wires every core component into the event loop glue from
// spec.md §4.J and implements the command/mode handlers that make up the
// wire protocol surface. Context replaces the original daemon's global
// singletons (ServerInstance, Config) per Design Notes §9: it is
// constructed once and passed explicitly, so tests can build a fresh one
// per scenario instead of sharing process-wide state.
package server

import (
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/relaycore/ircd/internal/conn"
	"github.com/relaycore/ircd/internal/config"
	"github.com/relaycore/ircd/internal/directory"
	"github.com/relaycore/ircd/internal/dispatch"
	"github.com/relaycore/ircd/internal/dnsresolve"
	"github.com/relaycore/ircd/internal/ids"
	"github.com/relaycore/ircd/internal/metrics"
	"github.com/relaycore/ircd/internal/modes"
	"github.com/relaycore/ircd/internal/module"
	"github.com/relaycore/ircd/internal/reactor"
	"github.com/relaycore/ircd/internal/route"
	"github.com/relaycore/ircd/internal/tlsboundary"
	"github.com/relaycore/ircd/pkg/logger"
)

// ChannelPrefixes other than the mandatory '#'.
const ExtraChannelPrefixes = "&"

// PrefixChars is the display order of membership prefix symbols.
const PrefixChars = "~&@%+"

type Context struct {
	Hostname string
	Version  string
	Created  time.Time

	Config  *config.Store
	Dir     *directory.Directory
	Engine  *reactor.Engine
	Modules *module.Registry
	Metrics *metrics.Metrics
	Log     *logger.Logger

	Commands  *dispatch.Registry[*Session]
	UserModes *modes.Registry[*Session]
	ChanModes *modes.Registry[*chanModeEnv]

	Router *router

	Motd []string

	whowas []whowasEntry

	conns    map[int]*Session
	byUserID map[ids.UserID]*Session

	listeners map[int]*listenerEntry

	quitQueue []*Session

	upgrader tlsboundary.StreamUpgrader

	// DNS, when non-nil, resolves an accepted connection's IP to a
	// hostname in the background; dnsResults is drained once per Run
	// iteration (§4.J) so a slow or hung resolver never blocks dispatch.
	DNS        *dnsresolve.Resolver
	dnsResults chan dnsresolve.Result

	haltRequested     bool
	restartRequested  bool
}

// EnableDNS attaches a reverse-DNS resolver used to fill in User.RealHost
// for newly accepted connections (spec.md §3, §5). Must be called before
// Listen starts accepting connections.
func (ctx *Context) EnableDNS(r *dnsresolve.Resolver) {
	ctx.DNS = r
	ctx.dnsResults = make(chan dnsresolve.Result, 256)
}

// requestHalt asks the event loop to shut down (DIE) or shut down and have
// its caller re-exec (RESTART) at the top of the next iteration, rather
// than tearing down connections from inside a command handler.
func (ctx *Context) requestHalt(restart bool) {
	ctx.haltRequested = true
	ctx.restartRequested = restart
}

// RestartRequested reports whether the server halted because of RESTART
// (as opposed to DIE or external shutdown), so main() knows whether to
// re-exec after Run returns.
func (ctx *Context) RestartRequested() bool { return ctx.restartRequested }

// listenerEntry remembers which fds in the reactor's interest set are
// listening sockets (accept-only) rather than client connections, and
// which upgrader (plaintext or TLS) newly accepted conns on it go through.
type listenerEntry struct {
	ln       net.Listener
	upgrader tlsboundary.StreamUpgrader
}

func NewContext(hostname, version string, cfgStore *config.Store, log *logger.Logger, metricsReg *metrics.Metrics) (*Context, error) {
	backend, err := reactor.DefaultBackend()
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		Hostname:  hostname,
		Version:   version,
		Created:   time.Now(),
		Config:    cfgStore,
		Dir:       directory.New(),
		Engine:    reactor.New(backend),
		Modules:   module.NewRegistry(),
		Metrics:   metricsReg,
		Log:       log,
		Commands:  dispatch.NewRegistry[*Session](),
		UserModes: modes.NewRegistry[*Session](),
		ChanModes: modes.NewRegistry[*chanModeEnv](),
		conns:     make(map[int]*Session),
		byUserID:  make(map[ids.UserID]*Session),
		listeners: make(map[int]*listenerEntry),
		upgrader:  tlsboundary.None{},
	}
	ctx.Router = newRouter(ctx)

	ctx.Commands.IsRegistered = func(s *Session) bool { return s.Registered() }
	ctx.Commands.IsOper = func(s *Session) bool { return s.User != nil && s.User.IsOper() }
	ctx.Commands.Reply = func(s *Session, numeric string, params ...string) {
		s.ReplyNumeric(numeric, params...)
	}

	RegisterCommands(ctx)
	RegisterModes(ctx)

	return ctx, nil
}

// ListenerSpec describes one bound listener, per spec.md §3 Listener.
type ListenerSpec struct {
	Address  string
	TLS      bool
	Upgrader tlsboundary.StreamUpgrader
}

// Listen binds spec.Address and registers the listening socket with the
// reactor for read (connection-pending) readiness. The upgrader (TLS or
// passthrough) is applied to every connection accepted off it.
func (ctx *Context) Listen(spec ListenerSpec) (net.Listener, error) {
	ln, err := net.Listen("tcp", spec.Address)
	if err != nil {
		return nil, err
	}
	fd, err := rawFD(ln.(syscall.Conn))
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("server: listener %s: %w", spec.Address, err)
	}
	upgrader := spec.Upgrader
	if upgrader == nil {
		upgrader = tlsboundary.None{}
	}
	ctx.listeners[fd] = &listenerEntry{ln: ln, upgrader: upgrader}
	if err := ctx.Engine.Add(fd, reactor.Read); err != nil {
		delete(ctx.listeners, fd)
		ln.Close()
		return nil, err
	}
	return ln, nil
}

func (ctx *Context) trackSession(s *Session) {
	ctx.conns[s.Conn.FD] = s
	if ctx.Metrics != nil {
		ctx.Metrics.Connections.Inc()
	}
}

func (ctx *Context) untrackSession(s *Session) {
	ctx.unbindUser(s)
	delete(ctx.conns, s.Conn.FD)
	if ctx.Metrics != nil {
		ctx.Metrics.Connections.Dec()
	}
}

func (ctx *Context) sessionByFD(fd int) (*Session, bool) {
	s, ok := ctx.conns[fd]
	return s, ok
}

// bindUser indexes s by its User's id once registration completes, so
// route.Router can resolve PRIVMSG/JOIN/etc. fanout in O(1) instead of
// scanning every open connection.
func (ctx *Context) bindUser(s *Session) {
	if s.User == nil {
		return
	}
	ctx.byUserID[s.User.ID] = s
	if ctx.Metrics != nil {
		ctx.Metrics.Users.Inc()
	}
}

// unbindUser removes s from the id index. Safe to call on a session that
// was never registered or was already unbound.
func (ctx *Context) unbindUser(s *Session) {
	if s.User == nil {
		return
	}
	if cur, ok := ctx.byUserID[s.User.ID]; !ok || cur != s {
		return
	}
	delete(ctx.byUserID, s.User.ID)
	if ctx.Metrics != nil {
		ctx.Metrics.Users.Dec()
	}
}

// queueQuit marks s for teardown at the end of the current event-loop
// iteration (spec.md §4.J), rather than mutating directory/channel state
// mid-dispatch.
func (ctx *Context) queueQuit(s *Session) {
	ctx.quitQueue = append(ctx.quitQueue, s)
}

// killSession is the single path by which the server forcibly ends a
// connection (SendQ exceeded, KILL, flood, ping timeout): it records the
// reason and defers the actual teardown to the quit queue so callers deep
// in dispatch never have to worry about invalidating the session they're
// holding.
func (ctx *Context) killSession(s *Session, reason string) {
	if s.Conn.State == conn.Quitting || s.Conn.State == conn.Dead {
		return
	}
	s.Conn.QuitReason = reason
	s.Conn.State = conn.Quitting
	if ctx.Metrics != nil {
		ctx.Metrics.KillsTotal.Inc()
		if reason == "Excess Flood" {
			ctx.Metrics.FloodKills.Inc()
		}
	}
	ctx.queueQuit(s)
}
