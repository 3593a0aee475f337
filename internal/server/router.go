package server

import (
	"github.com/relaycore/ircd/internal/channel"
	"github.com/relaycore/ircd/internal/directory"
	"github.com/relaycore/ircd/internal/ids"
	"github.com/relaycore/ircd/internal/route"
	"github.com/relaycore/ircd/internal/user"
)

// router adapts route.Router's Sink interface to this package's Session
// table, so PRIVMSG/JOIN/PART/etc. fanout can resolve a user id straight
// to the connection holding its output buffer.
type router struct {
	ctx *Context
	*route.Router
}

func newRouter(ctx *Context) *router {
	r := &router{ctx: ctx}
	r.Router = route.New(ctx.Dir, r)
	return r
}

func (r *router) DeliverLine(uid ids.UserID, line string) {
	if s, ok := r.ctx.byUserID[uid]; ok {
		s.WriteLine(line)
	}
}

// channelsOfUser is a thin wrapper over route.ChannelsOf to save handler
// code an extra import.
func (ctx *Context) channelsOfUser(s *Session) []*channel.Channel {
	if s.User == nil {
		return nil
	}
	return route.ChannelsOf(ctx.Dir, s.User)
}

// channelsOfUserObj is channelsOfUser for callers (WHOIS) that only have a
// *user.User, not the Session that owns it.
func (ctx *Context) channelsOfUserObj(u *user.User) []*channel.Channel {
	return route.ChannelsOf(ctx.Dir, u)
}

// newChannel mints a channel and keeps the Channels gauge in step.
func (ctx *Context) newChannel(name string) *channel.Channel {
	c := ctx.Dir.NewChannel(name)
	if ctx.Metrics != nil {
		ctx.Metrics.Channels.Inc()
	}
	return c
}

// destroyChannel removes an emptied, non-persistent channel and keeps the
// Channels gauge in step.
func (ctx *Context) destroyChannel(c *channel.Channel) {
	ctx.Dir.DestroyChannel(c.ID)
	if ctx.Metrics != nil {
		ctx.Metrics.Channels.Dec()
	}
}

// normalizeChannelName applies the server's configured channel prefix set
// to a JOIN/PART/MODE target, per spec.md §4.F.
func (ctx *Context) normalizeChannelName(name string) string {
	return directory.NormalizeChannelName(name, ExtraChannelPrefixes)
}
