// Package route implements PRIVMSG/NOTICE/JOIN/PART/KICK/QUIT/MODE/TOPIC
// fanout from spec.md §4.K: per-channel and per-user delivery with
// broadcast-id duplicate suppression so a user in several of the sender's
// shared channels gets exactly one copy.
package route

import (
	"github.com/relaycore/ircd/internal/channel"
	"github.com/relaycore/ircd/internal/directory"
	"github.com/relaycore/ircd/internal/ids"
	"github.com/relaycore/ircd/internal/user"
)

// Sink delivers one already-formatted line to a connected user. The
// concrete implementation (internal/server) looks up the user's Conn and
// writes to its output buffer.
type Sink interface {
	DeliverLine(uid ids.UserID, line string)
}

// Router owns the monotonic broadcast-id counter. Ids never leak outside
// one dispatch (§4.K) -- NextBroadcast is called once per fanout and the
// stamp is only ever compared within that call's lifetime.
type Router struct {
	dir  *directory.Directory
	sink Sink

	nextID uint64
}

func New(dir *directory.Directory, sink Sink) *Router {
	return &Router{dir: dir, sink: sink}
}

func (r *Router) newBroadcastID() uint64 {
	r.nextID++
	return r.nextID
}

// ToUser delivers line to exactly one user by id, if they're connected
// locally. No link to other servers exists in this design (§1 scope), so
// a missing local user means the message is simply dropped.
func (r *Router) ToUser(target ids.UserID, line string) {
	if _, ok := r.dir.UserByID(target); !ok {
		return
	}
	r.sink.DeliverLine(target, line)
}

// ToChannel fans line out to every member of c, skipping skip (the
// sender, unless echo is requested by passing ids.UserID(0)). Duplicate
// delivery is not a concern within a single channel (each member appears
// once in Members), but ToChannels below needs the broadcast id to
// dedupe across several channels in one call.
func (r *Router) ToChannel(c *channel.Channel, line string, skip ids.UserID) {
	id := r.newBroadcastID()
	r.deliverChannel(c, line, skip, id)
}

func (r *Router) deliverChannel(c *channel.Channel, line string, skip ids.UserID, stamp uint64) {
	for uid := range c.Members {
		if uid == skip {
			continue
		}
		u, ok := r.dir.UserByID(uid)
		if !ok || u.BroadcastStamp == stamp {
			continue
		}
		u.BroadcastStamp = stamp
		r.sink.DeliverLine(uid, line)
	}
}

// ToChannels fans line out to the union of every given channel's members
// (e.g. a QUIT notification reaching every channel peer exactly once),
// skipping skip, using one broadcast id for the whole call so a user
// present in several channels is delivered to exactly once.
func (r *Router) ToChannels(cs []*channel.Channel, line string, skip ids.UserID) {
	stamp := r.newBroadcastID()
	for _, c := range cs {
		r.deliverChannel(c, line, skip, stamp)
	}
}

// ChannelsOf returns every Channel u currently belongs to, resolved
// through the directory (u.Channels only stores ids).
func ChannelsOf(dir *directory.Directory, u *user.User) []*channel.Channel {
	out := make([]*channel.Channel, 0, len(u.Channels))
	for cid := range u.Channels {
		if c, ok := dir.ChannelByID(cid); ok {
			out = append(out, c)
		}
	}
	return out
}
