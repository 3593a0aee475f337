// Package directory implements the core lookup tables (spec.md §3, §4.F):
// nick->User, name->Channel, uid->User, all maintained in lockstep by the
// mutators here. No other package is allowed to write these indices
// directly -- Design Notes §9's Context aggregates exactly one Directory.
package directory

import (
	"strings"

	"github.com/google/uuid"

	"github.com/relaycore/ircd/internal/channel"
	"github.com/relaycore/ircd/internal/ids"
	"github.com/relaycore/ircd/internal/user"
	"github.com/relaycore/ircd/pkg/ircmask"
)

type Directory struct {
	alloc ids.Allocator

	users    map[ids.UserID]*user.User
	byNick   map[string]ids.UserID // casefolded nick -> id
	byUID    map[string]ids.UserID

	channels map[ids.ChannelID]*channel.Channel
	byName   map[string]ids.ChannelID // casefolded name -> id
}

func New() *Directory {
	return &Directory{
		users:    make(map[ids.UserID]*user.User),
		byNick:   make(map[string]ids.UserID),
		byUID:    make(map[string]ids.UserID),
		channels: make(map[ids.ChannelID]*channel.Channel),
		byName:   make(map[string]ids.ChannelID),
	}
}

// NewUser mints a fresh User with a stable UUID-backed UID and registers
// it under nick. Returns false if nick is already taken.
func (d *Directory) NewUser(nick string) (*user.User, bool) {
	key := ircmask.Fold(nick)
	if _, taken := d.byNick[key]; taken {
		return nil, false
	}
	id := d.alloc.NextUser()
	uid := uuid.NewString()
	u := user.New(id, uid, nick)
	d.users[id] = u
	d.byNick[key] = id
	d.byUID[uid] = id
	return u, true
}

func (d *Directory) UserByNick(nick string) (*user.User, bool) {
	id, ok := d.byNick[ircmask.Fold(nick)]
	if !ok {
		return nil, false
	}
	return d.users[id], true
}

func (d *Directory) UserByID(id ids.UserID) (*user.User, bool) {
	u, ok := d.users[id]
	return u, ok
}

func (d *Directory) UserByUID(uid string) (*user.User, bool) {
	id, ok := d.byUID[uid]
	if !ok {
		return nil, false
	}
	return d.users[id], true
}

// Rename changes a user's nick, rejecting the change if newNick is taken
// by someone else (§4.F). A no-op (case-insensitive same nick, §8 laws)
// returns ok=true, changed=false.
func (d *Directory) Rename(id ids.UserID, newNick string) (changed, ok bool) {
	u, exists := d.users[id]
	if !exists {
		return false, false
	}
	newKey := ircmask.Fold(newNick)
	oldKey := ircmask.Fold(u.Nick)
	if newKey == oldKey {
		u.Nick = newNick
		return false, true
	}
	if owner, taken := d.byNick[newKey]; taken && owner != id {
		return false, false
	}
	delete(d.byNick, oldKey)
	d.byNick[newKey] = id
	u.Nick = newNick
	return true, true
}

// RemoveUser deletes a user from all indices. Callers are responsible for
// having already removed it from every Channel's member map (invariant a).
func (d *Directory) RemoveUser(id ids.UserID) {
	u, ok := d.users[id]
	if !ok {
		return
	}
	delete(d.byNick, ircmask.Fold(u.Nick))
	delete(d.byUID, u.UID)
	delete(d.users, id)
}

func (d *Directory) Users() []*user.User {
	out := make([]*user.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	return out
}

func (d *Directory) UserCount() int { return len(d.users) }

// --- channels ---

func (d *Directory) NewChannel(name string) *channel.Channel {
	id := d.alloc.NextChannel()
	c := channel.New(id, name)
	d.channels[id] = c
	d.byName[ircmask.Fold(name)] = id
	return c
}

func (d *Directory) ChannelByName(name string) (*channel.Channel, bool) {
	id, ok := d.byName[ircmask.Fold(name)]
	if !ok {
		return nil, false
	}
	return d.channels[id], true
}

func (d *Directory) ChannelByID(id ids.ChannelID) (*channel.Channel, bool) {
	c, ok := d.channels[id]
	return c, ok
}

// DestroyChannel removes a channel from the directory. Callers must check
// Channel.Empty() && !Persistent first (§3 invariant).
func (d *Directory) DestroyChannel(id ids.ChannelID) {
	c, ok := d.channels[id]
	if !ok {
		return
	}
	delete(d.byName, ircmask.Fold(c.Name))
	delete(d.channels, id)
}

func (d *Directory) Channels() []*channel.Channel {
	out := make([]*channel.Channel, 0, len(d.channels))
	for _, c := range d.channels {
		out = append(out, c)
	}
	return out
}

func (d *Directory) ChannelCount() int { return len(d.channels) }

// Join inserts a membership edge on both sides, keeping the reverse-set
// invariant (spec.md §3 invariant (c)) by construction. A no-op for a uid
// already a member of cid (spec.md §8 Laws: re-joining is a no-op), so it
// can never reset an existing member's prefix back to PrefixNone.
func (d *Directory) Join(uid ids.UserID, cid ids.ChannelID, p channel.Prefix) {
	u := d.users[uid]
	c := d.channels[cid]
	if u == nil || c == nil || c.HasMember(uid) {
		return
	}
	c.AddMember(uid, p)
	u.JoinChannel(cid)
}

// Part removes a membership edge on both sides. Returns true if the
// channel became empty as a result (caller decides whether to destroy it).
func (d *Directory) Part(uid ids.UserID, cid ids.ChannelID) (emptied bool) {
	u := d.users[uid]
	c := d.channels[cid]
	if u == nil || c == nil {
		return false
	}
	c.RemoveMember(uid)
	u.LeaveChannel(cid)
	return c.Empty()
}

// NormalizeChannelName ensures a leading '#' unless name already starts
// with '#' or one of extraPrefixes. Case is left unchanged.
func NormalizeChannelName(name string, extraPrefixes string) string {
	if name == "" {
		return name
	}
	if strings.ContainsRune("#"+extraPrefixes, rune(name[0])) {
		return name
	}
	return "#" + name
}
