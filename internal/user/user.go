// Package user implements the registered-identity object from spec.md §3:
// nick, ident, hostnames, mode bitset, away state, oper type, and the
// channel membership set (stored as ids, not pointers, per Design Notes).
package user

import (
	"net"
	"time"

	"github.com/relaycore/ircd/internal/extensible"
	"github.com/relaycore/ircd/internal/ids"
)

// Mode is a single-character user mode flag (+i, +o, +w, ...).
type Mode rune

// ModeSet is a bitset over the user mode space. Modes are assigned bit
// positions the first time they're registered with the mode system
// (internal/modes), so the core never hardcodes the full alphabet.
type ModeSet uint64

func (m ModeSet) Has(bit uint) bool  { return m&(1<<bit) != 0 }
func (m *ModeSet) Set(bit uint)      { *m |= 1 << bit }
func (m *ModeSet) Clear(bit uint)    { *m &^= 1 << bit }
func (m ModeSet) Empty() bool        { return m == 0 }

type OperType struct {
	Name  string
	Class string
}

// User is a registered identity, keyed in the directory by nick (the
// ASCII-casefolded unique key) and by UID (stable across nick changes).
type User struct {
	ID ids.UserID

	Nick          string // canonical case as last set, casefold for lookups
	Ident         string
	RealHost      string
	DisplayedHost string
	IP            net.IP
	Realname      string

	SignonTime time.Time
	idleSince  time.Time

	Modes   ModeSet
	Snomask ModeSet

	Away        bool
	AwayMessage string

	Oper *OperType

	ServerOrigin string
	UID          string

	// Channels the user currently belongs to, keyed by channel id for O(1)
	// membership tests; invariant (a) of spec.md §8 is checked against the
	// mirror set stored on each Channel.
	Channels map[ids.ChannelID]struct{}

	// BroadcastStamp is the last broadcast id this user was delivered a
	// copy of a fanned-out message for, so route.Router can suppress
	// duplicate delivery across overlapping channels (spec.md §4.K).
	BroadcastStamp uint64

	Ext extensible.Bag
}

func New(id ids.UserID, uid, nick string) *User {
	now := time.Now()
	return &User{
		ID:         id,
		Nick:       nick,
		UID:        uid,
		SignonTime: now,
		idleSince:  now,
		Channels:   make(map[ids.ChannelID]struct{}),
	}
}

func (u *User) Hostmask() string {
	return u.Nick + "!" + u.Ident + "@" + u.DisplayedHost
}

func (u *User) IsOper() bool { return u.Oper != nil }

func (u *User) Touch()            { u.idleSince = time.Now() }
func (u *User) IdleSeconds() int64 { return int64(time.Since(u.idleSince).Seconds()) }

func (u *User) JoinChannel(id ids.ChannelID)  { u.Channels[id] = struct{}{} }
func (u *User) LeaveChannel(id ids.ChannelID) { delete(u.Channels, id) }
func (u *User) InChannel(id ids.ChannelID) bool {
	_, ok := u.Channels[id]
	return ok
}
