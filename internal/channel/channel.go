// Package channel implements the Channel & Membership object from spec.md
// §3/§4.E: member map, mode bitset, ban/invex/except lists and topic.
package channel

import (
	"time"

	"github.com/relaycore/ircd/internal/extensible"
	"github.com/relaycore/ircd/internal/ids"
)

// Prefix is a single membership flag. Higher privilege has a larger value,
// so sorting a member's flags by value, largest first, yields IRC's
// conventional display order.
type Prefix uint8

const (
	PrefixNone    Prefix = 0
	PrefixVoice   Prefix = 1 << iota
	PrefixHalfop
	PrefixOp
	PrefixAdmin
	PrefixFounder
)

// Symbol returns the display character for the highest flag set, or ""
// for a plain member.
func (p Prefix) Symbol() string {
	switch {
	case p&PrefixFounder != 0:
		return "~"
	case p&PrefixAdmin != 0:
		return "&"
	case p&PrefixOp != 0:
		return "@"
	case p&PrefixHalfop != 0:
		return "%"
	case p&PrefixVoice != 0:
		return "+"
	default:
		return ""
	}
}

func (p Prefix) AtLeastHalfop() bool { return p&(PrefixHalfop|PrefixOp|PrefixAdmin|PrefixFounder) != 0 }
func (p Prefix) AtLeastOp() bool     { return p&(PrefixOp|PrefixAdmin|PrefixFounder) != 0 }

// ModeSet mirrors user.ModeSet: a bitset over the channel mode alphabet,
// bit positions assigned dynamically by internal/modes.
type ModeSet uint64

func (m ModeSet) Has(bit uint) bool { return m&(1<<bit) != 0 }
func (m *ModeSet) Set(bit uint)     { *m |= 1 << bit }
func (m *ModeSet) Clear(bit uint)   { *m &^= 1 << bit }

// MaskEntry is one ban/except/invex list entry (§3 Ban/Mask entry).
type MaskEntry struct {
	Mask    string
	Setter  string
	SetTime time.Time
}

// MaskListCap bounds ban/except/invex lists (§5 resource limits).
const MaskListCap = 100

type Channel struct {
	ID ids.ChannelID

	Name    string // canonical case, begins with '#' or a configured prefix
	Topic   string
	Setter  string
	TopicAt time.Time

	CreatedAt time.Time

	Members map[ids.UserID]Prefix

	Modes ModeSet
	Key   string
	Limit int // 0 means unset

	Bans    []MaskEntry
	Excepts []MaskEntry
	Invex   []MaskEntry

	// Persistent channels (mode +P-equivalent, module-defined) survive
	// emptying; see §3 Channel invariant.
	Persistent bool

	Ext extensible.Bag
}

func New(id ids.ChannelID, name string) *Channel {
	return &Channel{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
		Members:   make(map[ids.UserID]Prefix),
	}
}

func (c *Channel) Empty() bool { return len(c.Members) == 0 }

func (c *Channel) HasMember(u ids.UserID) bool {
	_, ok := c.Members[u]
	return ok
}

func (c *Channel) AddMember(u ids.UserID, p Prefix) { c.Members[u] = p }
func (c *Channel) RemoveMember(u ids.UserID)        { delete(c.Members, u) }

func (c *Channel) PrefixOf(u ids.UserID) Prefix { return c.Members[u] }

func (c *Channel) SetPrefix(u ids.UserID, p Prefix) {
	if _, ok := c.Members[u]; ok {
		c.Members[u] = p
	}
}

func addMask(list []MaskEntry, mask, setter string) ([]MaskEntry, bool) {
	if len(list) >= MaskListCap {
		return list, false
	}
	for _, e := range list {
		if e.Mask == mask {
			// Already present (spec.md §8 Laws): a no-op, not a fresh
			// application -- callers treat ok=false as "nothing changed".
			return list, false
		}
	}
	return append(list, MaskEntry{Mask: mask, Setter: setter, SetTime: time.Now()}), true
}

func removeMask(list []MaskEntry, mask string) ([]MaskEntry, bool) {
	for i, e := range list {
		if e.Mask == mask {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

func (c *Channel) AddBan(mask, setter string) bool {
	list, ok := addMask(c.Bans, mask, setter)
	c.Bans = list
	return ok
}

func (c *Channel) RemoveBan(mask string) bool {
	list, ok := removeMask(c.Bans, mask)
	c.Bans = list
	return ok
}

func (c *Channel) AddExcept(mask, setter string) bool {
	list, ok := addMask(c.Excepts, mask, setter)
	c.Excepts = list
	return ok
}

func (c *Channel) RemoveExcept(mask string) bool {
	list, ok := removeMask(c.Excepts, mask)
	c.Excepts = list
	return ok
}

func (c *Channel) AddInvex(mask, setter string) bool {
	list, ok := addMask(c.Invex, mask, setter)
	c.Invex = list
	return ok
}

func (c *Channel) RemoveInvex(mask string) bool {
	list, ok := removeMask(c.Invex, mask)
	c.Invex = list
	return ok
}
