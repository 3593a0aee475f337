// Package ids defines the stable, monotonically increasing handles that
// break the User<->Channel membership cycle (Design Notes §9): instead of
// raw pointers in both directions, memberships store a UserID/ChannelID
// pair and every lookup goes back through the directory's slabs.
package ids

type UserID uint64

type ChannelID uint64

// Allocator mints monotonically increasing ids of either kind. Not
// goroutine-safe by design: the relay core is single-threaded cooperative
// (§5), so no locking is needed here.
type Allocator struct {
	nextUser    UserID
	nextChannel ChannelID
}

func (a *Allocator) NextUser() UserID {
	a.nextUser++
	return a.nextUser
}

func (a *Allocator) NextChannel() ChannelID {
	a.nextChannel++
	return a.nextChannel
}
