package server

import (
	"github.com/relaycore/ircd/internal/channel"
	"github.com/relaycore/ircd/internal/modes"
)

// User mode bit positions. Assigned once here rather than dynamically,
// since this tree has no loadable-module mode letters yet; a module that
// wanted to claim a fresh letter would allocate the next free bit instead.
const (
	umInvisible uint = iota
	umOper
	umWallops
	umServerNotice
	umDeaf
)

// Channel mode bit positions for the flag-only (PARAM_NONE) letters.
// Prefix letters (o/v/h/a/q) and list/parameterized letters (b/e/I/k/l)
// are handled through Channel.Members/Bans/Key/Limit directly rather than
// through the bitset, matching how those letters carry state beyond a
// single bit.
const (
	cmInviteOnly uint = iota
	cmModerated
	cmNoExternal
	cmTopicLock
	cmSecret
	cmPrivate
)

// chanModeEnv is the environment type instantiating modes.Registry for
// channel-scoped letters: unlike user modes, applying a channel mode
// needs both the acting session (for ban/prefix setter bookkeeping) and
// the target Channel, which the MODE handler resolves once per line.
type chanModeEnv struct {
	S *Session
	C *channel.Channel
}

// RegisterModes wires every built-in user and channel mode letter into
// ctx's mode registries (spec.md §4.H).
func RegisterModes(ctx *Context) {
	registerUserModes(ctx)
	registerChannelFlagModes(ctx)
	registerChannelPrefixModes(ctx)
	registerChannelListModes(ctx)
	registerChannelParamModes(ctx)
}

func flagUserMode(ctx *Context, letter byte, bit uint) {
	ctx.UserModes.Register(modes.ScopeUser, letter, &modes.Handler[*Session]{
		Rule: modes.ParamNone,
		Apply: func(s *Session, add bool, _ string, _ bool) (modes.Outcome, string) {
			if s.User == nil {
				return modes.Deny, ""
			}
			if s.User.Modes.Has(bit) == add {
				// Already in the requested state (spec.md §8 Laws): a no-op,
				// excluded from the broadcast.
				return modes.Deny, ""
			}
			if add {
				s.User.Modes.Set(bit)
			} else {
				s.User.Modes.Clear(bit)
			}
			return modes.Allow, ""
		},
	})
}

func registerUserModes(ctx *Context) {
	flagUserMode(ctx, 'i', umInvisible)
	flagUserMode(ctx, 'w', umWallops)
	flagUserMode(ctx, 's', umServerNotice)
	flagUserMode(ctx, 'g', umDeaf)

	// 'o' (operator) can only be cleared by the user themselves; setting it
	// happens through OPER, never through a MODE line (§4.G OPER-only path).
	ctx.UserModes.Register(modes.ScopeUser, 'o', &modes.Handler[*Session]{
		Rule: modes.ParamNone,
		Apply: func(s *Session, add bool, _ string, _ bool) (modes.Outcome, string) {
			if add || s.User == nil || !s.User.Modes.Has(umOper) {
				return modes.Deny, ""
			}
			s.User.Modes.Clear(umOper)
			s.User.Oper = nil
			return modes.Allow, ""
		},
	})
}

func flagChanMode(ctx *Context, letter byte, bit uint) {
	ctx.ChanModes.Register(modes.ScopeChannel, letter, &modes.Handler[*chanModeEnv]{
		Rule: modes.ParamNone,
		Apply: func(env *chanModeEnv, add bool, _ string, _ bool) (modes.Outcome, string) {
			if env.C.Modes.Has(bit) == add {
				// Already in the requested state (spec.md §8 Laws): a no-op,
				// excluded from the broadcast.
				return modes.Deny, ""
			}
			if add {
				env.C.Modes.Set(bit)
			} else {
				env.C.Modes.Clear(bit)
			}
			return modes.Allow, ""
		},
	})
}

func registerChannelFlagModes(ctx *Context) {
	flagChanMode(ctx, 'i', cmInviteOnly)
	flagChanMode(ctx, 'm', cmModerated)
	flagChanMode(ctx, 'n', cmNoExternal)
	flagChanMode(ctx, 't', cmTopicLock)
	flagChanMode(ctx, 's', cmSecret)
	flagChanMode(ctx, 'p', cmPrivate)
}

func registerChannelPrefixModes(ctx *Context) {
	entries := []struct {
		letter byte
		prefix channel.Prefix
	}{
		{'q', channel.PrefixFounder},
		{'a', channel.PrefixAdmin},
		{'o', channel.PrefixOp},
		{'h', channel.PrefixHalfop},
		{'v', channel.PrefixVoice},
	}
	for _, e := range entries {
		letter, prefix := e.letter, e.prefix
		ctx.ChanModes.Register(modes.ScopeChannel, letter, &modes.Handler[*chanModeEnv]{
			Rule: modes.ParamAlways,
			Apply: func(env *chanModeEnv, add bool, param string, _ bool) (modes.Outcome, string) {
				target, ok := ctx.Dir.UserByNick(param)
				if !ok || !env.C.HasMember(target.ID) {
					return modes.ParamRejected, param
				}
				cur := env.C.PrefixOf(target.ID)
				if add {
					env.C.SetPrefix(target.ID, cur|prefix)
				} else {
					env.C.SetPrefix(target.ID, cur&^prefix)
				}
				return modes.Allow, param
			},
		})
	}
}

func registerChannelListModes(ctx *Context) {
	type listOps struct {
		add    func(c *channel.Channel, mask, setter string) bool
		remove func(c *channel.Channel, mask string) bool
		list   func(c *channel.Channel) []channel.MaskEntry
	}
	lists := map[byte]listOps{
		'b': {(*channel.Channel).AddBan, (*channel.Channel).RemoveBan, func(c *channel.Channel) []channel.MaskEntry { return c.Bans }},
		'e': {(*channel.Channel).AddExcept, (*channel.Channel).RemoveExcept, func(c *channel.Channel) []channel.MaskEntry { return c.Excepts }},
		'I': {(*channel.Channel).AddInvex, (*channel.Channel).RemoveInvex, func(c *channel.Channel) []channel.MaskEntry { return c.Invex }},
	}
	for letter, ops := range lists {
		ops := ops
		ctx.ChanModes.Register(modes.ScopeChannel, letter, &modes.Handler[*chanModeEnv]{
			Rule: modes.ParamList,
			Apply: func(env *chanModeEnv, add bool, param string, _ bool) (modes.Outcome, string) {
				setter := env.S.displayNick()
				var ok bool
				if add {
					ok = ops.add(env.C, param, setter)
				} else {
					ok = ops.remove(env.C, param)
				}
				if !ok {
					return modes.ParamRejected, param
				}
				return modes.Allow, param
			},
			List: func(env *chanModeEnv) []string {
				out := make([]string, 0, len(ops.list(env.C)))
				for _, e := range ops.list(env.C) {
					out = append(out, e.Mask)
				}
				return out
			},
		})
	}
}

func registerChannelParamModes(ctx *Context) {
	ctx.ChanModes.Register(modes.ScopeChannel, 'k', &modes.Handler[*chanModeEnv]{
		Rule: modes.ParamOnSet,
		Apply: func(env *chanModeEnv, add bool, param string, _ bool) (modes.Outcome, string) {
			if add {
				if env.C.Key != "" {
					return modes.ParamRejected, param
				}
				env.C.Key = param
				return modes.Allow, param
			}
			env.C.Key = ""
			return modes.Allow, ""
		},
	})

	ctx.ChanModes.Register(modes.ScopeChannel, 'l', &modes.Handler[*chanModeEnv]{
		Rule: modes.ParamOnSet,
		Apply: func(env *chanModeEnv, add bool, param string, _ bool) (modes.Outcome, string) {
			if !add {
				env.C.Limit = 0
				return modes.Allow, ""
			}
			n := atoiOrZero(param)
			if n <= 0 {
				return modes.ParamRejected, param
			}
			env.C.Limit = n
			return modes.Allow, param
		},
	})
}

func atoiOrZero(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
