package server

import (
	"strings"

	"github.com/relaycore/ircd/internal/channel"
	"github.com/relaycore/ircd/internal/dispatch"
)

func registerMessagingCommands(ctx *Context) {
	cmd(ctx, &dispatch.Command[*Session]{Name: "PRIVMSG", MinParams: 1, Flags: dispatch.RegisteredOnly, Call: handlePrivmsgFactory("PRIVMSG")})
	cmd(ctx, &dispatch.Command[*Session]{Name: "NOTICE", MinParams: 1, Flags: dispatch.RegisteredOnly, Call: handlePrivmsgFactory("NOTICE")})
	cmd(ctx, &dispatch.Command[*Session]{Name: "WALLOPS", MinParams: 1, Flags: dispatch.RegisteredOnly | dispatch.OperOnly, Call: handleWallops})
	cmd(ctx, &dispatch.Command[*Session]{Name: "GLOBOPS", MinParams: 1, Flags: dispatch.RegisteredOnly | dispatch.OperOnly, Call: handleGlobops})
}

func handlePrivmsgFactory(verb string) func(*Session, dispatch.Invocation) dispatch.Result {
	return func(s *Session, inv dispatch.Invocation) dispatch.Result {
		if len(inv.Params) < 2 || inv.Params[1] == "" {
			if verb == "PRIVMSG" {
				s.ReplyNumeric(dispatch.ERR_NOTEXTTOSEND, "No text to send")
			}
			return dispatch.Failure
		}
		text := inv.Params[1]
		for _, target := range strings.Split(inv.Params[0], ",") {
			deliverOne(s, verb, target, text)
		}
		return dispatch.Success
	}
}

func deliverOne(s *Session, verb, target, text string) {
	if c, ok := s.ctx.Dir.ChannelByName(s.ctx.normalizeChannelName(target)); ok {
		member := c.HasMember(s.User.ID)
		if c.Modes.Has(cmNoExternal) && !member {
			s.ReplyNumeric(dispatch.ERR_CANNOTSENDTOCHAN, c.Name, "Cannot send to channel")
			return
		}
		if c.Modes.Has(cmModerated) && c.PrefixOf(s.User.ID)&(channel.PrefixVoice|channel.PrefixHalfop|channel.PrefixOp|channel.PrefixAdmin|channel.PrefixFounder) == 0 {
			s.ReplyNumeric(dispatch.ERR_CANNOTSENDTOCHAN, c.Name, "Cannot send to channel")
			return
		}
		if bannedFrom(c, s.User.Hostmask()) && !member {
			s.ReplyNumeric(dispatch.ERR_CANNOTSENDTOCHAN, c.Name, "Cannot send to channel")
			return
		}
		line := ":" + s.Source() + " " + verb + " " + c.Name + " :" + text
		s.ctx.Router.ToChannel(c, line, s.User.ID)
		return
	}

	u, ok := s.ctx.Dir.UserByNick(target)
	if !ok {
		if verb == "PRIVMSG" {
			s.ReplyNumeric(dispatch.ERR_NOSUCHNICK, target, "No such nick/channel")
		}
		return
	}
	line := ":" + s.Source() + " " + verb + " " + u.Nick + " :" + text
	s.ctx.Router.ToUser(u.ID, line)
	if verb == "PRIVMSG" && u.Away {
		s.ReplyNumeric(dispatch.RPL_AWAY, u.Nick, u.AwayMessage)
	}
}

func handleWallops(s *Session, inv dispatch.Invocation) dispatch.Result {
	line := ":" + s.Source() + " WALLOPS :" + inv.Params[0]
	for _, u := range s.ctx.Dir.Users() {
		if u.Modes.Has(umWallops) {
			s.ctx.Router.ToUser(u.ID, line)
		}
	}
	return dispatch.Success
}

func handleGlobops(s *Session, inv dispatch.Invocation) dispatch.Result {
	line := ":" + s.Source() + " NOTICE * :*** Global -- " + inv.Params[0]
	for _, u := range s.ctx.Dir.Users() {
		if u.IsOper() {
			s.ctx.Router.ToUser(u.ID, line)
		}
	}
	return dispatch.Success
}
