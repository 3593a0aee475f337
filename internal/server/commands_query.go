package server

import (
	"strings"
	"time"

	"github.com/relaycore/ircd/internal/channel"
	"github.com/relaycore/ircd/internal/dispatch"
	"github.com/relaycore/ircd/internal/user"
)

// whowasCap bounds the in-memory WHOWAS history, newest entries pushed onto
// the front and oldest dropped off the back once the cap is hit (spec.md
// §5 resource limits apply here the same as to ban/invex lists).
const whowasCap = 100

type whowasEntry struct {
	nick     string
	ident    string
	host     string
	realname string
	quitAt   time.Time
}

func (ctx *Context) recordWhowas(u *user.User) {
	entry := whowasEntry{nick: u.Nick, ident: u.Ident, host: u.DisplayedHost, realname: u.Realname, quitAt: time.Now()}
	ctx.whowas = append([]whowasEntry{entry}, ctx.whowas...)
	if len(ctx.whowas) > whowasCap {
		ctx.whowas = ctx.whowas[:whowasCap]
	}
}

func registerQueryCommands(ctx *Context) {
	cmd(ctx, &dispatch.Command[*Session]{Name: "WHO", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: handleWho})
	cmd(ctx, &dispatch.Command[*Session]{Name: "WHOIS", MinParams: 1, Flags: dispatch.RegisteredOnly, Call: handleWhois})
	cmd(ctx, &dispatch.Command[*Session]{Name: "WHOWAS", MinParams: 1, Flags: dispatch.RegisteredOnly, Call: handleWhowas})
	cmd(ctx, &dispatch.Command[*Session]{Name: "ISON", MinParams: 1, Flags: dispatch.RegisteredOnly, Call: handleIson})
	cmd(ctx, &dispatch.Command[*Session]{Name: "USERHOST", MinParams: 1, Flags: dispatch.RegisteredOnly, Call: handleUserhost})
	cmd(ctx, &dispatch.Command[*Session]{Name: "AWAY", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: handleAway})
	cmd(ctx, &dispatch.Command[*Session]{Name: "VERSION", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: handleVersion})
	cmd(ctx, &dispatch.Command[*Session]{Name: "TIME", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: handleTime})
	cmd(ctx, &dispatch.Command[*Session]{Name: "MOTD", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: func(s *Session, inv dispatch.Invocation) dispatch.Result {
		sendMotd(s)
		return dispatch.Success
	}})
	cmd(ctx, &dispatch.Command[*Session]{Name: "ADMIN", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: handleAdmin})
	cmd(ctx, &dispatch.Command[*Session]{Name: "INFO", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: handleInfo})
	cmd(ctx, &dispatch.Command[*Session]{Name: "LUSERS", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: func(s *Session, inv dispatch.Invocation) dispatch.Result {
		sendLusers(s)
		return dispatch.Success
	}})
	cmd(ctx, &dispatch.Command[*Session]{Name: "STATS", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: handleStats})
}

func handleWho(s *Session, inv dispatch.Invocation) dispatch.Result {
	mask := "*"
	if len(inv.Params) > 0 && inv.Params[0] != "" {
		mask = inv.Params[0]
	}

	if c, ok := s.ctx.Dir.ChannelByName(s.ctx.normalizeChannelName(mask)); ok {
		if c.Modes.Has(cmSecret) && !c.HasMember(s.User.ID) {
			s.ReplyNumeric(dispatch.RPL_ENDOFWHO, mask, "End of /WHO list.")
			return dispatch.Success
		}
		for uid, prefix := range c.Members {
			u, ok := s.ctx.Dir.UserByID(uid)
			if !ok {
				continue
			}
			whoLine(s, c.Name, u, prefix)
		}
		s.ReplyNumeric(dispatch.RPL_ENDOFWHO, mask, "End of /WHO list.")
		return dispatch.Success
	}

	for _, u := range s.ctx.Dir.Users() {
		if mask != "*" && !strings.EqualFold(u.Nick, mask) {
			continue
		}
		whoLine(s, "*", u, channel.PrefixNone)
	}
	s.ReplyNumeric(dispatch.RPL_ENDOFWHO, mask, "End of /WHO list.")
	return dispatch.Success
}

func whoLine(s *Session, chanName string, u *user.User, prefix channel.Prefix) {
	flags := "H"
	if u.Away {
		flags = "G"
	}
	if u.IsOper() {
		flags += "*"
	}
	flags += prefix.Symbol()
	s.ReplyNumeric(dispatch.RPL_WHOREPLY, chanName, u.Ident, u.DisplayedHost, s.ctx.Hostname, u.Nick, flags, "0 "+u.Realname)
}

func handleWhois(s *Session, inv dispatch.Invocation) dispatch.Result {
	targets := strings.Split(inv.Params[len(inv.Params)-1], ",")
	for _, nick := range targets {
		u, ok := s.ctx.Dir.UserByNick(nick)
		if !ok {
			s.ReplyNumeric(dispatch.ERR_NOSUCHNICK, nick, "No such nick/channel")
			continue
		}
		s.ReplyNumeric(dispatch.RPL_WHOISUSER, u.Nick, u.Ident, u.DisplayedHost, "*", u.Realname)

		var chanNames []string
		for _, c := range s.ctx.channelsOfUserObj(u) {
			if c.Modes.Has(cmSecret) && !c.HasMember(s.User.ID) {
				continue
			}
			chanNames = append(chanNames, c.PrefixOf(u.ID).Symbol()+c.Name)
		}
		if len(chanNames) > 0 {
			s.ReplyNumeric(dispatch.RPL_WHOISCHANNELS, u.Nick, strings.Join(chanNames, " "))
		}

		s.ReplyNumeric(dispatch.RPL_WHOISSERVER, u.Nick, s.ctx.Hostname, s.ctx.Version)
		if u.IsOper() {
			s.ReplyNumeric(dispatch.RPL_WHOISOPERATOR, u.Nick, "is an IRC operator")
		}
		if u.Away {
			s.ReplyNumeric(dispatch.RPL_AWAY, u.Nick, u.AwayMessage)
		}
		s.ReplyNumeric(dispatch.RPL_WHOISIDLE, u.Nick, itoaInt(int(u.IdleSeconds())), itoaTime(u.SignonTime), "seconds idle, signon time")
		s.ReplyNumeric(dispatch.RPL_ENDOFWHOIS, u.Nick, "End of /WHOIS list.")
	}
	return dispatch.Success
}

func handleWhowas(s *Session, inv dispatch.Invocation) dispatch.Result {
	nick := inv.Params[0]
	found := false
	for _, e := range s.ctx.whowas {
		if !strings.EqualFold(e.nick, nick) {
			continue
		}
		found = true
		s.ReplyNumeric(dispatch.RPL_WHOWASUSER, e.nick, e.ident, e.host, "*", e.realname)
	}
	if !found {
		s.ReplyNumeric(dispatch.ERR_WASNOSUCHNICK, nick, "There was no such nickname")
	}
	s.ReplyNumeric(dispatch.RPL_ENDOFWHOWAS, nick, "End of WHOWAS")
	return dispatch.Success
}

func handleIson(s *Session, inv dispatch.Invocation) dispatch.Result {
	var online []string
	for _, field := range inv.Params {
		for _, nick := range strings.Fields(field) {
			if u, ok := s.ctx.Dir.UserByNick(nick); ok {
				online = append(online, u.Nick)
			}
		}
	}
	s.ReplyNumeric(dispatch.RPL_ISON, strings.Join(online, " "))
	return dispatch.Success
}

func handleUserhost(s *Session, inv dispatch.Invocation) dispatch.Result {
	var replies []string
	for _, field := range inv.Params {
		for _, nick := range strings.Fields(field) {
			u, ok := s.ctx.Dir.UserByNick(nick)
			if !ok {
				continue
			}
			marker := "-"
			if !u.Away {
				marker = "+"
			}
			star := ""
			if u.IsOper() {
				star = "*"
			}
			replies = append(replies, u.Nick+star+"="+marker+u.Ident+"@"+u.DisplayedHost)
		}
	}
	s.ReplyNumeric(dispatch.RPL_USERHOST, strings.Join(replies, " "))
	return dispatch.Success
}

func handleAway(s *Session, inv dispatch.Invocation) dispatch.Result {
	if len(inv.Params) == 0 || inv.Params[0] == "" {
		s.User.Away = false
		s.User.AwayMessage = ""
		s.ReplyNumeric(dispatch.RPL_UNAWAY, "You are no longer marked as being away")
		return dispatch.Success
	}
	s.User.Away = true
	s.User.AwayMessage = inv.Params[0]
	s.ReplyNumeric(dispatch.RPL_NOWAWAY, "You have been marked as being away")
	return dispatch.Success
}

func handleVersion(s *Session, inv dispatch.Invocation) dispatch.Result {
	s.ReplyNumeric(dispatch.RPL_VERSION, s.ctx.Version, s.ctx.Hostname, "iowsg qaohvbeIkl")
	return dispatch.Success
}

func handleTime(s *Session, inv dispatch.Invocation) dispatch.Result {
	s.ReplyNumeric(dispatch.RPL_TIME, s.ctx.Hostname, time.Now().Format(time.RFC1123))
	return dispatch.Success
}

func handleAdmin(s *Session, inv dispatch.Invocation) dispatch.Result {
	admin := s.ctx.Config.Get().Admin
	s.ReplyNumeric(dispatch.RPL_ADMINME, s.ctx.Hostname, "Administrative info about "+s.ctx.Hostname)
	s.ReplyNumeric(dispatch.RPL_ADMINLOC1, admin.Name)
	s.ReplyNumeric(dispatch.RPL_ADMINLOC2, admin.Nick)
	s.ReplyNumeric(dispatch.RPL_ADMINEMAIL, admin.Email)
	return dispatch.Success
}

func handleInfo(s *Session, inv dispatch.Invocation) dispatch.Result {
	for _, line := range []string{
		s.ctx.Hostname + " running " + s.ctx.Version,
		"Built for an ircd rework exercise.",
	} {
		s.ReplyNumeric(dispatch.RPL_INFO, line)
	}
	s.ReplyNumeric(dispatch.RPL_ENDOFINFO, "End of /INFO list")
	return dispatch.Success
}

func handleStats(s *Session, inv dispatch.Invocation) dispatch.Result {
	query := "*"
	if len(inv.Params) > 0 {
		query = inv.Params[0]
	}
	switch query {
	case "u":
		s.ReplyNumeric(dispatch.RPL_STATSUPTIME, "Server Up "+time.Since(s.ctx.Created).String())
	default:
		s.ReplyNumeric(dispatch.RPL_STATSCOMMANDS, query, "0", "0")
	}
	s.ReplyNumeric(dispatch.RPL_ENDOFSTATS, query, "End of /STATS report")
	return dispatch.Success
}

// sendLusers replies with the RFC user/channel/oper census burst sent once
// at the end of registration, and reusable for an explicit LUSERS request.
func sendLusers(s *Session) {
	users := s.ctx.Dir.Users()
	opers := 0
	for _, u := range users {
		if u.IsOper() {
			opers++
		}
	}
	s.ReplyNumeric(dispatch.RPL_LUSERCLIENT, "There are "+itoaInt(len(users))+" users and 0 invisible on 1 server")
	s.ReplyNumeric(dispatch.RPL_LUSEROP, itoaInt(opers), "operator(s) online")
	s.ReplyNumeric(dispatch.RPL_LUSERCHANNELS, itoaInt(s.ctx.Dir.ChannelCount()), "channels formed")
	s.ReplyNumeric(dispatch.RPL_LUSERME, "I have "+itoaInt(len(users))+" clients and 1 server")
}

// sendMotd replies with the configured message of the day, or ERR_NOMOTD
// when none is set.
func sendMotd(s *Session) {
	if len(s.ctx.Motd) == 0 {
		s.ReplyNumeric(dispatch.ERR_NOMOTD, "MOTD File is missing")
		return
	}
	s.ReplyNumeric(dispatch.RPL_MOTDSTART, "- "+s.ctx.Hostname+" Message of the day -")
	for _, line := range s.ctx.Motd {
		s.ReplyNumeric(dispatch.RPL_MOTD, "- "+line)
	}
	s.ReplyNumeric(dispatch.RPL_ENDOFMOTD, "End of /MOTD command")
}
