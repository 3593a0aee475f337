package server

import (
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/relaycore/ircd/internal/conn"
	"github.com/relaycore/ircd/internal/dispatch"
	"github.com/relaycore/ircd/internal/module"
	"github.com/relaycore/ircd/internal/user"
)

// validNick mirrors the original daemon's nickname pattern, loosened to
// admit the RFC 2812 special characters IRC clients actually send.
var validNick = regexp.MustCompile(`^[A-Za-z\[\]{}\\` + "`" + `_^|][A-Za-z0-9\[\]{}\\` + "`" + `_^|-]{0,30}$`)

func registerHandshakeCommands(ctx *Context) {
	cmd(ctx, &dispatch.Command[*Session]{
		Name: "PASS", MinParams: 1, Flags: dispatch.UnregisteredAllowed,
		Call: func(s *Session, inv dispatch.Invocation) dispatch.Result {
			if s.Registered() {
				s.ReplyNumeric(dispatch.ERR_ALREADYREGISTRED, "Unauthorized command (already registered)")
				return dispatch.Failure
			}
			s.PendingPassword = inv.Params[0]
			return dispatch.Success
		},
	})

	cmd(ctx, &dispatch.Command[*Session]{
		Name: "NICK", MinParams: 1, Flags: dispatch.UnregisteredAllowed,
		Call: handleNick,
	})

	cmd(ctx, &dispatch.Command[*Session]{
		Name: "USER", MinParams: 4, Flags: dispatch.UnregisteredAllowed,
		Call: handleUser,
	})

	cmd(ctx, &dispatch.Command[*Session]{
		Name: "CAP", MinParams: 1, Flags: dispatch.UnregisteredAllowed,
		Call: handleCap,
	})

	cmd(ctx, &dispatch.Command[*Session]{
		Name: "QUIT", MinParams: 0, Flags: dispatch.UnregisteredAllowed,
		Call: func(s *Session, inv dispatch.Invocation) dispatch.Result {
			reason := "Client Quit"
			if len(inv.Params) > 0 && inv.Params[0] != "" {
				reason = "Quit: " + inv.Params[0]
			}
			s.ctx.killSession(s, reason)
			return dispatch.Success
		},
	})

	cmd(ctx, &dispatch.Command[*Session]{
		Name: "PING", MinParams: 1, Flags: dispatch.UnregisteredAllowed,
		Call: func(s *Session, inv dispatch.Invocation) dispatch.Result {
			s.WriteLine("PONG " + s.ctx.Hostname + " :" + inv.Params[0])
			return dispatch.Success
		},
	})

	cmd(ctx, &dispatch.Command[*Session]{
		Name: "PONG", MinParams: 0, Flags: dispatch.UnregisteredAllowed,
		Call: func(s *Session, inv dispatch.Invocation) dispatch.Result {
			s.Conn.PongReceived()
			return dispatch.Success
		},
	})

	cmd(ctx, &dispatch.Command[*Session]{
		Name: "OPER", MinParams: 2, Flags: dispatch.RegisteredOnly,
		Call: handleOper,
	})
}

func handleNick(s *Session, inv dispatch.Invocation) dispatch.Result {
	nick := strings.TrimPrefix(inv.Params[0], ":")
	if nick == "" {
		s.ReplyNumeric(dispatch.ERR_NONICKNAMEGIVEN, "No nickname given")
		return dispatch.Failure
	}
	maxLen := s.ctx.Config.Get().Limits.MaxNickLen
	if maxLen > 0 && len(nick) > maxLen {
		nick = nick[:maxLen]
	}
	if !validNick.MatchString(nick) {
		s.ReplyNumeric(dispatch.ERR_ERRONEUSNICKNAME, nick, "Erroneous nickname")
		return dispatch.Failure
	}

	if !s.Registered() {
		if _, taken := s.ctx.Dir.UserByNick(nick); taken {
			s.ReplyNumeric(dispatch.ERR_NICKNAMEINUSE, nick, "Nickname is already in use")
			return dispatch.Failure
		}
		s.Conn.TentativeNick = nick
		s.ctx.tryCompleteRegistration(s)
		return dispatch.Success
	}

	changed, ok := s.ctx.Dir.Rename(s.User.ID, nick)
	if !ok {
		s.ReplyNumeric(dispatch.ERR_NICKNAMEINUSE, nick, "Nickname is already in use")
		return dispatch.Failure
	}
	if changed {
		line := ":" + s.Source() + " NICK :" + nick
		chans := s.ctx.channelsOfUser(s)
		s.ctx.Router.ToChannels(chans, line, 0)
		s.WriteLine(line)
	}
	return dispatch.Success
}

func handleUser(s *Session, inv dispatch.Invocation) dispatch.Result {
	if s.Registered() {
		s.ReplyNumeric(dispatch.ERR_ALREADYREGISTRED, "Unauthorized command (already registered)")
		return dispatch.Failure
	}
	s.Conn.TentativeUser = inv.Params[0]
	s.Conn.TentativeReal = inv.Params[3]
	s.ctx.tryCompleteRegistration(s)
	return dispatch.Success
}

// handleCap implements just enough of IRCv3 CAP negotiation to unblock
// clients that probe for it: LS/LIST reply with an empty capability set,
// REQ is always NAKed (no capabilities are actually implemented yet), and
// END releases the registration hold CAP placed on this session.
func handleCap(s *Session, inv dispatch.Invocation) dispatch.Result {
	sub := strings.ToUpper(inv.Params[0])
	switch sub {
	case "LS", "LIST":
		s.Conn.CapPending = true
		s.WriteLine(":" + s.ctx.Hostname + " CAP " + s.displayNick() + " " + sub + " :")
	case "REQ":
		want := ""
		if len(inv.Params) > 1 {
			want = inv.Params[1]
		}
		s.WriteLine(":" + s.ctx.Hostname + " CAP " + s.displayNick() + " NAK :" + want)
	case "END":
		s.Conn.CapPending = false
		s.ctx.tryCompleteRegistration(s)
	}
	return dispatch.Success
}

// tryCompleteRegistration finishes the NICK/USER/CAP handshake once every
// precondition is met, minting the directory User and sending the
// standard post-registration burst (spec.md §3/§4.D).
func (ctx *Context) tryCompleteRegistration(s *Session) {
	if s.Registered() || s.Conn.TentativeNick == "" || s.Conn.TentativeUser == "" || s.Conn.CapPending {
		return
	}

	if pw := passwordClassFor(ctx, s); pw != "" && s.PendingPassword != pw {
		s.ReplyNumeric(dispatch.ERR_PASSWDMISMATCH, "Password incorrect")
		ctx.killSession(s, "Password mismatch")
		return
	}

	u, ok := ctx.Dir.NewUser(s.Conn.TentativeNick)
	if !ok {
		s.ReplyNumeric(dispatch.ERR_NICKNAMEINUSE, s.Conn.TentativeNick, "Nickname is already in use")
		return
	}
	host, _, _ := splitHostPort(s.Conn.RemoteAddr().String())
	if s.Conn.ResolvedHost != "" {
		host = s.Conn.ResolvedHost
	}
	u.Ident = s.Conn.TentativeUser
	u.RealHost = host
	u.DisplayedHost = host
	u.Realname = s.Conn.TentativeReal

	s.User = u
	s.Conn.State = conn.Registered
	s.Conn.HasUser = true
	s.Conn.User = u.ID
	ctx.bindUser(s)

	s.ReplyNumeric(dispatch.RPL_WELCOME, "Welcome to the Internet Relay Network "+u.Hostmask())
	s.ReplyNumeric(dispatch.RPL_YOURHOST, "Your host is "+ctx.Hostname+", running version "+ctx.Version)
	s.ReplyNumeric(dispatch.RPL_CREATED, "This server was created "+ctx.Created.Format("2006-01-02 15:04:05"))
	s.ReplyNumeric(dispatch.RPL_MYINFO, ctx.Hostname, ctx.Version, "iowsg", "qaohvbeIkl")
	sendLusers(s)
	sendMotd(s)
	ctx.Modules.Fire(module.EventConnect, s)
}

// passwordClassFor returns the connect-block password a session must
// supply, if its source address matches one requiring it, or "" if none
// applies.
func passwordClassFor(ctx *Context, s *Session) string {
	host, _, _ := splitHostPort(s.Conn.RemoteAddr().String())
	for _, c := range ctx.Config.Get().Connect {
		if c.Password == "" {
			continue
		}
		if matchesConnectAllow(c.Allow, host) {
			return c.Password
		}
	}
	return ""
}

func handleOper(s *Session, inv dispatch.Invocation) dispatch.Result {
	name, password := inv.Params[0], inv.Params[1]
	host, _, _ := splitHostPort(s.Conn.RemoteAddr().String())
	for _, o := range s.ctx.Config.Get().Opers {
		if o.Name != name {
			continue
		}
		if o.Host != "" && !matchesConnectAllow(o.Host, host) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(o.PasswordHash), []byte(password)) != nil {
			continue
		}
		s.User.Oper = &user.OperType{Name: o.Name, Class: o.Class}
		s.User.Modes.Set(umOper)
		s.ReplyNumeric(dispatch.RPL_YOUREOPER, "You are now an IRC operator")
		s.ctx.Modules.Fire(module.EventOper, s)
		return dispatch.Success
	}
	s.ReplyNumeric(dispatch.ERR_NOOPERHOST, "No O-lines for your host")
	return dispatch.Failure
}
