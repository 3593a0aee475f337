package server

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/relaycore/ircd/internal/dispatch"
	"github.com/relaycore/ircd/internal/module"
)

func registerOperCommands(ctx *Context) {
	cmd(ctx, &dispatch.Command[*Session]{Name: "REHASH", MinParams: 0, Flags: dispatch.RegisteredOnly | dispatch.OperOnly, Call: handleRehash})
	cmd(ctx, &dispatch.Command[*Session]{Name: "RESTART", MinParams: 0, Flags: dispatch.RegisteredOnly | dispatch.OperOnly, Call: handleRestart})
	cmd(ctx, &dispatch.Command[*Session]{Name: "DIE", MinParams: 0, Flags: dispatch.RegisteredOnly | dispatch.OperOnly, Call: handleDie})
	cmd(ctx, &dispatch.Command[*Session]{Name: "KILL", MinParams: 2, Flags: dispatch.RegisteredOnly | dispatch.OperOnly, Call: handleKillCmd})
	cmd(ctx, &dispatch.Command[*Session]{Name: "VHOST", MinParams: 2, Flags: dispatch.RegisteredOnly, Call: handleVhost})
	cmd(ctx, &dispatch.Command[*Session]{Name: "LOADMODULE", MinParams: 1, Flags: dispatch.RegisteredOnly | dispatch.OperOnly, Call: handleLoadModule})
	cmd(ctx, &dispatch.Command[*Session]{Name: "UNLOADMODULE", MinParams: 1, Flags: dispatch.RegisteredOnly | dispatch.OperOnly, Call: handleUnloadModule})
	cmd(ctx, &dispatch.Command[*Session]{Name: "CHECK", MinParams: 1, Flags: dispatch.RegisteredOnly | dispatch.OperOnly, Call: handleCheck})
}

func handleRehash(s *Session, inv dispatch.Invocation) dispatch.Result {
	s.ReplyNumeric(dispatch.RPL_REHASHING, s.ctx.Hostname, "Rehashing")
	s.ctx.runRehash()
	return dispatch.Success
}

func handleRestart(s *Session, inv dispatch.Invocation) dispatch.Result {
	s.ctx.Log.Info("RESTART requested by %s", s.User.Nick)
	s.ctx.requestHalt(true)
	return dispatch.Success
}

func handleDie(s *Session, inv dispatch.Invocation) dispatch.Result {
	s.ctx.Log.Info("DIE requested by %s", s.User.Nick)
	s.ctx.requestHalt(false)
	return dispatch.Success
}

func handleKillCmd(s *Session, inv dispatch.Invocation) dispatch.Result {
	nick, reason := inv.Params[0], inv.Params[1]
	target, ok := s.ctx.Dir.UserByNick(nick)
	if !ok {
		s.ReplyNumeric(dispatch.ERR_NOSUCHNICK, nick, "No such nick/channel")
		return dispatch.Failure
	}
	victim, ok := s.ctx.byUserID[target.ID]
	if !ok {
		return dispatch.Failure
	}
	victim.WriteLine(":" + s.Source() + " KILL " + target.Nick + " :" + s.ctx.Hostname + "!" + s.User.Nick + " (" + reason + ")")
	s.ctx.Modules.Fire(module.EventKill, victim)
	s.ctx.killSession(victim, "Killed ("+s.User.Nick+" ("+reason+"))")
	return dispatch.Success
}

// handleVhost matches VHOST <user> <password> against a configured vhost
// block and, on success, swaps the caller's displayed host -- the raw
// RealHost is untouched so bans/CIDR classes still evaluate against it.
func handleVhost(s *Session, inv dispatch.Invocation) dispatch.Result {
	user, password := inv.Params[0], inv.Params[1]
	for _, v := range s.ctx.Config.Get().Vhosts {
		if v.User != user {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(v.Hash), []byte(password)) != nil {
			continue
		}
		s.User.DisplayedHost = v.Host
		s.WriteLine(":" + s.ctx.Hostname + " NOTICE " + s.displayNick() + " :Your vhost is now " + v.Host)
		return dispatch.Success
	}
	s.ReplyNumeric(dispatch.ERR_PASSWDMISMATCH, "Password incorrect")
	return dispatch.Failure
}

// handleLoadModule loads a module named in a [[module]] config block.
// There is no shared-object loader here (spec.md §4.I is compile-time
// registration only); LOADMODULE only re-admits a previously unloaded
// built-in by name, it cannot bring in code that wasn't linked in.
func handleLoadModule(s *Session, inv dispatch.Invocation) dispatch.Result {
	name := inv.Params[0]
	for _, m := range s.ctx.Config.Get().Modules {
		if m.Name != name {
			continue
		}
		if err := s.ctx.Modules.Load(&module.Module{Name: name}); err != nil {
			s.WriteLine(":" + s.ctx.Hostname + " NOTICE " + s.displayNick() + " :LOADMODULE " + name + " failed: " + err.Error())
			return dispatch.Failure
		}
		s.WriteLine(":" + s.ctx.Hostname + " NOTICE " + s.displayNick() + " :Module " + name + " loaded")
		return dispatch.Success
	}
	s.WriteLine(":" + s.ctx.Hostname + " NOTICE " + s.displayNick() + " :No such module " + name)
	return dispatch.Failure
}

func handleUnloadModule(s *Session, inv dispatch.Invocation) dispatch.Result {
	name := inv.Params[0]
	s.ctx.Modules.Unload(name)
	s.WriteLine(":" + s.ctx.Hostname + " NOTICE " + s.displayNick() + " :Module " + name + " unloaded")
	return dispatch.Success
}

// handleCheck is an oper diagnostic reporting what the server knows about a
// nick or channel in one shot, more detail than WHOIS/LIST expose to a
// normal user.
func handleCheck(s *Session, inv dispatch.Invocation) dispatch.Result {
	target := inv.Params[0]
	if c, ok := s.ctx.Dir.ChannelByName(s.ctx.normalizeChannelName(target)); ok {
		s.WriteLine(":" + s.ctx.Hostname + " NOTICE " + s.displayNick() + " :CHECK " + c.Name + " members=" + itoaInt(len(c.Members)) + " modes=" + modeString(c.Modes, "imnts p") + " bans=" + itoaInt(len(c.Bans)))
		return dispatch.Success
	}
	u, ok := s.ctx.Dir.UserByNick(target)
	if !ok {
		s.ReplyNumeric(dispatch.ERR_NOSUCHNICK, target, "No such nick/channel")
		return dispatch.Failure
	}
	s.WriteLine(":" + s.ctx.Hostname + " NOTICE " + s.displayNick() + " :CHECK " + u.Nick + " " + u.Hostmask() + " signon=" + itoaTime(u.SignonTime) + " channels=" + itoaInt(len(u.Channels)))
	return dispatch.Success
}
