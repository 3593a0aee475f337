package server

import (
	"strings"
	"time"

	"github.com/relaycore/ircd/internal/channel"
	"github.com/relaycore/ircd/internal/dispatch"
	"github.com/relaycore/ircd/internal/extensible"
	"github.com/relaycore/ircd/internal/modes"
	"github.com/relaycore/ircd/pkg/ircmask"
)

func registerChannelCommands(ctx *Context) {
	cmd(ctx, &dispatch.Command[*Session]{Name: "JOIN", MinParams: 1, Flags: dispatch.RegisteredOnly, Call: handleJoin})
	cmd(ctx, &dispatch.Command[*Session]{Name: "PART", MinParams: 1, Flags: dispatch.RegisteredOnly, Call: handlePart})
	cmd(ctx, &dispatch.Command[*Session]{Name: "TOPIC", MinParams: 1, Flags: dispatch.RegisteredOnly, Call: handleTopic})
	cmd(ctx, &dispatch.Command[*Session]{Name: "NAMES", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: handleNames})
	cmd(ctx, &dispatch.Command[*Session]{Name: "LIST", MinParams: 0, Flags: dispatch.RegisteredOnly, Call: handleList})
	cmd(ctx, &dispatch.Command[*Session]{Name: "INVITE", MinParams: 2, Flags: dispatch.RegisteredOnly, Call: handleInvite})
	cmd(ctx, &dispatch.Command[*Session]{Name: "KICK", MinParams: 2, Flags: dispatch.RegisteredOnly, Call: handleKick})
	cmd(ctx, &dispatch.Command[*Session]{Name: "MODE", MinParams: 1, Flags: dispatch.RegisteredOnly, Call: handleMode})
}

var inviteExtKey = extensible.Key{Module: "core", Name: "invites"}

func invitedNicks(c *channel.Channel) map[string]bool {
	v, ok := c.Ext.Get(inviteExtKey)
	if !ok {
		return nil
	}
	return v.(map[string]bool)
}

func addInvite(c *channel.Channel, nick string) {
	m := invitedNicks(c)
	if m == nil {
		m = make(map[string]bool)
	}
	m[ircmask.Fold(nick)] = true
	c.Ext.Set(inviteExtKey, m)
}

func isInvited(c *channel.Channel, nick string) bool {
	m := invitedNicks(c)
	return m != nil && m[ircmask.Fold(nick)]
}

func handleJoin(s *Session, inv dispatch.Invocation) dispatch.Result {
	names := strings.Split(inv.Params[0], ",")
	var keys []string
	if len(inv.Params) > 1 {
		keys = strings.Split(inv.Params[1], ",")
	}
	limits := s.ctx.Config.Get().Limits

	for i, name := range names {
		name = s.ctx.normalizeChannelName(name)
		if limits.MaxChannelLen > 0 && len(name) > limits.MaxChannelLen {
			s.ReplyNumeric(dispatch.ERR_NOSUCHCHANNEL, name, "No such channel")
			continue
		}
		if limits.MaxChannels > 0 && len(s.User.Channels) >= limits.MaxChannels {
			s.ReplyNumeric(dispatch.ERR_TOOMANYCHANNELS, name, "You have joined too many channels")
			continue
		}
		key := ""
		if i < len(keys) {
			key = keys[i]
		}

		c, existed := s.ctx.Dir.ChannelByName(name)
		if existed && c.HasMember(s.User.ID) {
			// Already a member: a no-op, no re-broadcast (spec.md §8 Laws).
			continue
		}
		if !existed {
			c = s.ctx.newChannel(name)
		}

		if existed {
			if c.Modes.Has(cmInviteOnly) && !isInvited(c, s.User.Nick) {
				s.ReplyNumeric(dispatch.ERR_INVITEONLYCHAN, name, "Cannot join channel (+i)")
				continue
			}
			if c.Key != "" && c.Key != key {
				s.ReplyNumeric(dispatch.ERR_BADCHANNELKEY, name, "Cannot join channel (+k)")
				continue
			}
			if c.Limit > 0 && len(c.Members) >= c.Limit {
				s.ReplyNumeric(dispatch.ERR_CHANNELISFULL, name, "Cannot join channel (+l)")
				continue
			}
			if bannedFrom(c, s.User.Hostmask()) {
				s.ReplyNumeric(dispatch.ERR_BANNEDFROMCHAN, name, "Cannot join channel (+b)")
				continue
			}
		}

		prefix := channel.PrefixNone
		if !existed {
			prefix = channel.PrefixOp
		}
		s.ctx.Dir.Join(s.User.ID, c.ID, prefix)

		line := ":" + s.Source() + " JOIN :" + c.Name
		s.ctx.Router.ToChannel(c, line, 0)

		if c.Topic != "" {
			s.ReplyNumeric(dispatch.RPL_TOPIC, c.Name, c.Topic)
		} else {
			s.ReplyNumeric(dispatch.RPL_NOTOPIC, c.Name, "No topic is set")
		}
		sendNames(s, c)
	}
	return dispatch.Success
}

func bannedFrom(c *channel.Channel, hostmask string) bool {
	banned := false
	for _, b := range c.Bans {
		if ircmask.MatchMaskNUH(hostmask, b.Mask) {
			banned = true
			break
		}
	}
	if !banned {
		return false
	}
	for _, e := range c.Excepts {
		if ircmask.MatchMaskNUH(hostmask, e.Mask) {
			return false
		}
	}
	return true
}

func handlePart(s *Session, inv dispatch.Invocation) dispatch.Result {
	names := strings.Split(inv.Params[0], ",")
	reason := s.User.Nick
	if len(inv.Params) > 1 {
		reason = inv.Params[1]
	}
	for _, name := range names {
		name = s.ctx.normalizeChannelName(name)
		c, ok := s.ctx.Dir.ChannelByName(name)
		if !ok {
			s.ReplyNumeric(dispatch.ERR_NOSUCHCHANNEL, name, "No such channel")
			continue
		}
		if !c.HasMember(s.User.ID) {
			s.ReplyNumeric(dispatch.ERR_NOTONCHANNEL, name, "You're not on that channel")
			continue
		}
		line := ":" + s.Source() + " PART " + c.Name + " :" + reason
		s.ctx.Router.ToChannel(c, line, 0)
		if emptied := s.ctx.Dir.Part(s.User.ID, c.ID); emptied && !c.Persistent {
			s.ctx.destroyChannel(c)
		}
	}
	return dispatch.Success
}

func handleTopic(s *Session, inv dispatch.Invocation) dispatch.Result {
	name := s.ctx.normalizeChannelName(inv.Params[0])
	c, ok := s.ctx.Dir.ChannelByName(name)
	if !ok {
		s.ReplyNumeric(dispatch.ERR_NOSUCHCHANNEL, name, "No such channel")
		return dispatch.Failure
	}
	if !c.HasMember(s.User.ID) {
		s.ReplyNumeric(dispatch.ERR_NOTONCHANNEL, name, "You're not on that channel")
		return dispatch.Failure
	}
	if len(inv.Params) < 2 {
		if c.Topic == "" {
			s.ReplyNumeric(dispatch.RPL_NOTOPIC, c.Name, "No topic is set")
		} else {
			s.ReplyNumeric(dispatch.RPL_TOPIC, c.Name, c.Topic)
			s.ReplyNumeric(dispatch.RPL_TOPICWHOTIME, c.Name, c.Setter, itoaTime(c.TopicAt))
		}
		return dispatch.Success
	}
	if c.Modes.Has(cmTopicLock) && !c.PrefixOf(s.User.ID).AtLeastHalfop() {
		s.ReplyNumeric(dispatch.ERR_CHANOPRIVSNEEDED, c.Name, "You're not channel operator")
		return dispatch.Failure
	}
	c.Topic = inv.Params[1]
	c.Setter = s.Source()
	c.TopicAt = time.Now()
	line := ":" + s.Source() + " TOPIC " + c.Name + " :" + c.Topic
	s.ctx.Router.ToChannel(c, line, 0)
	return dispatch.Success
}

func handleNames(s *Session, inv dispatch.Invocation) dispatch.Result {
	if len(inv.Params) == 0 {
		for _, c := range s.ctx.Dir.Channels() {
			if c.HasMember(s.User.ID) {
				sendNames(s, c)
			}
		}
		return dispatch.Success
	}
	for _, name := range strings.Split(inv.Params[0], ",") {
		if c, ok := s.ctx.Dir.ChannelByName(s.ctx.normalizeChannelName(name)); ok {
			sendNames(s, c)
		}
	}
	return dispatch.Success
}

func sendNames(s *Session, c *channel.Channel) {
	var names []string
	for uid, p := range c.Members {
		u, ok := s.ctx.Dir.UserByID(uid)
		if !ok {
			continue
		}
		names = append(names, p.Symbol()+u.Nick)
	}
	const chunk = 20
	for i := 0; i < len(names); i += chunk {
		end := i + chunk
		if end > len(names) {
			end = len(names)
		}
		s.ReplyNumeric(dispatch.RPL_NAMREPLY, "=", c.Name, strings.Join(names[i:end], " "))
	}
	s.ReplyNumeric(dispatch.RPL_ENDOFNAMES, c.Name, "End of /NAMES list")
}

func handleList(s *Session, inv dispatch.Invocation) dispatch.Result {
	var channels []*channel.Channel
	if len(inv.Params) > 0 && inv.Params[0] != "" {
		for _, name := range strings.Split(inv.Params[0], ",") {
			if c, ok := s.ctx.Dir.ChannelByName(s.ctx.normalizeChannelName(name)); ok {
				channels = append(channels, c)
			}
		}
	} else {
		channels = s.ctx.Dir.Channels()
	}
	for _, c := range channels {
		if c.Modes.Has(cmSecret) && !c.HasMember(s.User.ID) {
			continue
		}
		s.ReplyNumeric(dispatch.RPL_LIST, c.Name, itoaInt(len(c.Members)), c.Topic)
	}
	s.ReplyNumeric(dispatch.RPL_LISTEND, "End of /LIST")
	return dispatch.Success
}

func handleInvite(s *Session, inv dispatch.Invocation) dispatch.Result {
	nick, chanName := inv.Params[0], s.ctx.normalizeChannelName(inv.Params[1])
	target, ok := s.ctx.Dir.UserByNick(nick)
	if !ok {
		s.ReplyNumeric(dispatch.ERR_NOSUCHNICK, nick, "No such nick/channel")
		return dispatch.Failure
	}
	c, ok := s.ctx.Dir.ChannelByName(chanName)
	if ok {
		if !c.HasMember(s.User.ID) {
			s.ReplyNumeric(dispatch.ERR_NOTONCHANNEL, chanName, "You're not on that channel")
			return dispatch.Failure
		}
		if target.InChannel(c.ID) {
			s.ReplyNumeric(dispatch.ERR_USERONCHANNEL, nick, chanName, "is already on channel")
			return dispatch.Failure
		}
		if c.Modes.Has(cmInviteOnly) && !c.PrefixOf(s.User.ID).AtLeastHalfop() {
			s.ReplyNumeric(dispatch.ERR_CHANOPRIVSNEEDED, chanName, "You're not channel operator")
			return dispatch.Failure
		}
		addInvite(c, nick)
	}
	s.ReplyNumeric(dispatch.RPL_INVITING, nick, chanName)
	s.ctx.Router.ToUser(target.ID, ":"+s.Source()+" INVITE "+nick+" :"+chanName)
	return dispatch.Success
}

func handleKick(s *Session, inv dispatch.Invocation) dispatch.Result {
	chanName := s.ctx.normalizeChannelName(inv.Params[0])
	nick := inv.Params[1]
	reason := s.User.Nick
	if len(inv.Params) > 2 {
		reason = inv.Params[2]
	}
	c, ok := s.ctx.Dir.ChannelByName(chanName)
	if !ok {
		s.ReplyNumeric(dispatch.ERR_NOSUCHCHANNEL, chanName, "No such channel")
		return dispatch.Failure
	}
	if !c.PrefixOf(s.User.ID).AtLeastHalfop() {
		s.ReplyNumeric(dispatch.ERR_CHANOPRIVSNEEDED, chanName, "You're not channel operator")
		return dispatch.Failure
	}
	target, ok := s.ctx.Dir.UserByNick(nick)
	if !ok || !c.HasMember(target.ID) {
		s.ReplyNumeric(dispatch.ERR_USERNOTINCHANNEL, nick, chanName, "They aren't on that channel")
		return dispatch.Failure
	}
	line := ":" + s.Source() + " KICK " + c.Name + " " + target.Nick + " :" + reason
	s.ctx.Router.ToChannel(c, line, 0)
	if emptied := s.ctx.Dir.Part(target.ID, c.ID); emptied && !c.Persistent {
		s.ctx.destroyChannel(c)
	}
	return dispatch.Success
}

func handleMode(s *Session, inv dispatch.Invocation) dispatch.Result {
	target := inv.Params[0]
	if ircmask.Equal(target, s.User.Nick) {
		return handleUserMode(s, inv.Params[1:])
	}
	return handleChannelMode(s, target, inv.Params[1:])
}

func handleUserMode(s *Session, params []string) dispatch.Result {
	if len(params) == 0 {
		s.ReplyNumeric(dispatch.RPL_UMODEIS, modeString(s.User.Modes, "iowsg"))
		return dispatch.Success
	}
	applied, _ := modes.ParseChanges(s.ctx.UserModes, modes.ScopeUser, params)
	if len(applied) == 0 {
		return dispatch.Success
	}
	var okChanges []modes.Change
	for _, ch := range applied {
		h, found := s.ctx.UserModes.Lookup(modes.ScopeUser, ch.Letter)
		if !found {
			s.ReplyNumeric(dispatch.ERR_UMODEUNKNOWNFLAG, "Unknown MODE flag")
			continue
		}
		outcome, param := h.Apply(s, ch.Add, ch.Param, true)
		if outcome != modes.Allow {
			continue
		}
		okChanges = append(okChanges, modes.Change{Add: ch.Add, Letter: ch.Letter, Param: param})
	}
	if len(okChanges) > 0 {
		s.WriteLine(":" + s.Source() + " MODE " + s.User.Nick + " " + renderChanges(okChanges))
	}
	return dispatch.Success
}

func handleChannelMode(s *Session, name string, params []string) dispatch.Result {
	name = s.ctx.normalizeChannelName(name)
	c, ok := s.ctx.Dir.ChannelByName(name)
	if !ok {
		s.ReplyNumeric(dispatch.ERR_NOSUCHCHANNEL, name, "No such channel")
		return dispatch.Failure
	}
	if len(params) == 0 {
		s.ReplyNumeric(dispatch.RPL_CHANNELMODEIS, c.Name, modeString(c.Modes, "imnts p"))
		return dispatch.Success
	}

	env := &chanModeEnv{S: s, C: c}
	applied, overflow := modes.ParseChanges(s.ctx.ChanModes, modes.ScopeChannel, params)
	if len(applied) == 0 {
		return dispatch.Success
	}
	if !c.PrefixOf(s.User.ID).AtLeastHalfop() {
		s.ReplyNumeric(dispatch.ERR_CHANOPRIVSNEEDED, c.Name, "You're not channel operator")
		return dispatch.Failure
	}

	if okChanges := applyChanModeChanges(s, env, applied); len(okChanges) > 0 {
		line := ":" + s.Source() + " MODE " + c.Name + " " + renderChanges(okChanges)
		s.ctx.Router.ToChannel(c, line, 0)
	}
	if len(overflow) > 0 {
		s.ctx.sendModeOverflow(s, env, overflow)
	}
	return dispatch.Success
}

// applyChanModeChanges runs each parsed Change through its registered
// handler and returns only the ones actually applied (Allow), in order,
// with each Change's Param normalized to whatever the handler echoes back
// (e.g. a ban's canonicalized mask).
func applyChanModeChanges(s *Session, env *chanModeEnv, changes []modes.Change) []modes.Change {
	var okChanges []modes.Change
	for _, ch := range changes {
		h, found := s.ctx.ChanModes.Lookup(modes.ScopeChannel, ch.Letter)
		if !found {
			s.ReplyNumeric(dispatch.ERR_UNKNOWNMODE, string(ch.Letter), "is unknown mode char")
			continue
		}
		outcome, param := h.Apply(env, ch.Add, ch.Param, true)
		if outcome != modes.Allow {
			continue
		}
		okChanges = append(okChanges, modes.Change{Add: ch.Add, Letter: ch.Letter, Param: param})
	}
	return okChanges
}

// sendModeOverflow applies and broadcasts the changes past the per-line
// cap (spec.md §4.H) as one or more follow-up MODE lines, chunked back
// down to modes.MaxChangesPerLine each so a pathological single request
// (e.g. 45 bans) can't produce one line bigger than the cap it just
// spilled from.
func (ctx *Context) sendModeOverflow(s *Session, env *chanModeEnv, overflow []modes.Change) {
	for len(overflow) > 0 {
		chunk := overflow
		if len(chunk) > modes.MaxChangesPerLine {
			chunk = chunk[:modes.MaxChangesPerLine]
		}
		overflow = overflow[len(chunk):]

		if okChanges := applyChanModeChanges(s, env, chunk); len(okChanges) > 0 {
			line := ":" + s.Source() + " MODE " + env.C.Name + " " + renderChanges(okChanges)
			ctx.Router.ToChannel(env.C, line, 0)
		}
	}
}

func renderChanges(changes []modes.Change) string {
	var plus, minus strings.Builder
	var params []string
	for _, c := range changes {
		if c.Add {
			plus.WriteByte(c.Letter)
		} else {
			minus.WriteByte(c.Letter)
		}
		if c.Param != "" {
			params = append(params, c.Param)
		}
	}
	out := ""
	if plus.Len() > 0 {
		out += "+" + plus.String()
	}
	if minus.Len() > 0 {
		out += "-" + minus.String()
	}
	for _, p := range params {
		out += " " + p
	}
	return out
}

func modeString(bits interface{ Has(uint) bool }, letters string) string {
	out := "+"
	for i := 0; i < len(letters); i++ {
		if letters[i] == ' ' {
			continue
		}
		if bits.Has(uint(i)) {
			out += string(letters[i])
		}
	}
	return out
}

