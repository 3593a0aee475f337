package server

import (
	"fmt"

	"github.com/relaycore/ircd/internal/conn"
	"github.com/relaycore/ircd/internal/user"
)

// Session is the E type parameter instantiating dispatch.Registry and
// modes.Registry for this package: one per accepted connection, carrying
// both the wire-level Conn and (once registration completes) the
// directory-owned User it speaks for.
type Session struct {
	Conn *conn.Conn
	ctx  *Context

	User *user.User

	// CapNegotiating is not read or set anywhere; the CAP registration
	// hold is tracked on Conn.CapPending instead.
	CapNegotiating bool

	// PendingPassword holds a PASS value received before registration
	// completes, checked once NICK/USER finish the handshake.
	PendingPassword string
}

func newSession(ctx *Context, c *conn.Conn) *Session {
	return &Session{Conn: c, ctx: ctx}
}

// Registered reports whether this session has completed the NICK/USER (and,
// if negotiated, CAP END) handshake and has a directory-backed User.
func (s *Session) Registered() bool {
	return s.User != nil
}

// WriteLine queues one already-formatted line (no trailing CRLF) for
// delivery. Exceeding SendQ kills the connection with the conventional
// quit reason, mirroring how the original daemon enforces its send queue.
func (s *Session) WriteLine(line string) {
	if !s.Conn.Write(line) {
		s.ctx.killSession(s, "SendQ exceeded")
	}
}

// ReplyNumeric formats and sends one numeric reply, prefixing it with the
// server's source and the client's current display name per spec.md §6.
func (s *Session) ReplyNumeric(numeric string, params ...string) {
	target := s.displayNick()
	line := ":" + s.ctx.Hostname + " " + numeric + " " + target
	for i, p := range params {
		if i == len(params)-1 && needsTrailing(p) {
			line += " :" + p
		} else {
			line += " " + p
		}
	}
	s.WriteLine(line)
}

func (s *Session) displayNick() string {
	if s.User != nil {
		return s.User.Nick
	}
	if s.Conn.TentativeNick != "" {
		return s.Conn.TentativeNick
	}
	return "*"
}

func needsTrailing(p string) bool {
	if p == "" {
		return true
	}
	for _, r := range p {
		if r == ' ' {
			return true
		}
	}
	return p[0] == ':'
}

// Source returns this session's message prefix (nick!user@host once
// registered, the configured hostname otherwise) for framing relayed
// commands like PRIVMSG/JOIN/PART.
func (s *Session) Source() string {
	if s.User != nil {
		return s.User.Hostmask()
	}
	return s.ctx.Hostname
}

// LogNick, LogHost and LogSource satisfy sqllog.EntrySubject, so the audit
// log module can be attached to this package's event payloads without
// internal/server importing internal/module/sqllog (which would cycle
// back through internal/module).
func (s *Session) LogNick() string {
	if s.User != nil {
		return s.User.Nick
	}
	return s.displayNick()
}

func (s *Session) LogHost() string {
	if s.User != nil {
		return s.User.DisplayedHost
	}
	host, _, _ := splitHostPort(s.Conn.RemoteAddr().String())
	return host
}

func (s *Session) LogSource() string {
	return s.ctx.Hostname
}

func (s *Session) String() string {
	if s.User != nil {
		return fmt.Sprintf("Session(%s)", s.User.Nick)
	}
	return fmt.Sprintf("Session(fd=%d)", s.Conn.FD)
}
