package server

import (
	"strings"
	"testing"

	"github.com/relaycore/ircd/internal/dispatch"
)

func TestWhoisReportsKnownUser(t *testing.T) {
	ctx := newTestContext(t)
	alice, aliceConn := registerSession(t, ctx, 1, "alice")
	bob, bobConn := registerSession(t, ctx, 2, "bob")

	dispatchLine(ctx, alice, "WHOIS", "bob")

	out := flushed(alice, aliceConn)
	if !strings.Contains(out, dispatch.RPL_WHOISUSER) {
		t.Fatalf("expected RPL_WHOISUSER, got %q", out)
	}
	if !strings.Contains(out, dispatch.RPL_ENDOFWHOIS) {
		t.Fatalf("expected RPL_ENDOFWHOIS, got %q", out)
	}
	flushed(bob, bobConn)
}

func TestWhoisNoSuchNick(t *testing.T) {
	ctx := newTestContext(t)
	s, fc := registerSession(t, ctx, 1, "alice")

	dispatchLine(ctx, s, "WHOIS", "ghost")

	out := flushed(s, fc)
	if !strings.Contains(out, dispatch.ERR_NOSUCHNICK) {
		t.Fatalf("expected ERR_NOSUCHNICK, got %q", out)
	}
}

func TestWhowasFindsQuitUser(t *testing.T) {
	ctx := newTestContext(t)
	bob, bobConn := registerSession(t, ctx, 1, "bob")
	ctx.killSession(bob, "Client Quit")
	ctx.reapQuitQueue()
	_ = bobConn

	s, fc := registerSession(t, ctx, 2, "alice")
	dispatchLine(ctx, s, "WHOWAS", "bob")

	out := flushed(s, fc)
	if !strings.Contains(out, dispatch.RPL_WHOWASUSER) {
		t.Fatalf("expected RPL_WHOWASUSER for a previously-known nick, got %q", out)
	}
}

func TestWhowasUnknownNick(t *testing.T) {
	ctx := newTestContext(t)
	s, fc := registerSession(t, ctx, 1, "alice")

	dispatchLine(ctx, s, "WHOWAS", "neverwas")

	out := flushed(s, fc)
	if !strings.Contains(out, dispatch.ERR_WASNOSUCHNICK) {
		t.Fatalf("expected ERR_WASNOSUCHNICK, got %q", out)
	}
}

func TestIsonReportsOnlyOnlineNicks(t *testing.T) {
	ctx := newTestContext(t)
	s, fc := registerSession(t, ctx, 1, "alice")
	_, _ = registerSession(t, ctx, 2, "bob")

	dispatchLine(ctx, s, "ISON", "bob ghost")

	out := flushed(s, fc)
	if !strings.Contains(out, "bob") || strings.Contains(out, "ghost") {
		t.Fatalf("expected ISON to report bob but not ghost, got %q", out)
	}
}

func TestAwayTogglesState(t *testing.T) {
	ctx := newTestContext(t)
	s, fc := registerSession(t, ctx, 1, "alice")

	dispatchLine(ctx, s, "AWAY", "out to lunch")
	out := flushed(s, fc)
	if !s.User.Away || !strings.Contains(out, dispatch.RPL_NOWAWAY) {
		t.Fatalf("expected AWAY to mark the user away, got %q", out)
	}

	dispatchLine(ctx, s, "AWAY")
	out = flushed(s, fc)
	if s.User.Away || !strings.Contains(out, dispatch.RPL_UNAWAY) {
		t.Fatalf("expected a bare AWAY to clear the away state, got %q", out)
	}
}

func TestMotdEmptyReportsNoMotd(t *testing.T) {
	ctx := newTestContext(t)
	s, fc := registerSession(t, ctx, 1, "alice")

	dispatchLine(ctx, s, "MOTD")

	out := flushed(s, fc)
	if !strings.Contains(out, dispatch.ERR_NOMOTD) {
		t.Fatalf("expected ERR_NOMOTD for an empty MOTD, got %q", out)
	}
}

func TestMotdConfiguredLinesAreSent(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Motd = []string{"welcome", "be nice"}
	s, fc := registerSession(t, ctx, 1, "alice")

	dispatchLine(ctx, s, "MOTD")

	out := flushed(s, fc)
	if !strings.Contains(out, "welcome") || !strings.Contains(out, dispatch.RPL_ENDOFMOTD) {
		t.Fatalf("expected the configured MOTD body, got %q", out)
	}
}

func TestLusersReportsUserCount(t *testing.T) {
	ctx := newTestContext(t)
	s, fc := registerSession(t, ctx, 1, "alice")
	_, _ = registerSession(t, ctx, 2, "bob")

	dispatchLine(ctx, s, "LUSERS")

	out := flushed(s, fc)
	if !strings.Contains(out, "There are 2 users") {
		t.Fatalf("expected a 2-user LUSERS census, got %q", out)
	}
}

func TestWhoListsChannelMembers(t *testing.T) {
	ctx := newTestContext(t)
	alice, aliceConn := registerSession(t, ctx, 1, "alice")
	bob, bobConn := registerSession(t, ctx, 2, "bob")
	dispatchLine(ctx, alice, "JOIN", "#test")
	dispatchLine(ctx, bob, "JOIN", "#test")
	flushed(alice, aliceConn)
	flushed(bob, bobConn)

	dispatchLine(ctx, alice, "WHO", "#test")

	out := flushed(alice, aliceConn)
	if !strings.Contains(out, dispatch.RPL_WHOREPLY) || !strings.Contains(out, dispatch.RPL_ENDOFWHO) {
		t.Fatalf("expected a WHO reply covering both members, got %q", out)
	}
}

func TestStatsReportsEndOfStats(t *testing.T) {
	ctx := newTestContext(t)
	s, fc := registerSession(t, ctx, 1, "alice")

	dispatchLine(ctx, s, "STATS", "u")

	out := flushed(s, fc)
	if !strings.Contains(out, dispatch.RPL_STATSUPTIME) || !strings.Contains(out, dispatch.RPL_ENDOFSTATS) {
		t.Fatalf("expected an uptime STATS report, got %q", out)
	}
}
