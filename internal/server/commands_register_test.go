package server

import (
	"strings"
	"testing"

	"github.com/relaycore/ircd/internal/config"
	"github.com/relaycore/ircd/internal/dispatch"
)

func TestRegistrationSendsWelcomeBurst(t *testing.T) {
	ctx := newTestContext(t)
	s, fc := newTestSession(t, ctx, 1)

	dispatchLine(ctx, s, "NICK", "alice")
	dispatchLine(ctx, s, "USER", "a", "0", "*", "Alice A")

	if !s.Registered() {
		t.Fatal("expected session to be registered after NICK+USER")
	}
	out := flushed(s, fc)
	if !strings.Contains(out, " 001 alice ") {
		t.Fatalf("expected RPL_WELCOME (001), got %q", out)
	}
	if !strings.Contains(out, " 376 ") && !strings.Contains(out, " 422 ") {
		t.Fatalf("expected an end-of-MOTD or no-MOTD numeric, got %q", out)
	}
}

func TestNickInUseDuringRegistration(t *testing.T) {
	ctx := newTestContext(t)
	_, _ = registerSession(t, ctx, 1, "alice")

	s2, fc2 := newTestSession(t, ctx, 2)
	dispatchLine(ctx, s2, "NICK", "alice")
	dispatchLine(ctx, s2, "USER", "a", "0", "*", "Someone Else")

	if s2.Registered() {
		t.Fatal("expected the second claim of the same nick to fail registration")
	}
	out := flushed(s2, fc2)
	if !strings.Contains(out, dispatch.ERR_NICKNAMEINUSE) {
		t.Fatalf("expected ERR_NICKNAMEINUSE, got %q", out)
	}
}

func TestNickChangeBroadcastsToSharedChannels(t *testing.T) {
	ctx := newTestContext(t)
	alice, aliceConn := registerSession(t, ctx, 1, "alice")
	bob, bobConn := registerSession(t, ctx, 2, "bob")

	dispatchLine(ctx, alice, "JOIN", "#test")
	dispatchLine(ctx, bob, "JOIN", "#test")
	flushed(alice, aliceConn)
	flushed(bob, bobConn)

	dispatchLine(ctx, alice, "NICK", "alicia")

	if alice.User.Nick != "alicia" {
		t.Fatalf("expected nick to update to alicia, got %q", alice.User.Nick)
	}
	bobOut := flushed(bob, bobConn)
	if !strings.Contains(bobOut, "NICK :alicia") {
		t.Fatalf("expected bob to see the NICK change, got %q", bobOut)
	}
}

func TestOperRequiresMatchingPassword(t *testing.T) {
	ctx := newTestContext(t)
	// bcrypt hash of "secret", generated ahead of time.
	const hash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8O/RVX37I8F.03t0VRXJmJt0VS.xfW"
	cfg := ctx.Config.Get()
	cfg.Opers = append(cfg.Opers, config.Oper{Name: "root", PasswordHash: hash})
	s, fc := registerSession(t, ctx, 1, "alice")

	dispatchLine(ctx, s, "OPER", "root", "wrong-password")
	out := flushed(s, fc)
	if !strings.Contains(out, dispatch.ERR_NOOPERHOST) {
		t.Fatalf("expected ERR_NOOPERHOST for a bad password, got %q", out)
	}
	if s.User.IsOper() {
		t.Fatal("expected the user not to become an oper with a wrong password")
	}
}
