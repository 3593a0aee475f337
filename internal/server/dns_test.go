package server

import (
	"testing"

	"github.com/relaycore/ircd/internal/dnsresolve"
)

func TestApplyDNSResultFillsResolvedHostBeforeRegistration(t *testing.T) {
	ctx := newTestContext(t)
	s, _ := newTestSession(t, ctx, 1)

	ctx.applyDNSResult(dnsresolve.Result{FD: 1, Host: "host.example.com"})

	if s.Conn.ResolvedHost != "host.example.com" {
		t.Fatalf("ResolvedHost = %q, want host.example.com", s.Conn.ResolvedHost)
	}
}

func TestRegistrationUsesResolvedHostWhenPresent(t *testing.T) {
	ctx := newTestContext(t)
	s, fc := newTestSession(t, ctx, 1)
	s.Conn.ResolvedHost = "host.example.com"

	dispatchLine(ctx, s, "NICK", "alice")
	dispatchLine(ctx, s, "USER", "a", "0", "*", "Alice A")

	if s.User.RealHost != "host.example.com" || s.User.DisplayedHost != "host.example.com" {
		t.Fatalf("expected registration to adopt the resolved host, got RealHost=%q DisplayedHost=%q", s.User.RealHost, s.User.DisplayedHost)
	}
	flushed(s, fc)
}

func TestApplyDNSResultUpdatesAlreadyRegisteredUser(t *testing.T) {
	ctx := newTestContext(t)
	s, _ := registerSession(t, ctx, 1, "alice")

	ctx.applyDNSResult(dnsresolve.Result{FD: 1, Host: "late.example.com"})

	if s.User.RealHost != "late.example.com" || s.User.DisplayedHost != "late.example.com" {
		t.Fatalf("expected a late-arriving PTR result to update the registered user's host, got %q/%q", s.User.RealHost, s.User.DisplayedHost)
	}
}

func TestApplyDNSResultSkipsUserWithVhostApplied(t *testing.T) {
	ctx := newTestContext(t)
	s, _ := registerSession(t, ctx, 1, "alice")
	s.User.DisplayedHost = "cloaked.relaycore.net"

	ctx.applyDNSResult(dnsresolve.Result{FD: 1, Host: "late.example.com"})

	if s.User.DisplayedHost != "cloaked.relaycore.net" {
		t.Fatal("expected a vhost-applied displayed host not to be overwritten by a late PTR result")
	}
}

func TestApplyDNSResultIgnoresStaleFD(t *testing.T) {
	ctx := newTestContext(t)

	ctx.applyDNSResult(dnsresolve.Result{FD: 99, Host: "ghost.example.com"})
	// No session tracked under fd 99; must not panic and must have no effect.
}

func TestApplyDNSResultIgnoresEmptyHost(t *testing.T) {
	ctx := newTestContext(t)
	s, _ := newTestSession(t, ctx, 1)

	ctx.applyDNSResult(dnsresolve.Result{FD: 1, Host: ""})

	if s.Conn.ResolvedHost != "" {
		t.Fatal("expected an empty (failed-lookup) result to leave ResolvedHost untouched")
	}
}
