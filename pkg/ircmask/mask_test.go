package ircmask

import "testing"

func TestFold(t *testing.T) {
	if Fold("Al[ice]^") != "al{ice}^" {
		t.Fatalf("Fold produced %q", Fold("Al[ice]^"))
	}
}

func TestWildcardMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "anything", true},
		{"a*c", "abc", true},
		{"a*c", "ac", true},
		{"a?c", "abc", true},
		{"a?c", "abbc", false},
		{"*!*@1.2.3.4", "nick!user@1.2.3.4", true},
		{"Al*", "alice", true},
	}
	for _, c := range cases {
		if got := WildcardMatch(c.pattern, c.s); got != c.want {
			t.Errorf("WildcardMatch(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}

func TestMatchCIDR(t *testing.T) {
	if !MatchCIDR("1.2.3.4", "1.2.0.0/16") {
		t.Fatal("expected 1.2.3.4 to match 1.2.0.0/16")
	}
	if MatchCIDR("1.3.0.0", "1.2.0.0/16") {
		t.Fatal("expected 1.3.0.0 not to match 1.2.0.0/16")
	}
	if MatchCIDR("::1", "1.2.0.0/16") {
		t.Fatal("IPv4 CIDR must never match an IPv6 address")
	}
	if !MatchCIDR("10.0.0.5", "10.0.0.5") {
		t.Fatal("bare address should default to /32")
	}
	if MatchCIDR("10.0.0.6", "10.0.0.5") {
		t.Fatal("bare address /32 should not match a different host")
	}
}

func TestMatchMaskNUH(t *testing.T) {
	if !MatchMaskNUH("alice!auser@1.2.3.4", "*!*@1.2.3.4") {
		t.Fatal("expected ban mask to match exact host")
	}
	if !MatchMaskNUH("alice!auser@1.2.3.4", "*!*@1.2.0.0/16") {
		t.Fatal("expected ban mask to match via CIDR host")
	}
	if MatchMaskNUH("bob!buser@5.6.7.8", "*!*@1.2.0.0/16") {
		t.Fatal("did not expect bob to match alice's ban")
	}
	if !MatchMaskNUH("Alice!x@y", "alice!*@*") {
		t.Fatal("nick comparison must be case-insensitive")
	}
}
