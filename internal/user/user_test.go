package user

import "testing"

func TestHostmask(t *testing.T) {
	u := New(1, "uid-1", "alice")
	u.Ident = "a"
	u.DisplayedHost = "example.com"
	if got, want := u.Hostmask(), "alice!a@example.com"; got != want {
		t.Errorf("Hostmask() = %q, want %q", got, want)
	}
}

func TestIsOper(t *testing.T) {
	u := New(1, "uid-1", "alice")
	if u.IsOper() {
		t.Fatal("fresh user should not be an oper")
	}
	u.Oper = &OperType{Name: "alice", Class: "netadmin"}
	if !u.IsOper() {
		t.Fatal("user with a non-nil OperType should be an oper")
	}
}

func TestChannelMembershipSet(t *testing.T) {
	u := New(1, "uid-1", "alice")
	if u.InChannel(5) {
		t.Fatal("fresh user should not be in any channel")
	}
	u.JoinChannel(5)
	if !u.InChannel(5) {
		t.Fatal("expected membership after JoinChannel")
	}
	u.LeaveChannel(5)
	if u.InChannel(5) {
		t.Fatal("expected membership to be cleared after LeaveChannel")
	}
}

func TestModeSetBits(t *testing.T) {
	var m ModeSet
	if !m.Empty() {
		t.Fatal("zero-value ModeSet should be Empty")
	}
	m.Set(2)
	if m.Empty() {
		t.Fatal("ModeSet should not be Empty once a bit is set")
	}
	if !m.Has(2) {
		t.Fatal("expected bit 2 to be set")
	}
	m.Clear(2)
	if m.Has(2) {
		t.Fatal("expected bit 2 to be cleared")
	}
}
