package channel

import "testing"

func TestPrefixSymbol(t *testing.T) {
	cases := []struct {
		p    Prefix
		want string
	}{
		{PrefixNone, ""},
		{PrefixVoice, "+"},
		{PrefixHalfop, "%"},
		{PrefixOp, "@"},
		{PrefixAdmin, "&"},
		{PrefixFounder, "~"},
		{PrefixOp | PrefixVoice, "@"},
	}
	for _, tc := range cases {
		if got := tc.p.Symbol(); got != tc.want {
			t.Errorf("Prefix(%d).Symbol() = %q, want %q", tc.p, got, tc.want)
		}
	}
}

func TestPrefixThresholds(t *testing.T) {
	if (PrefixVoice).AtLeastHalfop() {
		t.Error("voice should not satisfy AtLeastHalfop")
	}
	if !(PrefixHalfop).AtLeastHalfop() {
		t.Error("halfop should satisfy AtLeastHalfop")
	}
	if (PrefixHalfop).AtLeastOp() {
		t.Error("halfop should not satisfy AtLeastOp")
	}
	if !(PrefixFounder).AtLeastOp() {
		t.Error("founder should satisfy AtLeastOp")
	}
}

func TestMemberLifecycle(t *testing.T) {
	c := New(1, "#test")
	if !c.Empty() {
		t.Fatal("expected a fresh channel to be empty")
	}
	c.AddMember(42, PrefixOp)
	if !c.HasMember(42) {
		t.Fatal("expected member to be present")
	}
	if c.PrefixOf(42) != PrefixOp {
		t.Fatalf("expected PrefixOp, got %v", c.PrefixOf(42))
	}
	c.SetPrefix(42, PrefixVoice)
	if c.PrefixOf(42) != PrefixVoice {
		t.Fatalf("expected prefix to update to PrefixVoice, got %v", c.PrefixOf(42))
	}
	c.RemoveMember(42)
	if c.HasMember(42) {
		t.Fatal("expected member to be removed")
	}
	if !c.Empty() {
		t.Fatal("expected channel to be empty after removing its only member")
	}
}

func TestSetPrefixNoopForAbsentMember(t *testing.T) {
	c := New(1, "#test")
	c.SetPrefix(99, PrefixOp)
	if c.HasMember(99) {
		t.Fatal("SetPrefix must not create a membership entry for an absent user")
	}
}

func TestAddBanIdempotent(t *testing.T) {
	c := New(1, "#test")
	if ok := c.AddBan("*!*@bad.host", "alice"); !ok {
		t.Fatal("expected first ban to be added")
	}
	if ok := c.AddBan("*!*@bad.host", "bob"); ok {
		t.Fatal("expected re-adding the same mask to report nothing changed (ok=false)")
	}
	if len(c.Bans) != 1 {
		t.Fatalf("expected exactly one ban entry, got %d", len(c.Bans))
	}
}

func TestAddBanRespectsCap(t *testing.T) {
	c := New(1, "#test")
	for i := 0; i < MaskListCap; i++ {
		mask := string(rune('a'+i%26)) + string(rune('a'+i/26)) + "!*@*"
		c.AddBan(mask, "op")
	}
	if ok := c.AddBan("overflow!*@*", "op"); ok {
		t.Fatal("expected ban list to reject an entry past MaskListCap")
	}
}

func TestRemoveBan(t *testing.T) {
	c := New(1, "#test")
	c.AddBan("*!*@bad.host", "alice")
	if ok := c.RemoveBan("*!*@bad.host"); !ok {
		t.Fatal("expected removal of an existing ban to succeed")
	}
	if ok := c.RemoveBan("*!*@bad.host"); ok {
		t.Fatal("expected removal of an already-removed ban to fail")
	}
}

func TestModeSetBits(t *testing.T) {
	var m ModeSet
	m.Set(3)
	if !m.Has(3) {
		t.Fatal("expected bit 3 to be set")
	}
	m.Clear(3)
	if m.Has(3) {
		t.Fatal("expected bit 3 to be cleared")
	}
}
