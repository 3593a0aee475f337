package sqllog

import (
	"testing"

	"github.com/relaycore/ircd/internal/module"
)

// fakeSubject satisfies EntrySubject for tests without pulling in
// internal/server.
type fakeSubject struct {
	nick, host, source string
}

func (f fakeSubject) LogNick() string   { return f.nick }
func (f fakeSubject) LogHost() string   { return f.host }
func (f fakeSubject) LogSource() string { return f.source }

func openTest(t *testing.T) *Logger {
	t.Helper()
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestCategoryStrings(t *testing.T) {
	cases := map[Category]string{
		CategoryOper:       "oper",
		CategoryKill:       "kill",
		CategoryConnect:    "connect",
		CategoryDisconnect: "disconnect",
		CategoryFlood:      "flood",
		CategoryLoadModule: "loadmodule",
		Category(99):       "unknown",
	}
	for cat, want := range cases {
		if got := cat.String(); got != want {
			t.Errorf("Category(%d).String() = %q, want %q", cat, got, want)
		}
	}
}

func TestStepInsertsOneRow(t *testing.T) {
	l := openTest(t)
	if err := l.step(CategoryOper, "alice", "example.com", "irc.relaycore.net"); err != nil {
		t.Fatalf("step: %v", err)
	}
	var count int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM ircd_log`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestResolveActorReusesID(t *testing.T) {
	l := openTest(t)
	first, err := l.resolveActor("alice")
	if err != nil {
		t.Fatalf("resolveActor: %v", err)
	}
	second, err := l.resolveActor("alice")
	if err != nil {
		t.Fatalf("resolveActor (second): %v", err)
	}
	if first != second {
		t.Fatalf("expected the same id on re-resolution, got %d then %d", first, second)
	}

	var count int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM ircd_log_actors`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one actor row despite resolving twice, got %d", count)
	}
}

func TestLogIfSubjectIgnoresNonSubjectPayload(t *testing.T) {
	l := openTest(t)
	l.logIfSubject(CategoryOper, "not a subject")

	var count int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM ircd_log`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows for a non-EntrySubject payload, got %d", count)
	}
}

func TestLogIfSubjectRecordsEntry(t *testing.T) {
	l := openTest(t)
	l.logIfSubject(CategoryKill, fakeSubject{nick: "bob", host: "bad.host", source: "irc.relaycore.net"})

	var count int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM ircd_log`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestAttachRegistersModuleAndHooks(t *testing.T) {
	l := openTest(t)
	reg := module.NewRegistry()
	l.Attach(reg)

	vetoed := reg.Fire(module.EventOper, fakeSubject{nick: "carol", host: "h", source: "s"})
	if vetoed {
		t.Fatal("sqllog must never veto")
	}

	var count int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM ircd_log`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected EventOper to have logged one row, got %d", count)
	}
}
