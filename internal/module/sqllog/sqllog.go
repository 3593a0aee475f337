// Package sqllog implements a network-activity audit log as an
// internal/module EventSubscriber, resolving the InspIRCd m_sqllog.cpp /
// m_sqlutils.cpp pair from original_source/: every OPER, KILL, connect and
// disconnect is recorded against normalized actor/host tables, the way the
// original's "ircd_log_actors" / "ircd_log_hosts" / "ircd_log" schema does.
//
// The original ran this as an async callback chain against a non-blocking
// SQL client, re-entering the same state machine once per query result and
// falling through adjacent switch cases to walk from FIND_SOURCE through
// INSERT_LOGENTRY. database/sql here is a blocking call, so the whole walk
// collapses to one step() per event -- no re-entrancy, no fallthrough.
// step() runs synchronously on whichever goroutine fires the event (the
// event loop, via module.Registry.Fire); there is no worker pool.
package sqllog

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relaycore/ircd/internal/module"
)

// Category mirrors the original's LogTypes enum.
type Category int

const (
	CategoryOper Category = iota + 1
	CategoryKill
	CategoryConnect
	CategoryDisconnect
	CategoryFlood
	CategoryLoadModule
)

func (c Category) String() string {
	switch c {
	case CategoryOper:
		return "oper"
	case CategoryKill:
		return "kill"
	case CategoryConnect:
		return "connect"
	case CategoryDisconnect:
		return "disconnect"
	case CategoryFlood:
		return "flood"
	case CategoryLoadModule:
		return "loadmodule"
	default:
		return "unknown"
	}
}

// state names each step of resolving one log entry, mirroring the
// original's state-tagged QueryInfo. step() runs the steps as straight-line
// calls in this order and does not reference these constants.
type state int

const (
	stateResolveActor state = iota
	stateResolveNick
	stateResolveHost
	stateInsertEntry
	stateDone
)

// Logger owns the sqlite-backed audit tables and attaches itself to a
// module.Registry's event stream.
type Logger struct {
	db   *sql.DB
	name string
}

// Open creates (or reuses) the sqlite database at path and ensures the
// actor/host/log tables exist.
func Open(path string) (*Logger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqllog: open %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Logger{db: db, name: "sqllog"}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ircd_log_actors (id INTEGER PRIMARY KEY, actor TEXT UNIQUE NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS ircd_log_hosts (id INTEGER PRIMARY KEY, hostname TEXT UNIQUE NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS ircd_log (
			id INTEGER PRIMARY KEY,
			category INTEGER NOT NULL,
			nick_id INTEGER NOT NULL REFERENCES ircd_log_actors(id),
			host_id INTEGER NOT NULL REFERENCES ircd_log_hosts(id),
			source_id INTEGER NOT NULL REFERENCES ircd_log_actors(id),
			logged_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("sqllog: migrate: %w", err)
		}
	}
	return nil
}

func (l *Logger) Close() error { return l.db.Close() }

// Attach registers Logger against the oper, kill, connect and disconnect
// events (the original's I_OnOper, I_OnKill, I_OnUserConnect,
// I_OnUserQuit), loading it into reg the same way any third-party module
// would be. The original's I_OnLoadModule has no counterpart here, so no
// CategoryLoadModule row is ever written.
func (l *Logger) Attach(reg *module.Registry) {
	reg.Load(&module.Module{Name: l.name, Version: "1.0.0", Capabilities: []string{"SQLLog"}})
	reg.Attach(l.name, module.EventOper, l.onOper)
	reg.Attach(l.name, module.EventKill, l.onKill)
	reg.Attach(l.name, module.EventConnect, l.onConnect)
	reg.Attach(l.name, module.EventDisconnect, l.onDisconnect)
}

// EntrySubject is the minimal shape Logger needs from whatever Session-like
// payload the core fires; internal/server's Session satisfies it without
// sqllog importing internal/server (which would cycle back).
type EntrySubject interface {
	LogNick() string
	LogHost() string
	LogSource() string
}

func (l *Logger) onOper(payload interface{}) module.Veto {
	l.logIfSubject(CategoryOper, payload)
	return false
}

func (l *Logger) onKill(payload interface{}) module.Veto {
	l.logIfSubject(CategoryKill, payload)
	return false
}

func (l *Logger) onConnect(payload interface{}) module.Veto {
	l.logIfSubject(CategoryConnect, payload)
	return false
}

func (l *Logger) onDisconnect(payload interface{}) module.Veto {
	l.logIfSubject(CategoryDisconnect, payload)
	return false
}

func (l *Logger) logIfSubject(cat Category, payload interface{}) {
	subj, ok := payload.(EntrySubject)
	if !ok {
		return
	}
	if err := l.step(cat, subj.LogNick(), subj.LogHost(), subj.LogSource()); err != nil {
		_ = err // best-effort: a logging failure must never take down a session
	}
}

// step resolves actor/host ids and inserts one log row in a single pass,
// replacing the original's FIND_SOURCE -> INSERT_SOURCE -> FIND_NICK ->
// INSERT_NICK -> FIND_HOST -> INSERT_HOST -> INSERT_LOGENTRY walk: each
// "find-or-insert" is a SELECT followed, on a miss, by an INSERT, issued
// back to back since there's no async result callback forcing the split.
func (l *Logger) step(cat Category, nick, host, source string) error {
	sourceID, err := l.resolveActor(source)
	if err != nil {
		return err
	}
	nickID, err := l.resolveActor(nick)
	if err != nil {
		return err
	}
	hostID, err := l.resolveHost(host)
	if err != nil {
		return err
	}
	return l.insertEntry(cat, nickID, hostID, sourceID)
}

func (l *Logger) resolveActor(actor string) (int64, error) {
	return findOrInsert(l.db, "ircd_log_actors", "actor", actor)
}

func (l *Logger) resolveHost(host string) (int64, error) {
	return findOrInsert(l.db, "ircd_log_hosts", "hostname", host)
}

func findOrInsert(db *sql.DB, table, column, value string) (int64, error) {
	var id int64
	row := db.QueryRow(fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", table, column), value)
	if err := row.Scan(&id); err == nil {
		return id, nil
	} else if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := db.Exec(fmt.Sprintf("INSERT INTO %s(%s) VALUES (?)", table, column), value)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (l *Logger) insertEntry(cat Category, nickID, hostID, sourceID int64) error {
	_, err := l.db.Exec(
		`INSERT INTO ircd_log(category, nick_id, host_id, source_id, logged_at) VALUES (?, ?, ?, ?, ?)`,
		int(cat), nickID, hostID, sourceID, time.Now().Unix(),
	)
	return err
}
