package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
[server]
name = "irc.relaycore.net"
description = "A relay core test instance"
network = "RelayCoreTest"

[admin]
name = "Ops"
nick = "ops"
email = "ops@relaycore.net"

[[bind]]
address = "0.0.0.0"
port = 6667

[limits]
max_nick_len = 30
registration_timeout_sec = 60
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ircd.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseDecodesBlocks(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Name != "irc.relaycore.net" {
		t.Errorf("Server.Name = %q", cfg.Server.Name)
	}
	if len(cfg.Binds) != 1 || cfg.Binds[0].Port != 6667 {
		t.Errorf("unexpected binds: %+v", cfg.Binds)
	}
	if cfg.Limits.MaxNickLen != 30 {
		t.Errorf("Limits.MaxNickLen = %d, want 30", cfg.Limits.MaxNickLen)
	}
}

func TestParseMissingFile(t *testing.T) {
	if _, err := Parse(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error parsing a nonexistent file")
	}
}

func TestStoreRehashSwapsSnapshot(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	store := NewStore(cfg)

	updated := sampleConfig + "\n[[bind]]\naddress = \"0.0.0.0\"\nport = 6697\ntls = true\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	if err := store.Rehash(); err != nil {
		t.Fatalf("Rehash: %v", err)
	}
	if got := len(store.Get().Binds); got != 2 {
		t.Fatalf("expected 2 binds after rehash, got %d", got)
	}
}

func TestStoreRehashKeepsOldSnapshotOnParseFailure(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	store := NewStore(cfg)

	if err := os.WriteFile(path, []byte("not valid toml [[["), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	if err := store.Rehash(); err == nil {
		t.Fatal("expected Rehash to fail on invalid TOML")
	}
	if got := store.Get().Server.Name; got != "irc.relaycore.net" {
		t.Fatalf("expected the old snapshot to be retained, got Server.Name=%q", got)
	}
}
