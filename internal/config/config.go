// Package config implements the declarative configuration file boundary
// from spec.md §6: typed blocks (server, admin, bind, class, connect,
// oper, module, vhost, cidr, limits) loaded into an immutable snapshot,
// with a rehash() that swaps snapshots atomically between event-loop
// iterations.
package config

import (
	"fmt"
	"sync/atomic"

	"github.com/BurntSushi/toml"
)

type Server struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Network     string `toml:"network"`
}

type Admin struct {
	Name  string `toml:"name"`
	Nick  string `toml:"nick"`
	Email string `toml:"email"`
}

type Bind struct {
	Address string `toml:"address"`
	Port    int    `toml:"port"`
	TLS     bool   `toml:"tls"`
	Cert    string `toml:"cert"`
	Key     string `toml:"key"`
}

type Class struct {
	Name      string `toml:"name"`
	MaxConns  int    `toml:"max_connections"`
	SendQ     int    `toml:"sendq"`
	RecvQ     int    `toml:"recvq"`
	PingFreq  int    `toml:"ping_freq_sec"`
	PingTimeo int    `toml:"ping_timeout_sec"`
}

type Connect struct {
	Allow string `toml:"allow"` // CIDR or hostmask
	Class string `toml:"class"`
	Password string `toml:"password"`
}

type Oper struct {
	Name         string `toml:"name"`
	PasswordHash string `toml:"password_hash"`
	Host         string `toml:"host"`
	Class        string `toml:"class"`
}

type ModuleConfig struct {
	Name    string            `toml:"name"`
	Options map[string]string `toml:"options"`
}

type Vhost struct {
	Host     string `toml:"host"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Hash     string `toml:"hash"`
}

type CIDRClass struct {
	Range string `toml:"range"`
	Class string `toml:"class"`
}

type Limits struct {
	MaxNickLen    int `toml:"max_nick_len"`
	MaxChannelLen int `toml:"max_channel_len"`
	MaxBanList    int `toml:"max_ban_list"`
	MaxChannels   int `toml:"max_channels_per_user"`
	RegistrationTimeoutSec int `toml:"registration_timeout_sec"`
}

// DNS controls reverse-resolution of connecting IPs into User.RealHost
// (spec.md §3, §5). Disabled (the zero value) means connections keep the
// raw dialed IP as their displayed host.
type DNS struct {
	Enabled    bool   `toml:"enabled"`
	Resolver   string `toml:"resolver"` // "host:port"; empty reads /etc/resolv.conf
	TimeoutSec int    `toml:"timeout_sec"`
}

// Config is one immutable configuration snapshot.
type Config struct {
	Server  Server         `toml:"server"`
	Admin   Admin          `toml:"admin"`
	Binds   []Bind         `toml:"bind"`
	Classes []Class        `toml:"class"`
	Connect []Connect      `toml:"connect"`
	Opers   []Oper         `toml:"oper"`
	Modules []ModuleConfig `toml:"module"`
	Vhosts  []Vhost        `toml:"vhost"`
	CIDRs   []CIDRClass    `toml:"cidr"`
	Limits  Limits         `toml:"limits"`
	DNS     DNS            `toml:"dns"`

	path string
}

func Parse(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.path = path
	return &c, nil
}

// Store holds the currently active Config behind an atomic pointer so the
// event loop can read it lock-free and rehash() can swap it between
// iterations without the reader ever observing a torn config (§6).
type Store struct {
	ptr atomic.Pointer[Config]
}

func NewStore(initial *Config) *Store {
	s := &Store{}
	s.ptr.Store(initial)
	return s
}

func (s *Store) Get() *Config { return s.ptr.Load() }

// Rehash parses the config file again and swaps it in on success. On
// parse failure the old config is retained and the error is returned for
// the caller to report to opers (§7: "rehash errors are non-fatal").
func (s *Store) Rehash() error {
	cur := s.Get()
	next, err := Parse(cur.path)
	if err != nil {
		return err
	}
	s.ptr.Store(next)
	return nil
}
