// Package dnsresolve does reverse-DNS-on-connect for spec.md §3's
// User.RealHost ("reverse DNS or IP text") and §5's DNS offload service:
// a PTR lookup kicked off at accept time and completed asynchronously, so
// the single-threaded event loop (internal/server) never blocks on it.
package dnsresolve

import (
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout bounds how long a single PTR lookup is allowed to run
// before the caller gives up and keeps the dialed IP as the displayed host.
const DefaultTimeout = 3 * time.Second

// Result is posted back to the event loop once a lookup finishes, tagged
// by the fd it was started for so a closed/reused connection's stale
// answer can be discarded rather than misapplied to a new session.
type Result struct {
	FD   int
	Host string // "" if resolution failed or returned no PTR record
}

// Resolver issues reverse lookups against a configured (or system
// default) recursive resolver using a raw UDP DNS exchange, the way any
// non-net.LookupAddr caller of miekg/dns does it -- no resolver-library
// indirection, just client + exchange.
type Resolver struct {
	client  *dns.Client
	server  string
	timeout time.Duration
}

// New builds a Resolver. server is "host:port"; when empty, the first
// nameserver in /etc/resolv.conf is used. timeout <= 0 uses DefaultTimeout.
func New(server string, timeout time.Duration) (*Resolver, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if server == "" {
		cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, err
		}
		if len(cfg.Servers) == 0 {
			server = "127.0.0.1:53"
		} else {
			server = cfg.Servers[0] + ":" + cfg.Port
		}
	}
	return &Resolver{
		client:  &dns.Client{Timeout: timeout},
		server:  server,
		timeout: timeout,
	}, nil
}

// LookupAsync starts a PTR lookup for ip on its own goroutine and sends
// exactly one Result to out once it completes or times out. out must be
// buffered (or drained promptly) since LookupAsync never blocks waiting
// for the send past the lookup itself completing.
func (r *Resolver) LookupAsync(fd int, ip string, out chan<- Result) {
	go func() {
		host := r.lookup(ip)
		out <- Result{FD: fd, Host: host}
	}()
}

func (r *Resolver) lookup(ip string) string {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return ""
	}
	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	m.RecursionDesired = true

	reply, _, err := r.client.Exchange(m, r.server)
	if err != nil || reply == nil || reply.Rcode != dns.RcodeSuccess {
		return ""
	}
	for _, ans := range reply.Answer {
		if ptr, ok := ans.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}
