package server

import (
	"net"
	"strconv"
	"time"

	"github.com/relaycore/ircd/pkg/ircmask"
)

func itoaInt(n int) string { return strconv.Itoa(n) }

func itoaTime(t time.Time) string { return strconv.FormatInt(t.Unix(), 10) }

// splitHostPort is a direct wrapper over net.SplitHostPort; a bare host
// with no port yields an error.
func splitHostPort(hostport string) (host, port string, err error) {
	return net.SplitHostPort(hostport)
}

// matchesConnectAllow reports whether host satisfies a connect-block's
// "allow" field, which may be a CIDR, a bare address, or a hostmask glob.
func matchesConnectAllow(allow, host string) bool {
	if allow == "" || allow == "*" {
		return true
	}
	if looksLikeAddress(allow) {
		return ircmask.MatchCIDR(host, allow)
	}
	return ircmask.WildcardMatch(allow, host)
}

func looksLikeAddress(s string) bool {
	base := s
	if i := indexByte(s, '/'); i != -1 {
		base = s[:i]
	}
	return net.ParseIP(base) != nil
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
