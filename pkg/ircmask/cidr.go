package ircmask

import (
	"net"
	"strconv"
	"strings"
)

// MatchCIDRBits compares the first bits of addr and mask, byte by byte
// with a partial final byte. Addresses of different length (family) never
// match.
func MatchCIDRBits(addr, mask []byte, bits int) bool {
	if len(addr) != len(mask) {
		return false
	}
	if bits < 0 || bits > len(addr)*8 {
		return false
	}

	fullBytes := bits / 8
	remBits := bits % 8

	for i := 0; i < fullBytes; i++ {
		if addr[i] != mask[i] {
			return false
		}
	}
	if remBits == 0 {
		return true
	}

	shift := 8 - remBits
	return addr[fullBytes]>>shift == mask[fullBytes]>>shift
}

// MatchCIDR parses spec as "a.b.c.d/p", "ipv6addr/p" or a bare address
// (defaulting to /32 or /128) and reports whether addrStr falls inside it.
// IPv4 and IPv6 addresses never match each other.
func MatchCIDR(addrStr, spec string) bool {
	addr := net.ParseIP(addrStr)
	if addr == nil {
		return false
	}

	base, bitsStr, hasBits := strings.Cut(spec, "/")
	maskIP := net.ParseIP(base)
	if maskIP == nil {
		return false
	}

	addr4, mask4 := addr.To4(), maskIP.To4()
	if (addr4 == nil) != (mask4 == nil) {
		return false // family mismatch
	}

	var addrBytes, maskBytes []byte
	var maxBits int
	if addr4 != nil {
		addrBytes, maskBytes, maxBits = addr4, mask4, 32
	} else {
		addrBytes, maskBytes, maxBits = addr.To16(), maskIP.To16(), 128
	}

	bits := maxBits
	if hasBits {
		n, err := strconv.Atoi(bitsStr)
		if err != nil {
			return false
		}
		bits = n
	}

	return MatchCIDRBits(addrBytes, maskBytes, bits)
}

// MatchMaskNUH implements §4.A's nick!user@host matching: nick and user
// are wildcard-matched under the casemap; host is either CIDR-matched (if
// pattern's host looks like an address or address/bits) or
// wildcard-matched as a literal hostname pattern.
func MatchMaskNUH(nuh, pattern string) bool {
	wantNick, wantUser, wantHost := SplitNUH(nuh)
	patNick, patUser, patHost := SplitNUH(pattern)

	if !WildcardMatch(patNick, wantNick) {
		return false
	}
	if !WildcardMatch(patUser, wantUser) {
		return false
	}

	if looksLikeCIDR(patHost) {
		return MatchCIDR(wantHost, patHost)
	}
	return WildcardMatch(patHost, wantHost)
}

func looksLikeCIDR(host string) bool {
	base, _, _ := strings.Cut(host, "/")
	return net.ParseIP(base) != nil
}
