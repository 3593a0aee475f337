// Package tlsboundary models TLS termination as an opaque stream
// transformer, per spec.md §1 (TLS is an external collaborator, specified
// only at its boundary). The relay core never inspects certificates or
// negotiates ciphers itself; it just asks a StreamUpgrader to turn a raw
// net.Conn into one it can read/write cleartext IRC lines on.
package tlsboundary

import (
	"crypto/tls"
	"net"
)

// StreamUpgrader wraps an accepted connection, e.g. performing a TLS
// handshake, before the reactor registers its fd.
type StreamUpgrader interface {
	Upgrade(c net.Conn) (net.Conn, error)
}

// None is the no-op upgrader for plaintext listeners.
type None struct{}

func (None) Upgrade(c net.Conn) (net.Conn, error) { return c, nil }

// TLS wraps crypto/tls.Server. It is the only TLS-terminating library in
// this tree: none of the reference corpus's higher-level TLS stacks
// (certmagic/smallstep) are suited here, since those manage ACME
// certificate *issuance* for public-facing HTTP endpoints, not in-process
// termination of an already-provisioned certificate pair -- see
// DESIGN.md for the full justification.
type TLS struct {
	Config *tls.Config
}

func (t TLS) Upgrade(c net.Conn) (net.Conn, error) {
	return tls.Server(c, t.Config), nil
}
