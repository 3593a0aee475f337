// Package conn implements the per-client Connection object from spec.md
// §3/§4.D: buffers, registration FSM, flood accounting and ping/timeout
// discipline. It is deliberately ignorant of command dispatch and the
// user/channel graph -- Server (internal/server) wires a Connection's
// parsed lines into the dispatcher.
package conn

import (
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/relaycore/ircd/internal/ids"
	"github.com/relaycore/ircd/pkg/ircwire"
)

const (
	// MaxSendQ bounds the output buffer (§5): exceeding it kills the
	// connection with "SendQ exceeded".
	MaxSendQ = 1 << 20

	// DefaultRegistrationDeadline is how long an UNREG connection is given
	// before being killed (§4.D).
	DefaultRegistrationDeadline = 60 * time.Second

	// DefaultPingFreq/PingTimeout drive the tick() ping discipline (§4.D).
	DefaultPingFreq    = 90 * time.Second
	DefaultPingTimeout = 180 * time.Second

	// Flood accounting: ~10 KB/sec sustained, bursting up to 4KB, per §5's
	// "O(10 KB/sec)" threshold.
	floodRateBytesPerSec = 10 * 1024
	floodBurstBytes      = 4 * 1024
)

// Conn is a live TCP endpoint. It either owns no User (pre-registration)
// or exactly one (post-registration) -- the owning User's id, not the
// User itself, to avoid importing the user package and creating a cycle
// with anything that itself needs a Conn.
type Conn struct {
	FD       int
	conn     net.Conn
	peerAddr net.Addr
	localAddr net.Addr

	State State
	User  ids.UserID // valid only when State == Registered
	HasUser bool

	framer  ircwire.Framer
	outBuf  []byte
	flood   *rate.Limiter

	LastActivity       time.Time
	PingSentAt         time.Time
	pingOutstanding    bool
	RegistrationDeadline time.Time

	QuitReason string

	// Tentative registration state, valid before State reaches Registered.
	TentativeNick string
	TentativeUser string
	TentativeReal string
	CapPending    bool

	// ResolvedHost is filled in asynchronously by a reverse DNS lookup
	// kicked off at accept time (internal/dnsresolve). Empty until the
	// lookup resolves or fails; registration falls back to the dialed IP
	// when it's still empty at handshake completion.
	ResolvedHost string
}

func New(fd int, c net.Conn) *Conn {
	now := time.Now()
	return &Conn{
		FD:                   fd,
		conn:                 c,
		peerAddr:             c.RemoteAddr(),
		localAddr:            c.LocalAddr(),
		State:                Unregistered,
		flood:                rate.NewLimiter(rate.Limit(floodRateBytesPerSec), floodBurstBytes),
		LastActivity:         now,
		RegistrationDeadline: now.Add(DefaultRegistrationDeadline),
	}
}

func (c *Conn) RemoteAddr() net.Addr { return c.peerAddr }
func (c *Conn) LocalAddr() net.Addr  { return c.localAddr }

// RecvReady performs one read of up to 4096 bytes and returns the complete
// protocol lines now buffered. err is non-nil if the peer closed or the socket faulted,
// in which case the caller should transition to Quitting.
func (c *Conn) RecvReady() (lines []string, overQuota bool, err error) {
	buf := make([]byte, 4096)
	n, rerr := c.conn.Read(buf)
	if n > 0 {
		lines, overQuota = c.framer.Feed(buf[:n])
		c.LastActivity = time.Now()
	}
	if rerr != nil {
		return lines, overQuota, rerr
	}
	return lines, overQuota, nil
}

// Write appends to the output buffer. Returns false if this pushed SendQ
// over its cap, in which case the caller must kill the connection.
func (c *Conn) Write(line string) bool {
	c.outBuf = append(c.outBuf, line...)
	c.outBuf = append(c.outBuf, '\r', '\n')
	return len(c.outBuf) <= MaxSendQ
}

// SendReady flushes as much of the output buffer as the socket will take
// right now. ok is false on an unrecoverable write error.
func (c *Conn) SendReady() (drained bool, ok bool) {
	if len(c.outBuf) == 0 {
		return true, true
	}
	n, err := c.conn.Write(c.outBuf)
	c.outBuf = c.outBuf[n:]
	if err != nil {
		if isTemporary(err) {
			return len(c.outBuf) == 0, true
		}
		return false, false
	}
	return len(c.outBuf) == 0, true
}

func isTemporary(err error) bool {
	type temporary interface{ Temporary() bool }
	if t, ok := err.(temporary); ok {
		return t.Temporary()
	}
	return false
}

// ChargeFlood accounts for one incoming line of the given length against
// the flood meter. Returns false once the connection should be killed for
// "Excess flood".
func (c *Conn) ChargeFlood(lineLen int) bool {
	return c.flood.AllowN(time.Now(), lineLen+1)
}

// Tick runs the ping/timeout discipline for one event-loop iteration.
// Returns a non-empty reason if the connection should transition to
// Quitting.
func (c *Conn) Tick(now time.Time, pingFreq, pingTimeout time.Duration, hostname string) (pingLine string, quitReason string) {
	if c.pingOutstanding {
		if now.Sub(c.PingSentAt) > pingTimeout {
			return "", "Ping timeout"
		}
		return "", ""
	}
	if now.Sub(c.LastActivity) > pingFreq {
		c.pingOutstanding = true
		c.PingSentAt = now
		return "PING :" + hostname, ""
	}
	return "", ""
}

func (c *Conn) PongReceived() {
	c.pingOutstanding = false
	c.LastActivity = time.Now()
}

func (c *Conn) Close() error {
	c.State = Dead
	return c.conn.Close()
}

// RawConn exposes the underlying net.Conn for reactor fd registration.
func (c *Conn) RawConn() net.Conn { return c.conn }
