package server

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/relaycore/ircd/internal/config"
	"github.com/relaycore/ircd/internal/conn"
	"github.com/relaycore/ircd/internal/dispatch"
	"github.com/relaycore/ircd/internal/metrics"
	"github.com/relaycore/ircd/pkg/logger"
)

// fakeConn is a minimal net.Conn backed by in-memory buffers, letting
// session tests flush and inspect written lines without a real socket.
type fakeConn struct {
	writeBuf bytes.Buffer
}

func (f *fakeConn) Read([]byte) (int, error)    { return 0, nil }
func (f *fakeConn) Write(p []byte) (int, error)  { return f.writeBuf.Write(p) }
func (f *fakeConn) Close() error                 { return nil }
func (f *fakeConn) LocalAddr() net.Addr          { return fakeAddr("127.0.0.1:6667") }
func (f *fakeConn) RemoteAddr() net.Addr         { return fakeAddr("10.0.0.5:54321") }
func (f *fakeConn) SetDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

func newTestContext(t *testing.T) *Context {
	t.Helper()
	store := config.NewStore(&config.Config{})
	log := logger.New(discardSink{}, logger.ERROR)
	ctx, err := NewContext("irc.relaycore.test", "test-0.0", store, log, metrics.New(nil))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return ctx
}

type discardSink struct{}

func (discardSink) Println(...interface{}) {}

// newTestSession builds a live Session against a fakeConn and tracks it in
// ctx, mirroring what the accept path does for a real connection.
func newTestSession(t *testing.T, ctx *Context, fd int) (*Session, *fakeConn) {
	t.Helper()
	fc := &fakeConn{}
	c := conn.New(fd, fc)
	s := newSession(ctx, c)
	ctx.trackSession(s)
	return s, fc
}

// flushed returns everything written to the session so far and resets the
// underlying buffer, via conn.SendReady's real flush path.
func flushed(s *Session, fc *fakeConn) string {
	s.Conn.SendReady()
	out := fc.writeBuf.String()
	fc.writeBuf.Reset()
	return out
}

func dispatchLine(ctx *Context, s *Session, command string, params ...string) dispatch.Result {
	return ctx.Commands.Dispatch(s, dispatch.Invocation{Command: command, Params: params})
}

// registerSession drives a session through PASS-less NICK/USER registration
// and returns it ready for post-registration commands.
func registerSession(t *testing.T, ctx *Context, fd int, nick string) (*Session, *fakeConn) {
	t.Helper()
	s, fc := newTestSession(t, ctx, fd)
	dispatchLine(ctx, s, "NICK", nick)
	dispatchLine(ctx, s, "USER", "u", "0", "*", "Real Name")
	if !s.Registered() {
		t.Fatalf("expected session to complete registration, output so far: %q", flushed(s, fc))
	}
	fc.writeBuf.Reset()
	return s, fc
}
