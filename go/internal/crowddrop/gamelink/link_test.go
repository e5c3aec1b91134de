package gamelink

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestProtoCodecRoundTrip(t *testing.T) {
	codec := ProtoCodec{}
	in := Frame{
		EventID: 3,
		Time:    180,
		Event:   Event{Type: 4, X: 160, Y: 320, VX: -12, VY: 0, HX: 100, HY: 100, Terminal: true},
	}

	payload, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := codec.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", out, in)
	}

	empty, _ := codec.Encode(Frame{})
	if len(empty) != 0 {
		t.Errorf("zero frame should encode to nothing, got %d bytes", len(empty))
	}
}

// gameServer accepts one connection and records the handshake and frames.
type gameServer struct {
	ln        net.Listener
	handshake chan byte
	frames    chan Frame
}

func startGameServer(t *testing.T) *gameServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	gs := &gameServer{ln: ln, handshake: make(chan byte, 1), frames: make(chan Frame, 16)}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var hs [1]byte
		if _, err := io.ReadFull(conn, hs[:]); err != nil {
			return
		}
		gs.handshake <- hs[0]

		for {
			payload, err := ReadFrame(conn)
			if err != nil {
				return
			}
			f, err := ProtoCodec{}.Decode(payload)
			if err != nil {
				return
			}
			gs.frames <- f
		}
	}()
	return gs
}

func (gs *gameServer) nextFrame(t *testing.T) Frame {
	t.Helper()
	select {
	case f := <-gs.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func TestLinkSendsFramesOverTCP(t *testing.T) {
	gs := startGameServer(t)

	cfg := DefaultConfig()
	cfg.Addr = gs.ln.Addr().String()
	link := New(cfg, ProtoCodec{})
	defer link.Close()

	if err := link.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if link.State() != Connected {
		t.Fatalf("state = %s, want connected", link.State())
	}

	select {
	case hs := <-gs.handshake:
		if hs != 0x06 {
			t.Fatalf("handshake = %#x, want 0x06", hs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no handshake received")
	}

	// pointer motion shares the id of the gesture it belongs to
	if err := link.SendEvent(Event{X: 10, Y: 20}); err != nil {
		t.Fatalf("SendEvent motion: %v", err)
	}
	if f := gs.nextFrame(t); f.EventID != 0 || f.Terminal || f.Time != 180 {
		t.Fatalf("unexpected motion frame %+v", f)
	}
	if link.EventID() != 0 {
		t.Fatalf("motion advanced event id to %d", link.EventID())
	}

	if err := link.SendEvent(Event{Type: 2, X: 160, Y: 320, HX: 100, HY: 100, Terminal: true}); err != nil {
		t.Fatalf("SendEvent terminal: %v", err)
	}
	f := gs.nextFrame(t)
	if f.EventID != 0 || !f.Terminal || f.Type != 2 || f.X != 160 || f.Y != 320 {
		t.Fatalf("unexpected terminal frame %+v", f)
	}
	if link.EventID() != 1 {
		t.Fatalf("event id = %d after terminal, want 1", link.EventID())
	}

	if err := link.SendEvent(Event{Type: 1, Terminal: true}); err != nil {
		t.Fatalf("SendEvent second terminal: %v", err)
	}
	if f := gs.nextFrame(t); f.EventID != 1 {
		t.Fatalf("second gesture id = %d, want 1", f.EventID)
	}
}

type fakeConn struct {
	net.Conn

	mu       sync.Mutex
	okWrites int // writes that succeed before failing; negative never fails
	writes   [][]byte
	closed   bool
}

func (c *fakeConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if c.okWrites == 0 {
		return 0, errors.New("broken pipe")
	}
	if c.okWrites > 0 {
		c.okWrites--
	}
	c.writes = append(c.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func TestLinkReconnectsOnceAndDropsEvent(t *testing.T) {
	first := &fakeConn{okWrites: 1} // handshake only
	second := &fakeConn{okWrites: -1}
	conns := []*fakeConn{first, second}

	dials := 0
	dialer := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if dials >= len(conns) {
			return nil, errors.New("refused")
		}
		c := conns[dials]
		dials++
		return c, nil
	}

	link := New(DefaultConfig(), ProtoCodec{}, WithDialer(dialer))
	if err := link.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	err := link.SendEvent(Event{Type: 0, X: 160, Y: 320, Terminal: true})
	if !errors.Is(err, ErrDropped) {
		t.Fatalf("expected ErrDropped, got %v", err)
	}
	if dials != 2 {
		t.Fatalf("dials = %d, want exactly one reconnect", dials)
	}
	if link.EventID() != 0 {
		t.Fatalf("dropped terminal event advanced id to %d", link.EventID())
	}
	if link.State() != Connected {
		t.Fatalf("state = %s after successful reconnect", link.State())
	}
	if !first.closed {
		t.Error("failed socket was not closed")
	}
	if second.writeCount() != 1 {
		t.Fatalf("reconnected socket got %d writes, want handshake only", second.writeCount())
	}

	// next event goes out on the new socket with the same id
	if err := link.SendEvent(Event{Type: 0, Terminal: true}); err != nil {
		t.Fatalf("SendEvent after reconnect: %v", err)
	}
	if second.writeCount() != 3 {
		t.Fatalf("expected prefix and payload writes, got %d total", second.writeCount())
	}
	if link.EventID() != 1 {
		t.Fatalf("event id = %d, want 1", link.EventID())
	}
}

func TestLinkReconnectBackoffWhileDisconnected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dials := 0
	dialer := func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials++
		return nil, errors.New("refused")
	}

	cfg := DefaultConfig()
	link := New(cfg, ProtoCodec{}, WithDialer(dialer), WithClock(clock))
	if err := link.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if link.State() != Disconnected {
		t.Fatalf("state = %s, want disconnected", link.State())
	}

	if err := link.SendEvent(Event{Terminal: true}); !errors.Is(err, ErrDropped) {
		t.Fatalf("expected ErrDropped, got %v", err)
	}
	if dials != 1 {
		t.Fatalf("dialed %d times inside the backoff window", dials)
	}

	clock.Advance(cfg.ReconnectBackoff)
	if err := link.SendEvent(Event{Terminal: true}); !errors.Is(err, ErrDropped) {
		t.Fatalf("expected ErrDropped, got %v", err)
	}
	if dials != 2 {
		t.Fatalf("dials = %d, want one attempt after backoff", dials)
	}
}

func TestLinkWithoutCodecIsNoop(t *testing.T) {
	dialed := false
	link := New(DefaultConfig(), nil, WithDialer(func(ctx context.Context, network, addr string) (net.Conn, error) {
		dialed = true
		return nil, errors.New("should not dial")
	}))

	if link.Enabled() {
		t.Fatal("link without codec reports enabled")
	}
	if err := link.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := link.SendEvent(Event{Terminal: true}); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}
	if dialed {
		t.Fatal("no-op link dialed the game")
	}
}
