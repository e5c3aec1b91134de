package gamelink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	// ErrDropped means the event was not written and will not be retried.
	ErrDropped = errors.New("game event dropped")
	// ErrBusy is returned for a pointer update while another write holds the link.
	ErrBusy = errors.New("game link busy")
)

// State of the socket to the game process
type State int32

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Config holds settings for the game socket
type Config struct {
	Addr             string
	DialTimeout      time.Duration
	WriteTimeout     time.Duration
	ReconnectBackoff time.Duration // minimum gap between reconnects while idle-disconnected
	Handshake        byte
	TimeBudget       int32
}

// DefaultConfig returns the settings the game process expects
func DefaultConfig() Config {
	return Config{
		Addr:             "127.0.0.1:31415",
		DialTimeout:      2 * time.Second,
		WriteTimeout:     time.Second,
		ReconnectBackoff: 2 * time.Second,
		Handshake:        0x06,
		TimeBudget:       180,
	}
}

// DialFunc opens the stream socket.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Link owns the persistent socket to the game process. It is best effort:
// an event is either written right away or dropped.
type Link struct {
	cfg   Config
	codec Codec
	dial  DialFunc
	clock clockwork.Clock

	mu          sync.Mutex
	conn        net.Conn
	state       State
	eventID     int32
	lastAttempt time.Time
}

// Option customizes a Link
type Option func(*Link)

// WithDialer replaces the network dialer.
func WithDialer(d DialFunc) Option {
	return func(l *Link) { l.dial = d }
}

// WithClock replaces the clock used for reconnect backoff.
func WithClock(c clockwork.Clock) Option {
	return func(l *Link) { l.clock = c }
}

// New creates a disconnected link. A nil codec makes the link a no-op sink.
func New(cfg Config, codec Codec, opts ...Option) *Link {
	var d net.Dialer
	l := &Link{
		cfg:   cfg,
		codec: codec,
		dial:  d.DialContext,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if codec == nil {
		log.Warn().Msg("no game codec configured, game events will be discarded")
	}
	return l
}

// Enabled reports whether events are actually sent.
func (l *Link) Enabled() bool { return l.codec != nil }

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// EventID returns the id the next frame will carry.
func (l *Link) EventID() int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eventID
}

// Connect opens the socket and sends the handshake byte. On failure the link
// stays disconnected.
func (l *Link) Connect(ctx context.Context) error {
	if l.codec == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connectLocked(ctx)
}

func (l *Link) connectLocked(ctx context.Context) error {
	l.teardownLocked()
	l.lastAttempt = l.clock.Now()

	dialCtx, cancel := context.WithTimeout(ctx, l.cfg.DialTimeout)
	defer cancel()

	conn, err := l.dial(dialCtx, "tcp", l.cfg.Addr)
	if err != nil {
		log.Warn().Err(err).Str("addr", l.cfg.Addr).Msg("game connection failed")
		return fmt.Errorf("dial game: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
	if _, err := conn.Write([]byte{l.cfg.Handshake}); err != nil {
		conn.Close()
		log.Warn().Err(err).Str("addr", l.cfg.Addr).Msg("game handshake failed")
		return fmt.Errorf("game handshake: %w", err)
	}

	l.conn = conn
	l.state = Connected
	log.Info().Str("addr", l.cfg.Addr).Msg("connected to game")
	return nil
}

func (l *Link) teardownLocked() {
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	l.state = Disconnected
}

// SendEvent writes one frame. The event id advances only after a terminal
// frame is fully written. A failed write tears the socket down and makes a
// single reconnect attempt; the event itself is dropped.
func (l *Link) SendEvent(ev Event) error {
	if l.codec == nil {
		return nil
	}

	if ev.Terminal {
		l.mu.Lock()
	} else if !l.mu.TryLock() {
		return ErrBusy
	}
	defer l.mu.Unlock()

	if l.state == Disconnected {
		if l.clock.Since(l.lastAttempt) < l.cfg.ReconnectBackoff {
			return fmt.Errorf("%w: not connected", ErrDropped)
		}
		if err := l.connectLocked(context.Background()); err != nil {
			return fmt.Errorf("%w: %v", ErrDropped, err)
		}
	}

	payload, err := l.codec.Encode(Frame{EventID: l.eventID, Time: l.cfg.TimeBudget, Event: ev})
	if err != nil {
		return fmt.Errorf("encode game event: %w", err)
	}

	_ = l.conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout))
	if err := writeFrame(l.conn, payload); err != nil {
		log.Warn().Err(err).Int32("event_id", l.eventID).Msg("game send failed, reconnecting")
		l.teardownLocked()
		if rerr := l.connectLocked(context.Background()); rerr != nil {
			log.Error().Err(rerr).Msg("game reconnect failed")
		}
		return fmt.Errorf("%w: %v", ErrDropped, err)
	}

	if ev.Terminal {
		l.eventID++
	}
	return nil
}

// Close shuts the socket.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.teardownLocked()
	return nil
}
