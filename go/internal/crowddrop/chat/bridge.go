package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// BridgeConfig holds the NATS settings for talking to the chat client
type BridgeConfig struct {
	URL           string
	InSubject     string // chat lines from viewers
	OutSubject    string // announcements and replies
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultBridgeConfig returns default chat bridge configuration
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		URL:           nats.DefaultURL,
		InSubject:     "crowddrop.chat.in",
		OutSubject:    "crowddrop.chat.out",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

type outbound struct {
	Text string `json:"text"`
}

// Bridge relays chat over NATS. The chat platform client lives in another
// process and publishes every line it sees to InSubject.
type Bridge struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	config BridgeConfig
}

// Connect opens the NATS connection
func Connect(config BridgeConfig) (*Bridge, error) {
	opts := []nats.Option{
		nats.Name("crowddrop"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("in", config.InSubject).
		Str("out", config.OutSubject).
		Msg("chat bridge connected")
	return &Bridge{nc: nc, config: config}, nil
}

// Announce publishes text to the chat. Failures are logged, never returned;
// chat is a side channel for the round loop.
func (b *Bridge) Announce(text string) {
	data, err := json.Marshal(outbound{Text: text})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal chat message")
		return
	}
	if err := b.nc.Publish(b.config.OutSubject, data); err != nil {
		log.Warn().Err(err).Str("subject", b.config.OutSubject).Msg("failed to publish chat message")
	}
}

// Listen feeds inbound chat lines to the router until Close.
func (b *Bridge) Listen(router *Router) error {
	sub, err := b.nc.Subscribe(b.config.InSubject, func(msg *nats.Msg) {
		m, err := decodeMessage(msg.Data)
		if err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed chat message")
			return
		}
		router.Route(m)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.config.InSubject, err)
	}
	b.sub = sub
	return nil
}

// Close drains the subscription and closes the connection
func (b *Bridge) Close() error {
	if b.sub != nil {
		if err := b.sub.Drain(); err != nil {
			log.Warn().Err(err).Msg("failed to drain chat subscription")
		}
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

func decodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode chat message: %w", err)
	}
	return m, nil
}

// LogAnnouncer writes chat output to the log when no bridge is available
type LogAnnouncer struct{}

func (LogAnnouncer) Announce(text string) {
	log.Info().Str("text", text).Msg("chat")
}
