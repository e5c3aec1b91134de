package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownMessage = errors.New("unknown client message type")

// ClientMessage is a message sent by an overlay. The set is closed.
type ClientMessage interface {
	isClientMessage()
}

type Ping struct{}

// OverlayHello binds the connection to a chat identity.
type OverlayHello struct {
	Identity string
}

// StateRequest asks for a fresh snapshot (get_state or sync).
type StateRequest struct{}

// PlaceChoice is the placer clicking one of the slots.
type PlaceChoice struct {
	Place string
}

// PointerEvent is pointer motion or, with Terminate set, a click.
type PointerEvent struct {
	X, Y      int
	VX, VY    int
	Terminate bool
	Timestamp float64
}

func (Ping) isClientMessage()         {}
func (OverlayHello) isClientMessage() {}
func (StateRequest) isClientMessage() {}
func (PlaceChoice) isClientMessage()  {}
func (PointerEvent) isClientMessage() {}

type rawClientMessage struct {
	Type         string     `json:"type"`
	Identity     flexString `json:"identity"`
	TwitchUserID flexString `json:"twitch_user_id"`
	Place        string     `json:"place"`
	X            flexNumber `json:"x"`
	Y            flexNumber `json:"y"`
	VX           flexNumber `json:"vx"`
	VY           flexNumber `json:"vy"`
	Terminate    bool       `json:"terminate"`
	Timestamp    flexNumber `json:"timestamp"`
}

// DecodeClientMessage parses one overlay message.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var raw rawClientMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode client message: %w", err)
	}

	switch raw.Type {
	case "ping":
		return Ping{}, nil
	case "overlay_hello":
		id := string(raw.Identity)
		if id == "" {
			id = string(raw.TwitchUserID)
		}
		return OverlayHello{Identity: strings.TrimSpace(id)}, nil
	case "get_state", "sync":
		return StateRequest{}, nil
	case "place_choice":
		return PlaceChoice{Place: raw.Place}, nil
	case "pointer_event", "mouse_event":
		return PointerEvent{
			X:         int(raw.X),
			Y:         int(raw.Y),
			VX:        int(raw.VX),
			VY:        int(raw.VY),
			Terminate: raw.Terminate,
			Timestamp: float64(raw.Timestamp),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, raw.Type)
	}
}

// flexString accepts a JSON string or number; platform user ids arrive as either.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexNumber accepts a JSON number or numeric string. Anything else is zero.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*n = flexNumber(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = flexNumber(f)
	default:
		*n = 0
	}
	return nil
}
