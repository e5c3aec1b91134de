package gamelink

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the game's GrpcGameEvent message.
const (
	fieldEventID   protowire.Number = 1
	fieldEventType protowire.Number = 2
	fieldX         protowire.Number = 3
	fieldY         protowire.Number = 4
	fieldVX        protowire.Number = 5
	fieldVY        protowire.Number = 6
	fieldHX        protowire.Number = 7
	fieldHY        protowire.Number = 8
	fieldTime      protowire.Number = 9
	fieldTerminate protowire.Number = 10
)

// Event is one placement or pointer event for the game process.
type Event struct {
	Type     int32
	X, Y     int32
	VX, VY   int32
	HX, HY   int32
	Terminal bool
}

// Frame is an Event stamped with the link's event id and time budget.
type Frame struct {
	EventID int32
	Time    int32
	Event
}

// Codec turns frames into payload bytes.
type Codec interface {
	Encode(f Frame) ([]byte, error)
	Decode(b []byte) (Frame, error)
}

// ProtoCodec encodes frames as protobuf GrpcGameEvent messages. Zero values
// are omitted, matching proto3.
type ProtoCodec struct{}

func (ProtoCodec) Encode(f Frame) ([]byte, error) {
	b := make([]byte, 0, 48)
	b = appendInt32(b, fieldEventID, f.EventID)
	b = appendInt32(b, fieldEventType, f.Type)
	b = appendInt32(b, fieldX, f.X)
	b = appendInt32(b, fieldY, f.Y)
	b = appendInt32(b, fieldVX, f.VX)
	b = appendInt32(b, fieldVY, f.VY)
	b = appendInt32(b, fieldHX, f.HX)
	b = appendInt32(b, fieldHY, f.HY)
	b = appendInt32(b, fieldTime, f.Time)
	if f.Terminal {
		b = protowire.AppendTag(b, fieldTerminate, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b, nil
}

func (ProtoCodec) Decode(b []byte) (Frame, error) {
	var f Frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Frame{}, fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Frame{}, fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return Frame{}, fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldEventID:
			f.EventID = int32(v)
		case fieldEventType:
			f.Type = int32(v)
		case fieldX:
			f.X = int32(v)
		case fieldY:
			f.Y = int32(v)
		case fieldVX:
			f.VX = int32(v)
		case fieldVY:
			f.VY = int32(v)
		case fieldHX:
			f.HX = int32(v)
		case fieldHY:
			f.HY = int32(v)
		case fieldTime:
			f.Time = int32(v)
		case fieldTerminate:
			f.Terminal = protowire.DecodeBool(v)
		}
	}
	return f, nil
}

// int32 fields are sign-extended to 64 bits on the wire
func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}
