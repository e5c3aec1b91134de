package events

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal encodes an event as a flat JSON object with its kind in "type".
func Marshal(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", e.Kind(), err)
	}

	typeField, err := json.Marshal(e.Kind())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(typeField) + 8)
	buf.WriteString(`{"type":`)
	buf.Write(typeField)
	// body is always an object; splice its fields after "type"
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
