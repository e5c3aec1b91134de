package chat

import "strings"

// Command is a parsed chat command. The set is closed.
type Command interface {
	isCommand()
}

// ListItems is "!items".
type ListItems struct{}

// CastVote is "!item <key>". Key is empty when the argument is missing.
type CastVote struct {
	Key string
}

// Place is "!place <slot>". Slot is empty when the argument is missing.
type Place struct {
	Slot string
}

func (ListItems) isCommand() {}
func (CastVote) isCommand()  {}
func (Place) isCommand()     {}

// ParseCommand recognizes a chat line. ok is false for ordinary chat.
func ParseCommand(text string) (cmd Command, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "!") {
		return nil, false
	}

	name, rest, _ := strings.Cut(text[1:], " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "items":
		return ListItems{}, true
	case "item":
		return CastVote{Key: strings.ToLower(rest)}, true
	case "place":
		slot, _, _ := strings.Cut(rest, " ")
		return Place{Slot: strings.ToLower(slot)}, true
	default:
		return nil, false
	}
}
