package models

import (
	"errors"
	"strings"
)

// Slot is one of the fixed positions a winner may drop an item into.
type Slot string

const (
	SlotLeft   Slot = "left"
	SlotMiddle Slot = "middle"
	SlotRight  Slot = "right"
)

// ErrInvalidSlot is returned for anything outside left/middle/right.
var ErrInvalidSlot = errors.New("invalid slot")

// Point is a position in game pixels.
type Point struct {
	X int
	Y int
}

var slotPoints = map[Slot]Point{
	SlotLeft:   {X: 160, Y: 320},
	SlotMiddle: {X: 480, Y: 320},
	SlotRight:  {X: 800, Y: 320},
}

// ParseSlot normalizes raw user input into a Slot.
func ParseSlot(raw string) (Slot, error) {
	s := Slot(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := slotPoints[s]; !ok {
		return "", ErrInvalidSlot
	}
	return s, nil
}

// Point returns the game coordinates of the slot.
func (s Slot) Point() (Point, bool) {
	p, ok := slotPoints[s]
	return p, ok
}
