package events

import (
	"time"

	"github.com/mcdev12/crowddrop/go/internal/models"
)

// Event payload types shared between the round, gateway and chat packages

// Kind is the wire "type" of a server event.
type Kind string

const (
	KindPong              Kind = "pong"
	KindState             Kind = "state"
	KindRoundStart        Kind = "round_start"
	KindVote              Kind = "vote"
	KindRoundResult       Kind = "round_result"
	KindPlacementRequest  Kind = "placement_request"
	KindPlaceUpdate       Kind = "place_update"
	KindPlacementComplete Kind = "placement_complete"
	KindPlacementExpired  Kind = "placement_expired"
)

// Event is a server-to-client event. The set is closed: only the payloads in
// this file implement it.
type Event interface {
	Kind() Kind
	isEvent()
}

// RoundInfo is the round header of a state snapshot
type RoundInfo struct {
	Active            bool  `json:"active"`
	RoundID           int64 `json:"round_id"`
	DurationRemaining int   `json:"duration_remaining"`
}

// Placement describes who may place the winning item
type Placement struct {
	RoundID      int64     `json:"round_id"`
	ItemKey      string    `json:"item_key"`
	ChosenUser   string    `json:"chosen_user"`
	ChosenUserID string    `json:"chosen_user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Winner is the winning item of a round
type Winner struct {
	Key   string `json:"key"`
	Emoji string `json:"emoji"`
	Label string `json:"label"`
	Votes int    `json:"votes"`
}

// State is the full snapshot sent on connect and on resync
type State struct {
	Round            RoundInfo      `json:"round"`
	Options          []models.Item  `json:"options"`
	Votes            map[string]int `json:"votes"`
	PendingPlacement *Placement     `json:"pending_placement"`
}

// RoundStart is the payload for a round_start event
type RoundStart struct {
	RoundID  int64         `json:"round_id"`
	Duration int           `json:"duration"`
	Options  []models.Item `json:"options"`
}

// Vote is the payload for a vote event
type Vote struct {
	User   string `json:"user"`
	UserID string `json:"user_id"`
	Item   string `json:"item"`
	Emoji  string `json:"emoji"`
	Count  int    `json:"count"`
}

// RoundResult is the payload for a round_result event. Winner is null when
// nobody voted.
type RoundResult struct {
	RoundID int64          `json:"round_id"`
	Winner  *Winner        `json:"winner"`
	Votes   map[string]int `json:"votes"`
}

// PlacementRequest is the payload for a placement_request event
type PlacementRequest struct {
	RoundID      int64  `json:"round_id"`
	ItemKey      string `json:"item_key"`
	Emoji        string `json:"emoji"`
	Label        string `json:"label"`
	ChosenUser   string `json:"chosen_user"`
	ChosenUserID string `json:"chosen_user_id"`
	Hint         string `json:"hint"`
}

// PlaceUpdate is the payload for a place_update event
type PlaceUpdate struct {
	ChosenUser   string `json:"chosen_user"`
	ChosenUserID string `json:"chosen_user_id"`
	Place        string `json:"place"`
}

// PlacementComplete has no fields on the wire
type PlacementComplete struct{}

// PlacementExpired is sent when the chosen placer ran out of time
type PlacementExpired struct {
	RoundID int64  `json:"round_id"`
	ItemKey string `json:"item_key"`
}

// Pong answers a client ping with server time in milliseconds
type Pong struct {
	T int64 `json:"t"`
}

func (State) Kind() Kind             { return KindState }
func (RoundStart) Kind() Kind        { return KindRoundStart }
func (Vote) Kind() Kind              { return KindVote }
func (RoundResult) Kind() Kind       { return KindRoundResult }
func (PlacementRequest) Kind() Kind  { return KindPlacementRequest }
func (PlaceUpdate) Kind() Kind       { return KindPlaceUpdate }
func (PlacementComplete) Kind() Kind { return KindPlacementComplete }
func (PlacementExpired) Kind() Kind  { return KindPlacementExpired }
func (Pong) Kind() Kind              { return KindPong }

func (State) isEvent()             {}
func (RoundStart) isEvent()        {}
func (Vote) isEvent()              {}
func (RoundResult) isEvent()       {}
func (PlacementRequest) isEvent()  {}
func (PlaceUpdate) isEvent()       {}
func (PlacementComplete) isEvent() {}
func (PlacementExpired) isEvent()  {}
func (Pong) isEvent()              {}
