package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/crowddrop/go/internal/crowddrop/events"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/round"
	"github.com/mcdev12/crowddrop/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	voteUsage   = "Usage: !item <item_key>"
	placeUsage  = "Usage: !place <left|middle|right>"
	noVoteReply = "No vote running right now. Wait for the next round!"
)

// Game is what chat commands act on
type Game interface {
	CastVote(v round.Voter, key string) (events.Vote, error)
	CommitPlacement(identity, slot string) (events.Placement, error)
}

// Message is one inbound chat line
type Message struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Text     string `json:"text"`
	Echo     bool   `json:"echo,omitempty"`
}

// Router maps chat commands onto the game and answers in chat
type Router struct {
	game    Game
	catalog *models.Catalog
	out     round.Announcer
}

func NewRouter(game Game, catalog *models.Catalog, out round.Announcer) *Router {
	return &Router{game: game, catalog: catalog, out: out}
}

// Route handles one chat message. Bot echoes and plain chat are ignored.
func (r *Router) Route(m Message) {
	if m.Echo {
		return
	}
	cmd, ok := ParseCommand(m.Text)
	if !ok {
		return
	}

	switch c := cmd.(type) {
	case ListItems:
		r.out.Announce(fmt.Sprintf("Available items: %s | Vote with: !item <name>", round.ItemList(r.catalog.Items())))
	case CastVote:
		r.vote(m, c)
	case Place:
		r.place(m, c)
	}
}

func (r *Router) vote(m Message, c CastVote) {
	if c.Key == "" {
		r.out.Announce(voteUsage)
		return
	}

	_, err := r.game.CastVote(round.Voter{ID: m.UserID, Name: m.UserName}, c.Key)
	switch {
	case err == nil:
	case errors.Is(err, round.ErrUnknownItem):
		r.out.Announce("Unknown item. Try: " + strings.Join(r.catalog.Keys(), ", "))
	case errors.Is(err, round.ErrVotingClosed):
		r.out.Announce(noVoteReply)
	default:
		// repeat votes and anonymous users are ignored quietly
		log.Debug().Err(err).Str("identity", m.UserID).Str("item", c.Key).Msg("chat vote ignored")
	}
}

func (r *Router) place(m Message, c Place) {
	p, err := r.game.CommitPlacement(m.UserID, c.Slot)
	switch {
	case err == nil:
		r.out.Announce(fmt.Sprintf("✅ Item placed at %s by @%s!", strings.ToUpper(c.Slot), displayName(m)))
	case errors.Is(err, round.ErrNotPlacer):
		r.out.Announce(fmt.Sprintf("Wait your turn! Only @%s can place this item.", p.ChosenUser))
	case errors.Is(err, models.ErrInvalidSlot):
		r.out.Announce(placeUsage)
	default:
		log.Debug().Err(err).Str("identity", m.UserID).Msg("chat placement ignored")
	}
}

func displayName(m Message) string {
	if m.UserName != "" {
		return m.UserName
	}
	return "Unknown"
}
