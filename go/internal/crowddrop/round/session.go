package round

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/events"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/gamelink"
	"github.com/mcdev12/crowddrop/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrNoIdentity is returned for a vote without a voter id.
var ErrNoIdentity = errors.New("voter has no identity")

// slot hitbox sent with every game event
const hitbox = 100

// Broadcaster fans events out to connected overlay clients. It must not block.
type Broadcaster interface {
	Broadcast(e events.Event)
}

// Announcer posts a message to the stream chat.
type Announcer interface {
	Announce(text string)
}

// GameSink receives placement and pointer events for the game process.
type GameSink interface {
	SendEvent(ev gamelink.Event) error
}

// Auditor records placements and clicks to the audit trail.
type Auditor interface {
	SpawnItem(roundID int64, item models.Item, chosenUser string, slot models.Slot)
	MouseClick(x, y int, timestamp float64)
}

// Config holds round timing.
type Config struct {
	VotingDuration   time.Duration
	BreakDuration    time.Duration
	StartDelay       time.Duration
	PlacementTimeout time.Duration // zero disables expiry
	Warnings         []time.Duration
}

// DefaultConfig returns the timings the stream runs with.
func DefaultConfig() Config {
	return Config{
		VotingDuration:   30 * time.Second,
		BreakDuration:    15 * time.Second,
		StartDelay:       3 * time.Second,
		PlacementTimeout: 15 * time.Second,
		Warnings:         []time.Duration{20 * time.Second, 10 * time.Second, 5 * time.Second},
	}
}

// Voter is a chat user casting a vote.
type Voter struct {
	ID   string
	Name string
}

// Pointer is a pointer sample from the placer's overlay.
type Pointer struct {
	X, Y      int
	VX, VY    int
	Terminal  bool
	Timestamp float64
}

// Result is the outcome of a closed round.
type Result struct {
	RoundID   int64
	Winner    models.Item
	Votes     int
	HasWinner bool
	Counts    map[string]int
}

type pendingPlacement struct {
	roundID    int64
	item       models.Item
	chosenID   string
	chosenName string
	createdAt  time.Time
}

func (p *pendingPlacement) view() events.Placement {
	return events.Placement{
		RoundID:      p.roundID,
		ItemKey:      p.item.Key,
		ChosenUser:   p.chosenName,
		ChosenUserID: p.chosenID,
		CreatedAt:    p.createdAt,
	}
}

// Session is the single owner of round, tally and placement state. Every
// mutation goes through its mutex, and events are broadcast while the lock is
// held so clients see them in mutation order.
type Session struct {
	catalog *models.Catalog
	cfg     Config
	clock   clockwork.Clock
	hub     Broadcaster
	chat    Announcer
	link    GameSink
	audit   Auditor
	pick    func(n int) int

	mu      sync.Mutex
	roundID int64
	active  bool
	endsAt  time.Time
	tally   *Tally
	winner  string
	pending *pendingPlacement
	names   map[string]string
}

// Option customizes a Session
type Option func(*Session)

func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithAnnouncer(a Announcer) Option {
	return func(s *Session) { s.chat = a }
}

func WithAuditor(a Auditor) Option {
	return func(s *Session) { s.audit = a }
}

// WithPicker replaces the random choice of placer; pick returns an index in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(s *Session) { s.pick = pick }
}

// NewSession creates an idle session. No round runs until StartRound.
func NewSession(catalog *models.Catalog, cfg Config, hub Broadcaster, link GameSink, opts ...Option) *Session {
	s := &Session{
		catalog: catalog,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		hub:     hub,
		chat:    nopAnnouncer{},
		link:    link,
		audit:   nopAuditor{},
		pick:    rand.IntN,
		tally:   NewTally(catalog),
		names:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Catalog() *models.Catalog { return s.catalog }

func (s *Session) Config() Config { return s.cfg }

// StartRound opens voting for a new round and returns its id and deadline.
// Any placement still pending from the previous round is dropped.
func (s *Session) StartRound() (int64, time.Time) {
	s.mu.Lock()
	s.roundID++
	s.tally = NewTally(s.catalog)
	s.winner = ""
	if s.pending != nil {
		log.Info().Int64("round_id", s.pending.roundID).Msg("pending placement superseded by new round")
	}
	s.pending = nil
	s.active = true
	s.endsAt = s.clock.Now().Add(s.cfg.VotingDuration)

	id, endsAt := s.roundID, s.endsAt
	items := s.catalog.Items()
	s.hub.Broadcast(events.RoundStart{
		RoundID:  id,
		Duration: int(s.cfg.VotingDuration.Seconds()),
		Options:  items,
	})
	s.mu.Unlock()

	log.Info().Int64("round_id", id).Time("ends_at", endsAt).Msg("round started")
	s.chat.Announce(roundStartMessage(id, s.cfg.VotingDuration, items))
	return id, endsAt
}

// Warn posts a countdown reminder if the round is still open. The remaining
// time comes from the deadline, not from how long the caller slept.
func (s *Session) Warn(roundID int64) {
	s.mu.Lock()
	if !s.active || s.roundID != roundID {
		s.mu.Unlock()
		return
	}
	remaining := int(math.Round(s.endsAt.Sub(s.clock.Now()).Seconds()))
	s.mu.Unlock()

	if remaining > 0 {
		s.chat.Announce(warningMessage(remaining))
	}
}

// CastVote records a chat vote. An unknown item is reported even when no
// round is active.
func (s *Session) CastVote(v Voter, key string) (events.Vote, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	item, ok := s.catalog.Lookup(key)
	if !ok {
		return events.Vote{}, ErrUnknownItem
	}
	if v.ID == "" {
		return events.Vote{}, ErrNoIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return events.Vote{}, ErrVotingClosed
	}
	if v.Name != "" {
		s.names[v.ID] = v.Name
	}

	count, err := s.tally.Cast(v.ID, key)
	if err != nil {
		return events.Vote{}, err
	}

	vote := events.Vote{
		User:   s.nameOf(v.ID),
		UserID: v.ID,
		Item:   key,
		Emoji:  item.Emoji,
		Count:  count,
	}
	s.hub.Broadcast(vote)
	log.Debug().Int64("round_id", s.roundID).Str("identity", v.ID).Str("item", key).Int("count", count).Msg("vote cast")
	return vote, nil
}

// CloseVoting ends the voting window and picks the winning item.
func (s *Session) CloseVoting() Result {
	s.mu.Lock()
	s.active = false
	res := Result{RoundID: s.roundID, Counts: s.tally.Counts()}
	res.Winner, res.Votes, res.HasWinner = s.tally.Winner()
	if res.HasWinner {
		s.winner = res.Winner.Key
	}

	rr := events.RoundResult{RoundID: res.RoundID, Votes: res.Counts}
	if res.HasWinner {
		rr.Winner = &events.Winner{
			Key:   res.Winner.Key,
			Emoji: res.Winner.Emoji,
			Label: res.Winner.Label,
			Votes: res.Votes,
		}
	}
	s.hub.Broadcast(rr)
	s.mu.Unlock()

	if !res.HasWinner {
		log.Info().Int64("round_id", res.RoundID).Msg("round ended with no votes")
		s.chat.Announce(noVotesMessage(res.RoundID, s.cfg.BreakDuration))
		return res
	}

	log.Info().Int64("round_id", res.RoundID).Str("winner", res.Winner.Key).Int("votes", res.Votes).Msg("round ended")
	s.chat.Announce(summaryMessage(s.catalog.Items(), res.Counts))
	return res
}

// SelectPlacer picks a random voter of the winning item and authorizes them
// to place it. ok is false when the round had no winner.
func (s *Session) SelectPlacer() (events.Placement, bool) {
	s.mu.Lock()
	if s.active || s.winner == "" {
		s.mu.Unlock()
		return events.Placement{}, false
	}
	voters := s.tally.Voters(s.winner)
	if len(voters) == 0 {
		s.mu.Unlock()
		return events.Placement{}, false
	}

	item, _ := s.catalog.Lookup(s.winner)
	chosen := voters[s.pick(len(voters))]
	s.pending = &pendingPlacement{
		roundID:    s.roundID,
		item:       item,
		chosenID:   chosen,
		chosenName: s.nameOf(chosen),
		createdAt:  s.clock.Now(),
	}
	p := s.pending.view()
	s.hub.Broadcast(events.PlacementRequest{
		RoundID:      p.RoundID,
		ItemKey:      item.Key,
		Emoji:        item.Emoji,
		Label:        item.Label,
		ChosenUser:   p.ChosenUser,
		ChosenUserID: p.ChosenUserID,
		Hint:         PlacementHint,
	})
	s.mu.Unlock()

	log.Info().Int64("round_id", p.RoundID).Str("item", item.Key).Str("identity", chosen).Msg("placer selected")
	s.chat.Announce(winnerMessage(item, p.ChosenUser, s.cfg.PlacementTimeout))
	return p, true
}

// CommitPlacement drops the pending item into slot on behalf of identity.
// The pending placement is returned with ErrNotPlacer so callers can name
// the actual placer. On any error nothing changes.
func (s *Session) CommitPlacement(identity, slot string) (events.Placement, error) {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return events.Placement{}, ErrNoPendingPlacement
	}
	p := *s.pending
	if identity == "" || identity != p.chosenID {
		s.mu.Unlock()
		return p.view(), ErrNotPlacer
	}
	sl, err := models.ParseSlot(slot)
	if err != nil {
		s.mu.Unlock()
		return p.view(), err
	}
	pt, _ := sl.Point()

	s.pending = nil
	s.hub.Broadcast(events.PlaceUpdate{
		ChosenUser:   p.chosenName,
		ChosenUserID: p.chosenID,
		Place:        string(sl),
	})
	s.hub.Broadcast(events.PlacementComplete{})
	s.mu.Unlock()

	log.Info().Int64("round_id", p.roundID).Str("item", p.item.Key).Str("slot", string(sl)).Str("identity", identity).Msg("item placed")
	s.audit.SpawnItem(p.roundID, p.item, p.chosenName, sl)

	err = s.link.SendEvent(gamelink.Event{
		Type:     int32(s.catalog.Index(p.item.Key)),
		X:        int32(pt.X),
		Y:        int32(pt.Y),
		HX:       hitbox,
		HY:       hitbox,
		Terminal: true,
	})
	if err != nil {
		log.Warn().Err(err).Int64("round_id", p.roundID).Msg("placement not delivered to game")
	}
	return p.view(), nil
}

// ForwardPointer passes a pointer sample from the placer to the game.
// Motion carries event type 0; the terminal sample carries the item.
func (s *Session) ForwardPointer(identity string, ptr Pointer) error {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return ErrNoPendingPlacement
	}
	if identity == "" || identity != s.pending.chosenID {
		s.mu.Unlock()
		return ErrNotPlacer
	}
	itemIndex := s.catalog.Index(s.pending.item.Key)
	s.mu.Unlock()

	ev := gamelink.Event{
		X:        int32(ptr.X),
		Y:        int32(ptr.Y),
		VX:       int32(ptr.VX),
		VY:       int32(ptr.VY),
		HX:       hitbox,
		HY:       hitbox,
		Terminal: ptr.Terminal,
	}
	if ptr.Terminal {
		ev.Type = int32(itemIndex)
		s.audit.MouseClick(ptr.X, ptr.Y, ptr.Timestamp)
	}
	return s.link.SendEvent(ev)
}

// ExpirePlacement withdraws the placement of roundID if it is still pending.
func (s *Session) ExpirePlacement(roundID int64) bool {
	s.mu.Lock()
	if s.pending == nil || s.pending.roundID != roundID {
		s.mu.Unlock()
		return false
	}
	p := *s.pending
	s.pending = nil
	s.hub.Broadcast(events.PlacementExpired{RoundID: p.roundID, ItemKey: p.item.Key})
	s.mu.Unlock()

	log.Info().Int64("round_id", roundID).Str("identity", p.chosenID).Msg("placement expired")
	s.chat.Announce(expiredMessage(p.item, p.chosenName))
	return true
}

// Snapshot returns the full state sent to late-joining clients.
func (s *Session) Snapshot() events.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := events.State{
		Round: events.RoundInfo{
			Active:  s.active,
			RoundID: s.roundID,
		},
		Options: s.catalog.Items(),
		Votes:   s.tally.Counts(),
	}
	if s.active {
		if rem := int(s.endsAt.Sub(s.clock.Now()).Seconds()); rem > 0 {
			st.Round.DurationRemaining = rem
		}
	}
	if s.pending != nil {
		p := s.pending.view()
		st.PendingPlacement = &p
	}
	return st
}

func (s *Session) nameOf(identity string) string {
	if name, ok := s.names[identity]; ok {
		return name
	}
	return "Unknown"
}

type nopAnnouncer struct{}

func (nopAnnouncer) Announce(string) {}

type nopAuditor struct{}

func (nopAuditor) SpawnItem(int64, models.Item, string, models.Slot) {}
func (nopAuditor) MouseClick(int, int, float64)                      {}
