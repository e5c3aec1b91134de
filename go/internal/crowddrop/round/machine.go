package round

import (
	"context"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Machine drives a Session through voting, result, placement and break
// phases, forever, until its context is cancelled.
type Machine struct {
	session  *Session
	clock    clockwork.Clock
	cfg      Config
	warnings []time.Duration
}

// NewMachine uses the session's clock and timing.
func NewMachine(s *Session) *Machine {
	cfg := s.Config()

	// longest offset first, and only offsets that fit in the voting window
	var warnings []time.Duration
	for _, w := range cfg.Warnings {
		if w > 0 && w < cfg.VotingDuration {
			warnings = append(warnings, w)
		}
	}
	slices.Sort(warnings)
	slices.Reverse(warnings)

	return &Machine{
		session:  s,
		clock:    s.clock,
		cfg:      cfg,
		warnings: warnings,
	}
}

// Run blocks until ctx is cancelled. Any live timer is stopped before it
// returns.
func (m *Machine) Run(ctx context.Context) {
	log.Info().
		Dur("voting", m.cfg.VotingDuration).
		Dur("break", m.cfg.BreakDuration).
		Dur("placement_timeout", m.cfg.PlacementTimeout).
		Msg("round loop started")
	defer log.Info().Msg("round loop stopped")

	if !m.waitUntil(ctx, m.clock.Now().Add(m.cfg.StartDelay)) {
		return
	}

	for {
		roundID, endsAt := m.session.StartRound()

		for _, w := range m.warnings {
			if !m.waitUntil(ctx, endsAt.Add(-w)) {
				return
			}
			m.session.Warn(roundID)
		}

		if !m.waitUntil(ctx, endsAt) {
			return
		}
		res := m.session.CloseVoting()
		breakEnds := m.clock.Now().Add(m.cfg.BreakDuration)

		if res.HasWinner {
			p, ok := m.session.SelectPlacer()
			if ok && m.expiryEnabled() {
				if !m.waitUntil(ctx, p.CreatedAt.Add(m.cfg.PlacementTimeout)) {
					return
				}
				m.session.ExpirePlacement(roundID)
			}
		}

		if !m.waitUntil(ctx, breakEnds) {
			return
		}
	}
}

// expiry only makes sense if it can fire before the next round supersedes
// the placement anyway
func (m *Machine) expiryEnabled() bool {
	return m.cfg.PlacementTimeout > 0 && m.cfg.PlacementTimeout <= m.cfg.BreakDuration
}

// waitUntil sleeps on a one-shot timer until deadline. It reports false if
// ctx was cancelled first.
func (m *Machine) waitUntil(ctx context.Context, deadline time.Time) bool {
	d := deadline.Sub(m.clock.Now())
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := m.clock.NewTimer(d)
	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		stopAndDrainTimer(timer)
		return false
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
