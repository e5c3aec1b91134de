package round

import (
	"errors"
	"sort"

	"github.com/mcdev12/crowddrop/go/internal/models"
)

var (
	ErrVotingClosed       = errors.New("no vote running")
	ErrUnknownItem        = errors.New("unknown item")
	ErrAlreadyVoted       = errors.New("already voted this round")
	ErrNoPendingPlacement = errors.New("no placement pending")
	ErrNotPlacer          = errors.New("identity is not the chosen placer")
)

// Tally counts the votes of a single round. Every identity votes at most once
// per round, whichever item it picks.
type Tally struct {
	catalog *models.Catalog
	counts  map[string]int
	voters  map[string]map[string]struct{} // item key -> identities
	votedOn map[string]string              // identity -> item key
}

// NewTally returns an empty tally with every catalog item at zero.
func NewTally(catalog *models.Catalog) *Tally {
	t := &Tally{
		catalog: catalog,
		counts:  make(map[string]int, catalog.Len()),
		voters:  make(map[string]map[string]struct{}, catalog.Len()),
		votedOn: make(map[string]string),
	}
	for _, key := range catalog.Keys() {
		t.counts[key] = 0
		t.voters[key] = make(map[string]struct{})
	}
	return t
}

// Cast records a vote and returns the new count for the item.
func (t *Tally) Cast(identity, key string) (int, error) {
	if _, ok := t.counts[key]; !ok {
		return 0, ErrUnknownItem
	}
	if _, voted := t.votedOn[identity]; voted {
		return 0, ErrAlreadyVoted
	}

	t.voters[key][identity] = struct{}{}
	t.votedOn[identity] = key
	t.counts[key]++
	return t.counts[key], nil
}

// Counts returns a copy of the per-item vote counts.
func (t *Tally) Counts() map[string]int {
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Voters returns the identities that voted for key, sorted.
func (t *Tally) Voters(key string) []string {
	set := t.voters[key]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Total is the number of votes cast this round.
func (t *Tally) Total() int {
	return len(t.votedOn)
}

// Winner returns the item with the most votes, ties going to the item that
// comes first in the catalog. ok is false when nobody voted.
func (t *Tally) Winner() (item models.Item, votes int, ok bool) {
	for _, it := range t.catalog.Items() {
		if n := t.counts[it.Key]; n > votes {
			item, votes, ok = it, n, true
		}
	}
	return item, votes, ok
}
