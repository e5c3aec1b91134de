package round

import (
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/crowddrop/go/internal/models"
)

// PlacementHint is shown to the overlay alongside a placement request.
const PlacementHint = "Use !place <left|middle|right> in chat OR click the overlay area"

// ItemList renders the catalog as "🧊 freeze | 🔥 fire | ...".
func ItemList(items []models.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.Emoji+" "+it.Key)
	}
	return strings.Join(parts, " | ")
}

func roundStartMessage(roundID int64, voting time.Duration, items []models.Item) string {
	return fmt.Sprintf("🎮 Round %d starts! Vote with: !item <name> | %ds | %s",
		roundID, int(voting.Seconds()), ItemList(items))
}

func warningMessage(remaining int) string {
	return fmt.Sprintf("⏰ %d seconds left to vote!", remaining)
}

func noVotesMessage(roundID int64, breakDur time.Duration) string {
	return fmt.Sprintf("❌ Round %d ended with no votes. Next round in %ds...", roundID, int(breakDur.Seconds()))
}

func summaryMessage(items []models.Item, counts map[string]int) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if n := counts[it.Key]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", it.Emoji, n))
		}
	}
	return "📊 Votes: " + strings.Join(parts, " | ")
}

func winnerMessage(item models.Item, placer string, timeout time.Duration) string {
	msg := fmt.Sprintf("🏆 %s %s wins! @%s place it with: !place <left|middle|right>", item.Emoji, item.Label, placer)
	if timeout > 0 {
		msg += fmt.Sprintf(" - %ds!", int(timeout.Seconds()))
	}
	return msg
}

func expiredMessage(item models.Item, placer string) string {
	return fmt.Sprintf("⌛ @%s ran out of time, %s %s was not placed.", placer, item.Emoji, item.Label)
}
