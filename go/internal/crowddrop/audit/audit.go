package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/crowddrop/go/internal/models"
	"github.com/rs/zerolog"
)

// Writer appends one JSON object per line for every placement and click.
// Nothing in the server reads the file back.
type Writer struct {
	logger zerolog.Logger
	clock  clockwork.Clock
	closer io.Closer
}

// New writes records to w.
func New(w io.Writer, clock clockwork.Clock) *Writer {
	return &Writer{
		logger: zerolog.New(zerolog.SyncWriter(w)),
		clock:  clock,
	}
}

// Open appends to the file at path, creating it and its directory.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	w := New(f, clockwork.NewRealClock())
	w.closer = f
	return w, nil
}

func (w *Writer) record(kind string) *zerolog.Event {
	return w.logger.Log().
		Float64("ts", unixSeconds(w.clock.Now())).
		Str("type", kind)
}

// SpawnItem records a committed placement.
func (w *Writer) SpawnItem(roundID int64, item models.Item, chosenUser string, slot models.Slot) {
	w.record("spawn_item").
		Int64("round_id", roundID).
		Str("item_key", item.Key).
		Str("emoji", item.Emoji).
		Str("label", item.Label).
		Str("chosen_user", chosenUser).
		Str("slot", string(slot)).
		Send()
}

// MouseClick records a terminal pointer event. A zero client timestamp is
// written as null.
func (w *Writer) MouseClick(x, y int, timestamp float64) {
	e := w.record("mouse_click").
		Int("x", x).
		Int("y", y).
		Str("button", "LEFT")
	if timestamp == 0 {
		e = e.Interface("timestamp", nil)
	} else {
		e = e.Float64("timestamp", timestamp)
	}
	e.Send()
}

func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
