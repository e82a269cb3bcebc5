// Package playback turns MIDI note messages into the set of LEDs that
// should currently be lit.
package playback

import (
	"log/slog"
	"sort"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// Lookup resolves a MIDI note to LED indices. Both *app.Context and
// *mapping.Result satisfy it.
type Lookup interface {
	LEDsForNote(note uint8) ([]int, bool)
}

// Change describes the effect of one MIDI message.
type Change struct {
	Note   uint8
	On     bool
	LEDs   []int // LEDs of the note
	Mapped bool  // false when the note is outside the keyboard
}

// Resolver tracks held notes and resolves them against a mapping. It is
// safe for concurrent use.
type Resolver struct {
	mu     sync.Mutex
	lookup Lookup
	held   map[uint8]bool
	logger *slog.Logger
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup Lookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		lookup: lookup,
		held:   make(map[uint8]bool),
		logger: logger,
	}
}

// Handle applies a MIDI message. ok is false for messages that are neither
// note-on nor note-off. A note-on with velocity 0 counts as note-off.
func (r *Resolver) Handle(msg midi.Message) (Change, bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return r.press(key, true), true
	case msg.GetNoteEnd(&ch, &key):
		return r.press(key, false), true
	default:
		r.logger.Debug("playback: unhandled message", "msg", msg.String())
		return Change{}, false
	}
}

// NoteOn marks note as held.
func (r *Resolver) NoteOn(note uint8) Change {
	return r.press(note, true)
}

// NoteOff releases note.
func (r *Resolver) NoteOff(note uint8) Change {
	return r.press(note, false)
}

func (r *Resolver) press(note uint8, on bool) Change {
	leds, mapped := r.lookup.LEDsForNote(note)
	if !mapped {
		r.logger.Debug("playback: note outside keyboard", "note", note)
		return Change{Note: note, On: on}
	}

	r.mu.Lock()
	if on {
		r.held[note] = true
	} else {
		delete(r.held, note)
	}
	r.mu.Unlock()

	return Change{Note: note, On: on, LEDs: leds, Mapped: true}
}

// Held returns the held notes in ascending order.
func (r *Resolver) Held() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	notes := make([]uint8, 0, len(r.held))
	for n := range r.held {
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i] < notes[j] })
	return notes
}

// Lit returns the union of the LEDs of every held note, ascending. It is
// resolved against the current mapping, so a recalibration takes effect
// immediately.
func (r *Resolver) Lit() []int {
	seen := make(map[int]bool)
	for _, n := range r.Held() {
		leds, _ := r.lookup.LEDsForNote(n)
		for _, l := range leds {
			seen[l] = true
		}
	}
	out := make([]int, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Reset releases every held note.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.held)
}
