// Package keyboard provides piano keyboard definitions and key geometry.
package keyboard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Spec defines a keyboard size variant.
type Spec struct {
	Name       string `json:"name"`        // e.g. "88-key"
	Keys       int    `json:"keys"`        // Number of keys
	LowestNote uint8  `json:"lowest_note"` // MIDI note of key index 0
}

// HighestNote returns the MIDI note of the last key.
func (s Spec) HighestNote() uint8 {
	return s.LowestNote + uint8(s.Keys-1)
}

// WhiteKeys returns the number of white keys on the keyboard.
func (s Spec) WhiteKeys() int {
	n := 0
	for i := 0; i < s.Keys; i++ {
		if !IsBlack(int(s.LowestNote) + i) {
			n++
		}
	}
	return n
}

// KeyIndex returns the key index for a MIDI note, or false if the note is
// not on this keyboard.
func (s Spec) KeyIndex(note uint8) (int, bool) {
	if note < s.LowestNote || note > s.HighestNote() {
		return 0, false
	}
	return int(note - s.LowestNote), true
}

// Validate checks the spec is usable.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("keyboard spec name is required")
	}
	if s.Keys <= 0 {
		return fmt.Errorf("keyboard key count must be positive")
	}
	if int(s.LowestNote)+s.Keys-1 > 127 {
		return fmt.Errorf("keyboard %s extends beyond MIDI note 127", s.Name)
	}
	return nil
}

// IsBlack reports whether a MIDI note falls on a black key.
func IsBlack(note int) bool {
	switch ((note % 12) + 12) % 12 {
	case 1, 3, 6, 8, 10:
		return true
	default:
		return false
	}
}

// Registry of known keyboard sizes, keyed by key count.
var registry = make(map[int]Spec)

// Register adds a keyboard spec to the registry.
func Register(spec Spec) {
	registry[spec.Keys] = spec
}

// Lookup returns a keyboard spec by size. Accepted forms are the bare key
// count ("88") and the registered name ("88-key").
func Lookup(name string) (Spec, bool) {
	n := strings.TrimSpace(strings.ToLower(name))
	n = strings.TrimSuffix(n, "-key")
	n = strings.TrimSuffix(n, " keys")
	keys, err := strconv.Atoi(n)
	if err != nil {
		return Spec{}, false
	}
	return BySize(keys)
}

// BySize returns the keyboard spec with the given key count.
func BySize(keys int) (Spec, bool) {
	spec, ok := registry[keys]
	return spec, ok
}

// Sizes returns all registered key counts in ascending order.
func Sizes() []int {
	sizes := make([]int, 0, len(registry))
	for k := range registry {
		sizes = append(sizes, k)
	}
	sort.Ints(sizes)
	return sizes
}

// Names returns the registered spec names in ascending size order.
func Names() []string {
	sizes := Sizes()
	names := make([]string, len(sizes))
	for i, k := range sizes {
		names[i] = registry[k].Name
	}
	return names
}

func init() {
	// Register built-in keyboard sizes
	Register(Spec{Name: "25-key", Keys: 25, LowestNote: 48}) // C3-C5
	Register(Spec{Name: "37-key", Keys: 37, LowestNote: 48}) // C3-C6
	Register(Spec{Name: "49-key", Keys: 49, LowestNote: 36}) // C2-C6
	Register(Spec{Name: "61-key", Keys: 61, LowestNote: 36}) // C2-C7
	Register(Spec{Name: "76-key", Keys: 76, LowestNote: 28}) // E1-G7
	Register(Spec{Name: "88-key", Keys: 88, LowestNote: 21}) // A0-C8
}
