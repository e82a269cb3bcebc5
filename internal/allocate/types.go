// Package allocate assigns LEDs on a strip to the piano keys above them.
package allocate

import (
	"fmt"
	"sort"
	"strings"

	"piano-leds/internal/keyboard"
	"piano-leds/internal/strip"
	"piano-leds/pkg/geometry"
)

// Mode selects how LEDs that fall between two keys are handled.
type Mode int

const (
	// Shared lets boundary LEDs belong to every key they overlap.
	Shared Mode = iota
	// Exclusive gives every LED to exactly one key.
	Exclusive
)

func (m Mode) String() string {
	switch m {
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// ModeNames lists the accepted mode names.
func ModeNames() []string {
	return []string{Shared.String(), Exclusive.String()}
}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shared", "":
		return Shared, nil
	case "exclusive":
		return Exclusive, nil
	default:
		return Shared, fmt.Errorf("unknown allocation mode %q", s)
	}
}

// RescueStats describes what the orphan rescue pass did.
type RescueStats struct {
	Rescued      int `json:"rescued"`
	FromPrevious int `json:"from_previous"` // claimed by the key on the left
	FromNext     int `json:"from_next"`     // claimed by the key on the right
}

// Assignment maps every key index to the LED indices it lights.
type Assignment struct {
	Mode  Mode    `json:"mode"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Keys  [][]int `json:"keys"` // Ascending, deduplicated, one list per key

	// Shared holds LEDs claimed by two or more keys (shared mode only).
	Shared []int `json:"shared,omitempty"`

	Completed int         `json:"completed"` // Trailing LEDs absorbed by the last assigned key
	Filled    int         `json:"filled"`    // Interior gaps closed in exclusive mode
	Rescue    RescueStats `json:"rescue"`
}

// KeyCount returns the number of keys in the assignment.
func (a Assignment) KeyCount() int {
	return len(a.Keys)
}

// LEDs returns the LEDs assigned to key k.
func (a Assignment) LEDs(k int) []int {
	if k < 0 || k >= len(a.Keys) {
		return nil
	}
	return a.Keys[k]
}

// Owners returns the keys claiming each LED index.
func (a Assignment) Owners() map[int][]int {
	owners := make(map[int][]int)
	for k, leds := range a.Keys {
		for _, led := range leds {
			owners[led] = append(owners[led], k)
		}
	}
	return owners
}

// Unassigned returns LEDs in the range that no key claims.
func (a Assignment) Unassigned() []int {
	owners := a.Owners()
	var out []int
	for i := a.Start; i <= a.End; i++ {
		if len(owners[i]) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// UniqueLEDs returns the number of distinct LEDs claimed by any key.
func (a Assignment) UniqueLEDs() int {
	return len(a.Owners())
}

// Clone returns a deep copy.
func (a Assignment) Clone() Assignment {
	out := a
	out.Keys = make([][]int, len(a.Keys))
	for k, leds := range a.Keys {
		if leds != nil {
			out.Keys[k] = append([]int(nil), leds...)
		}
	}
	out.Shared = append([]int(nil), a.Shared...)
	if len(out.Shared) == 0 {
		out.Shared = nil
	}
	return out
}

// sortedUnique sorts and deduplicates in place.
func sortedUnique(v []int) []int {
	if len(v) < 2 {
		return v
	}
	sort.Ints(v)
	out := v[:1]
	for _, x := range v[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

// Projection maps piano-space coordinates into LED space.
//
// led_pos = (piano_pos - origin) * scale, where scale is the LED coverage
// length divided by the keyboard width. This is the only conversion between
// the two spaces.
type Projection struct {
	Origin float64 `json:"origin"` // Left edge of the keyboard in piano space
	Scale  float64 `json:"scale"`
}

// NewProjection derives the projection for a keyboard and LED layout.
func NewProjection(keys []keyboard.Key, layout strip.Layout) Projection {
	extent := keyboard.Extent(keys)
	p := Projection{Origin: extent.Start, Scale: 1}
	if w := extent.Width(); w > 0 && layout.Count() > 0 {
		p.Scale = layout.CoverageMM() / w
	}
	return p
}

// Point maps a piano-space position into LED space.
func (p Projection) Point(x float64) float64 {
	return (x - p.Origin) * p.Scale
}

// Span maps a piano-space span into LED space.
func (p Projection) Span(s geometry.Span) geometry.Span {
	return s.Translate(-p.Origin).Scale(p.Scale)
}
