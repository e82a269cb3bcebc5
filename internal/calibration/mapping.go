package calibration

import (
	"encoding/json"
	"fmt"
)

// Mapping is the final key to LED assignment. It is immutable: accessors
// return copies, so a Mapping can be shared freely between goroutines.
type Mapping struct {
	keys  [][]int
	total int
}

// NewMapping builds a mapping from per-key LED lists. The lists are copied.
func NewMapping(keys [][]int, totalLEDs int) Mapping {
	return Mapping{keys: copyLists(keys), total: totalLEDs}
}

// KeyCount returns the number of keys.
func (m Mapping) KeyCount() int {
	return len(m.keys)
}

// TotalLEDs returns the physical LED count the mapping is bounded by.
func (m Mapping) TotalLEDs() int {
	return m.total
}

// LEDs returns the LED indices lit for key k, or nil for an unknown key.
func (m Mapping) LEDs(k int) []int {
	if k < 0 || k >= len(m.keys) {
		return nil
	}
	if m.keys[k] == nil {
		return nil
	}
	return append([]int(nil), m.keys[k]...)
}

// Keys returns a copy of every key's LED list.
func (m Mapping) Keys() [][]int {
	return copyLists(m.keys)
}

// Each calls fn for every key in ascending order. fn must not retain leds.
func (m Mapping) Each(fn func(key int, leds []int)) {
	for k, leds := range m.keys {
		fn(k, leds)
	}
}

// Equal reports whether two mappings are identical.
func (m Mapping) Equal(other Mapping) bool {
	if m.total != other.total || len(m.keys) != len(other.keys) {
		return false
	}
	for k := range m.keys {
		a, b := m.keys[k], other.keys[k]
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

// OutOfBounds returns every (key, LED) pair whose LED index lies outside
// [0, total-1]. A correctly built mapping has none.
func (m Mapping) OutOfBounds() [][2]int {
	var out [][2]int
	for k, leds := range m.keys {
		for _, led := range leds {
			if led < 0 || led >= m.total {
				out = append(out, [2]int{k, led})
			}
		}
	}
	return out
}

// Clamped returns a copy with every index saturated into [0, total-1] and
// each list sorted and deduplicated.
func (m Mapping) Clamped() Mapping {
	keys := make([][]int, len(m.keys))
	for k, leds := range m.keys {
		out := make([]int, 0, len(leds))
		for _, led := range leds {
			if m.total <= 0 {
				break
			}
			out = append(out, min(max(led, 0), m.total-1))
		}
		if len(out) > 0 {
			keys[k] = sortedUnique(out)
		}
	}
	return Mapping{keys: keys, total: m.total}
}

func (m Mapping) String() string {
	return fmt.Sprintf("Mapping{keys: %d, total_leds: %d}", len(m.keys), m.total)
}

type mappingJSON struct {
	TotalLEDs int     `json:"total_leds"`
	Keys      [][]int `json:"keys"`
}

// MarshalJSON encodes the mapping; keys without LEDs encode as [].
func (m Mapping) MarshalJSON() ([]byte, error) {
	out := mappingJSON{TotalLEDs: m.total, Keys: make([][]int, len(m.keys))}
	for k, leds := range m.keys {
		if leds == nil {
			leds = []int{}
		}
		out.Keys[k] = leds
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a mapping written by MarshalJSON.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var in mappingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = NewMapping(in.Keys, in.TotalLEDs)
	for k, leds := range m.keys {
		if len(leds) == 0 {
			m.keys[k] = nil
		}
	}
	return nil
}

func copyLists(in [][]int) [][]int {
	out := make([][]int, len(in))
	for k, leds := range in {
		if leds != nil {
			out[k] = append([]int(nil), leds...)
		}
	}
	return out
}
