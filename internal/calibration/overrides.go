// Package calibration layers user corrections on top of a raw allocation.
package calibration

import (
	"sort"
)

// Trim removes LEDs from the ends of a key's list.
type Trim struct {
	Left  int `json:"left" yaml:"left" toml:"left"`
	Right int `json:"right" yaml:"right" toml:"right"`
}

// Overrides holds the sparse per-key calibration corrections.
type Overrides struct {
	GlobalOffset int           `json:"global_offset"`
	KeyOffsets   map[int]int   `json:"key_offsets,omitempty"`   // Cascading from the key upwards
	Trims        map[int]Trim  `json:"trims,omitempty"`         // Ignored for keys with explicit LEDs
	LEDs         map[int][]int `json:"led_overrides,omitempty"` // Replaces the key's list
}

// IsZero reports whether the overrides change nothing.
func (o Overrides) IsZero() bool {
	if o.GlobalOffset != 0 || len(o.LEDs) != 0 {
		return false
	}
	for _, off := range o.KeyOffsets {
		if off != 0 {
			return false
		}
	}
	for _, t := range o.Trims {
		if t.Left > 0 || t.Right > 0 {
			return false
		}
	}
	return true
}

// OutOfRange returns the keys referenced by any override that do not exist
// on a keyboard with keyCount keys.
func (o Overrides) OutOfRange(keyCount int) []int {
	seen := make(map[int]bool)
	check := func(k int) {
		if k < 0 || k >= keyCount {
			seen[k] = true
		}
	}
	for k := range o.KeyOffsets {
		check(k)
	}
	for k := range o.Trims {
		check(k)
	}
	for k := range o.LEDs {
		check(k)
	}

	out := make([]int, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// CumulativeOffsets returns the offset applied to every key. The running
// value starts at the global offset and each per-key offset is added at its
// key, carrying forward to every higher key.
func (o Overrides) CumulativeOffsets(keyCount int) []int {
	offsets := make([]int, keyCount)
	running := o.GlobalOffset
	for k := 0; k < keyCount; k++ {
		running += o.KeyOffsets[k]
		offsets[k] = running
	}
	return offsets
}
