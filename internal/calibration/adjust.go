package calibration

import (
	"sort"

	"piano-leds/internal/allocate"
	"piano-leds/pkg/geometry"
)

// Apply produces the canonical mapping from a raw allocation. Steps run in a
// fixed order:
//
//  1. an explicit LED list replaces the key's allocation;
//  2. trims drop LEDs from the ends of keys without an explicit list;
//  3. every key shifts by its cumulative offset;
//  4. every index saturates into [0, totalLEDs-1], then lists are sorted and
//     deduplicated.
//
// Apply never modifies raw and always returns the same mapping for the same
// inputs.
func Apply(raw allocate.Assignment, o Overrides, totalLEDs int) Mapping {
	keyCount := raw.KeyCount()
	offsets := o.CumulativeOffsets(keyCount)
	keys := make([][]int, keyCount)

	for k := 0; k < keyCount; k++ {
		var base []int
		if explicit, ok := o.LEDs[k]; ok {
			base = explicit
		} else {
			base = trim(raw.LEDs(k), o.Trims[k])
		}

		out := make([]int, 0, len(base))
		for _, led := range base {
			if totalLEDs <= 0 {
				break
			}
			out = append(out, geometry.Clamp(led+offsets[k], 0, totalLEDs-1))
		}
		if len(out) > 0 {
			keys[k] = sortedUnique(out)
		}
	}
	return Mapping{keys: keys, total: totalLEDs}
}

// trim drops t.Left LEDs from the start and t.Right from the end. Trimming
// more LEDs than the key has leaves it empty.
func trim(leds []int, t Trim) []int {
	left, right := max(t.Left, 0), max(t.Right, 0)
	if left+right >= len(leds) {
		if left+right > 0 {
			return nil
		}
		return leds
	}
	return leds[left : len(leds)-right]
}

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
