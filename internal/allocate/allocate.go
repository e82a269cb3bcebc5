package allocate

import (
	"piano-leds/internal/keyboard"
	"piano-leds/internal/strip"
)

// Allocate assigns the LEDs of layout to keys by physical overlap.
//
// In shared mode an LED belongs to every key whose projected span, widened
// by overhangMM on both sides, contains the LED centre. In exclusive mode
// each key's projected span is converted to an LED index range and each LED
// goes to the lowest-indexed key whose range contains it.
//
// Either way, LEDs past the highest assigned index are absorbed by the
// highest-indexed key that received any LED, so the range is always used up
// to its end.
func Allocate(keys []keyboard.Key, layout strip.Layout, overhangMM float64, mode Mode) Assignment {
	a := Assignment{
		Mode:  mode,
		Start: layout.Start,
		End:   layout.End,
		Keys:  make([][]int, len(keys)),
	}
	if layout.Count() == 0 || len(keys) == 0 {
		return a
	}

	proj := NewProjection(keys, layout)
	owners := make([][]int, layout.Count()) // by offset into the range

	switch mode {
	case Exclusive:
		allocateExclusive(keys, layout, proj, owners)
	default:
		allocateShared(keys, layout, proj, overhangMM, owners)
	}

	a.Completed = completeRange(owners)
	if mode == Exclusive {
		a.Filled = fillInterior(owners)
	}

	for off, ks := range owners {
		led := layout.Start + off
		for _, k := range ks {
			a.Keys[k] = append(a.Keys[k], led)
		}
		if len(ks) > 1 {
			a.Shared = append(a.Shared, led)
		}
	}
	return a
}

func allocateShared(keys []keyboard.Key, layout strip.Layout, proj Projection, overhangMM float64, owners [][]int) {
	for _, key := range keys {
		span := proj.Span(key.Span).Expand(overhangMM)
		for off, p := range layout.Placements {
			if span.Contains(p.PositionMM) {
				owners[off] = append(owners[off], key.Index)
			}
		}
	}
}

func allocateExclusive(keys []keyboard.Key, layout strip.Layout, proj Projection, owners [][]int) {
	for _, key := range keys {
		span := proj.Span(key.Span)
		lo := layout.IndexAt(span.Start) - layout.Start
		hi := layout.IndexAt(span.End) - layout.Start
		for off := lo; off <= hi; off++ {
			// Keys are visited in ascending order, so the lower index wins.
			if len(owners[off]) == 0 {
				owners[off] = []int{key.Index}
			}
		}
	}
}

// completeRange gives trailing unclaimed LEDs to the highest-indexed key
// with any assignment. Returns the number of LEDs absorbed.
func completeRange(owners [][]int) int {
	lastAssigned := -1
	highestKey := -1
	for off, ks := range owners {
		if len(ks) == 0 {
			continue
		}
		lastAssigned = off
		for _, k := range ks {
			if k > highestKey {
				highestKey = k
			}
		}
	}
	if highestKey < 0 {
		return 0
	}

	n := 0
	for off := lastAssigned + 1; off < len(owners); off++ {
		owners[off] = []int{highestKey}
		n++
	}
	return n
}

// fillInterior hands unclaimed LEDs inside the range to the owner of the
// nearest claimed LED below them, or above them for leading LEDs.
func fillInterior(owners [][]int) int {
	first := -1
	for off, ks := range owners {
		if len(ks) > 0 {
			first = off
			break
		}
	}
	if first < 0 {
		return 0
	}

	n := 0
	for off := 0; off < first; off++ {
		owners[off] = []int{owners[first][0]}
		n++
	}
	for off := first + 1; off < len(owners); off++ {
		if len(owners[off]) == 0 {
			prev := owners[off-1]
			owners[off] = []int{prev[len(prev)-1]}
			n++
		}
	}
	return n
}
