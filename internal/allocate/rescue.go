package allocate

import (
	"math"

	"piano-leds/internal/keyboard"
	"piano-leds/internal/strip"
)

// neighbour is the nearest key on one side of an orphaned LED.
type neighbour struct {
	key      int
	distance float64
}

// RescueOrphans assigns every LED left unclaimed by shared-mode allocation
// to the nearer of the two keys bounding it. Distances are measured to the
// nominal projected key edges, without overhang. A tie goes to the
// lower-indexed key; an LED with a key on only one side goes to that key.
//
// Exclusive assignments are returned unchanged: they have no orphans.
func RescueOrphans(a Assignment, keys []keyboard.Key, layout strip.Layout) Assignment {
	out := a.Clone()
	if a.Mode != Shared || len(keys) == 0 {
		return out
	}

	orphans := a.Unassigned()
	if len(orphans) == 0 {
		return out
	}

	proj := NewProjection(keys, layout)
	starts := make([]float64, len(keys))
	ends := make([]float64, len(keys))
	for i, k := range keys {
		s := proj.Span(k.Span)
		starts[i], ends[i] = s.Start, s.End
	}

	touched := make(map[int]bool)
	for _, led := range orphans {
		p, ok := layout.Placement(led)
		if !ok {
			continue
		}
		prev, next := boundingKeys(p.PositionMM, starts, ends)

		var winner int
		fromPrev := false
		switch {
		case prev == nil && next == nil:
			continue
		case next == nil:
			winner, fromPrev = prev.key, true
		case prev == nil:
			winner = next.key
		case prev.distance < next.distance:
			winner, fromPrev = prev.key, true
		case next.distance < prev.distance:
			winner = next.key
		default:
			winner = min(prev.key, next.key)
			fromPrev = winner == prev.key
		}

		out.Keys[winner] = append(out.Keys[winner], led)
		touched[winner] = true
		out.Rescue.Rescued++
		if fromPrev {
			out.Rescue.FromPrevious++
		} else {
			out.Rescue.FromNext++
		}
	}

	for k := range touched {
		out.Keys[k] = sortedUnique(out.Keys[k])
	}
	return out
}

// boundingKeys finds the key ending closest before pos and the key starting
// closest after it. Equal distances keep the lower key index.
func boundingKeys(pos float64, starts, ends []float64) (prev, next *neighbour) {
	bestPrev, bestNext := math.Inf(1), math.Inf(1)
	for k := range starts {
		if ends[k] <= pos {
			if d := pos - ends[k]; d < bestPrev {
				bestPrev = d
				prev = &neighbour{key: k, distance: d}
			}
		}
		if starts[k] >= pos {
			if d := starts[k] - pos; d < bestNext {
				bestNext = d
				next = &neighbour{key: k, distance: d}
			}
		}
	}
	return prev, next
}
