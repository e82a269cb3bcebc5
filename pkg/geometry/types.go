// Package geometry provides basic geometric types used throughout the application.
//
// Everything on a keyboard and an LED strip lies along one axis, so the
// primitives here are one-dimensional: a position in millimetres and a
// closed interval (Span) of positions.
package geometry

import (
	"math"
)

// Span represents a closed interval [Start, End] along the keyboard axis.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewSpan creates a new Span.
func NewSpan(start, end float64) Span {
	return Span{Start: start, End: end}
}

// Width returns the length of the span.
func (s Span) Width() float64 {
	return s.End - s.Start
}

// Center returns the midpoint of the span.
func (s Span) Center() float64 {
	return (s.Start + s.End) / 2
}

// Contains returns true if x lies inside the span, edges included.
func (s Span) Contains(x float64) bool {
	return x >= s.Start && x <= s.End
}

// Expand returns the span grown by d on both sides.
func (s Span) Expand(d float64) Span {
	return Span{Start: s.Start - d, End: s.End + d}
}

// Scale returns the span with both edges multiplied by factor.
func (s Span) Scale(factor float64) Span {
	return Span{Start: s.Start * factor, End: s.End * factor}
}

// Translate returns the span shifted by dx.
func (s Span) Translate(dx float64) Span {
	return Span{Start: s.Start + dx, End: s.End + dx}
}

// Distance returns the distance from x to the nearest edge of the span,
// or 0 if x is inside it.
func (s Span) Distance(x float64) float64 {
	switch {
	case x < s.Start:
		return s.Start - x
	case x > s.End:
		return x - s.End
	default:
		return 0
	}
}

// Intersects returns true if the spans overlap.
func (s Span) Intersects(other Span) bool {
	return s.Start <= other.End && other.Start <= s.End
}

// Union returns the smallest span containing both spans.
func (s Span) Union(other Span) Span {
	return Span{Start: math.Min(s.Start, other.Start), End: math.Max(s.End, other.End)}
}

// Extent computes the smallest span containing all the given spans.
func Extent(spans []Span) Span {
	if len(spans) == 0 {
		return Span{}
	}
	out := spans[0]
	for _, s := range spans[1:] {
		out = out.Union(s)
	}
	return out
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
