// Package quality scores how well an LED allocation covers a keyboard.
package quality

import (
	"fmt"
	"math"
	"slices"

	"piano-leds/internal/allocate"
	"piano-leds/internal/keyboard"
	"piano-leds/internal/strip"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Level is a coarse rating derived from the score.
type Level string

const (
	Poor      Level = "poor"
	OK        Level = "ok"
	Good      Level = "good"
	Excellent Level = "excellent"
)

// LevelFor maps a score to its level.
func LevelFor(score int) Level {
	switch {
	case score >= 90:
		return Excellent
	case score >= 70:
		return Good
	case score >= 50:
		return OK
	default:
		return Poor
	}
}

// Target ranges used for scoring.
const (
	MinLEDsPerKey = 2.0
	MaxLEDsPerKey = 4.0
	MinCoverage   = 0.95
	MaxCoverage   = 1.05
	MinEfficiency = 1.00
	MaxEfficiency = 1.10
)

// Stats summarises the number of LEDs under each key.
type Stats struct {
	Min int     `json:"min"`
	Max int     `json:"max"`
	Avg float64 `json:"avg"`
}

// Report is the quality diagnostic for one allocation.
type Report struct {
	Score           int      `json:"score"`
	Level           Level    `json:"level"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`

	CoverageRatio       float64 `json:"coverage_ratio"` // LED coverage length / keyboard width
	Efficiency          float64 `json:"efficiency"`     // usable LEDs / ideal LEDs
	LEDsPerKey          Stats   `json:"leds_per_key"`
	ConsecutiveCoverage int     `json:"consecutive_coverage"` // adjacent key pairs with no gap

	// Physical LEDs are counted once in UniqueLEDs. SharedLEDs are the
	// subset lit by more than one key, which only happens in shared mode.
	Mode       string `json:"mode"`
	KeyCount   int    `json:"key_count"`
	UsableLEDs int    `json:"usable_leds"`
	UniqueLEDs int    `json:"unique_leds"`
	SharedLEDs int    `json:"shared_leds"`
	EmptyKeys  []int  `json:"empty_keys,omitempty"`
}

// Clone returns a copy whose slices are not shared with r.
func (r Report) Clone() Report {
	r.Warnings = slices.Clone(r.Warnings)
	r.Recommendations = slices.Clone(r.Recommendations)
	r.EmptyKeys = slices.Clone(r.EmptyKeys)
	return r
}

// Warn appends a warning.
func (r *Report) Warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// recommend appends a recommendation once.
func (r *Report) recommend(s string) {
	for _, existing := range r.Recommendations {
		if existing == s {
			return
		}
	}
	r.Recommendations = append(r.Recommendations, s)
}

// Analyze computes the quality report for a raw allocation.
func Analyze(a allocate.Assignment, keys []keyboard.Key, layout strip.Layout) Report {
	r := Report{
		Mode:       a.Mode.String(),
		KeyCount:   len(keys),
		UsableLEDs: layout.Count(),
		UniqueLEDs: a.UniqueLEDs(),
		SharedLEDs: len(a.Shared),
	}

	width := keyboard.Width(keys)
	if width > 0 {
		r.CoverageRatio = layout.CoverageMM() / width
		if layout.SpacingMM > 0 {
			ideal := width / layout.SpacingMM
			r.Efficiency = float64(layout.Count()) / ideal
		}
	}

	counts := make([]float64, len(a.Keys))
	for k, leds := range a.Keys {
		counts[k] = float64(len(leds))
		if len(leds) == 0 {
			r.EmptyKeys = append(r.EmptyKeys, k)
		}
	}
	if len(counts) > 0 {
		r.LEDsPerKey = Stats{
			Min: int(floats.Min(counts)),
			Max: int(floats.Max(counts)),
			Avg: stat.Mean(counts, nil),
		}
	}
	r.ConsecutiveCoverage = consecutiveCoverage(a.Keys)

	penalty := r.ledsPerKeyPenalty()
	penalty += r.coveragePenalty()
	penalty += r.efficiencyPenalty()

	r.Score = int(math.Round(math.Max(0, math.Min(100, 100-penalty))))
	r.Level = LevelFor(r.Score)
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
	return r
}

func (r *Report) ledsPerKeyPenalty() float64 {
	if r.KeyCount == 0 {
		return 0
	}
	penalty := 0.0
	avg := r.LEDsPerKey.Avg

	switch {
	case avg < 1:
		// Too few LEDs for the keyboard: degrade, never fail.
		r.Warn("LED strip undersaturated: %.2f LEDs per key on average, fewer than one per key", avg)
		r.recommend("increase LED density or extend LED range")
		penalty += math.Min(40, 20+10*(MinLEDsPerKey-avg))
	case avg < MinLEDsPerKey:
		r.Warn("low LED density: %.2f LEDs per key (recommended %.0f-%.0f)", avg, MinLEDsPerKey, MaxLEDsPerKey)
		r.recommend("extend LED range")
		penalty += math.Min(40, 20+10*(MinLEDsPerKey-avg))
	case avg > MaxLEDsPerKey:
		r.Warn("high LED density: %.2f LEDs per key (recommended %.0f-%.0f)", avg, MinLEDsPerKey, MaxLEDsPerKey)
		r.recommend("reduce LED range or use exclusive mode")
		penalty += math.Min(20, 5*(avg-MaxLEDsPerKey))
	}

	switch r.LEDsPerKey.Min {
	case 0:
		r.Warn("%d keys have no LEDs", len(r.EmptyKeys))
		penalty += 20
	case 1:
		r.Warn("some keys have only 1 LED")
		penalty += 5
	}
	return penalty
}

func (r *Report) coveragePenalty() float64 {
	d := outside(r.CoverageRatio, MinCoverage, MaxCoverage)
	if d == 0 {
		return 0
	}
	if r.CoverageRatio < MinCoverage {
		r.Warn("LED coverage is %.0f%% of keyboard width", r.CoverageRatio*100)
		r.recommend("extend LED range")
	} else {
		r.Warn("LED coverage exceeds keyboard width (%.0f%%)", r.CoverageRatio*100)
		r.recommend("reduce LED range")
	}
	return math.Min(30, 100*d)
}

func (r *Report) efficiencyPenalty() float64 {
	d := outside(r.Efficiency, MinEfficiency, MaxEfficiency)
	if d == 0 {
		return 0
	}
	if r.Efficiency > MaxEfficiency {
		r.recommend("trim unused LEDs from the range ends")
	}
	return math.Min(15, 50*d)
}

// outside returns how far v lies outside [lo, hi], or 0 inside it.
func outside(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}

// consecutiveCoverage counts adjacent key pairs whose LED lists abut or
// overlap, leaving no more than one index between them.
func consecutiveCoverage(keys [][]int) int {
	n := 0
	for k := 0; k+1 < len(keys); k++ {
		cur, next := keys[k], keys[k+1]
		if len(cur) == 0 || len(next) == 0 {
			continue
		}
		if next[0]-cur[len(cur)-1] <= 1 {
			n++
		}
	}
	return n
}
