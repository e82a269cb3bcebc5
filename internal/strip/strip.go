// Package strip models the physical layout of an addressable LED strip.
package strip

import (
	"fmt"
	"math"
	"sort"
)

// DefaultJointCompensationMM is the extra gap a solder joint adds when no
// explicit compensation is configured.
const DefaultJointCompensationMM = 1.0

// Joint is a splice between strip segments. It adds CompensationMM to the
// position of every LED with an index strictly greater than Index.
type Joint struct {
	Index          int     `json:"index" yaml:"index" toml:"index"`
	CompensationMM float64 `json:"compensation_mm" yaml:"compensation_mm" toml:"compensation_mm"`
}

// Spec defines the physical parameters of an LED strip.
type Spec struct {
	DensityPerM  float64 `json:"density_per_m"` // LEDs per metre
	BaseOffsetMM float64 `json:"base_offset_mm"`
	Joints       []Joint `json:"joints,omitempty"`
}

// SpacingMM returns the nominal centre-to-centre distance between LEDs.
func (s Spec) SpacingMM() float64 {
	if s.DensityPerM <= 0 {
		return 0
	}
	return 1000.0 / s.DensityPerM
}

// JointCompensation returns the accumulated joint gap before LED i.
func (s Spec) JointCompensation(i int) float64 {
	total := 0.0
	for _, j := range s.Joints {
		if j.Index < i {
			total += j.CompensationMM
		}
	}
	return total
}

// Center returns the physical centre of LED i in mm.
func (s Spec) Center(i int) float64 {
	return s.BaseOffsetMM + float64(i)*s.SpacingMM() + s.JointCompensation(i)
}

// Validate checks the spec is usable. Joint defaults must already be
// applied: a zero compensation is rejected here.
func (s Spec) Validate() error {
	if !(s.DensityPerM > 0) || math.IsInf(s.DensityPerM, 0) {
		return fmt.Errorf("LED density must be positive")
	}
	if math.IsNaN(s.BaseOffsetMM) || math.IsInf(s.BaseOffsetMM, 0) {
		return fmt.Errorf("base offset must be finite")
	}
	for _, j := range s.Joints {
		if !(j.CompensationMM > 0) || math.IsInf(j.CompensationMM, 0) {
			return fmt.Errorf("joint at LED %d: compensation must be positive", j.Index)
		}
	}
	return nil
}

// Placement is the physical location of one LED.
type Placement struct {
	Index    int     `json:"index"`
	CenterMM float64 `json:"center_mm"` // Strip coordinates
	// PositionMM is the LED centre in LED space: measured from the start of
	// the usable range, where the first usable LED's cell spans [0, spacing).
	// The base offset shifts LEDs relative to the keyboard.
	PositionMM float64 `json:"position_mm"`
}

// CellStart returns where the LED's cell begins in LED space.
func (p Placement) CellStart(spacing float64) float64 {
	return p.PositionMM - spacing/2
}

// Layout is the usable range of a strip with every LED placed.
type Layout struct {
	SpacingMM  float64     `json:"spacing_mm"`
	Start      int         `json:"start"`
	End        int         `json:"end"`
	Placements []Placement `json:"placements"`
}

// ComputePlacements places every LED in [start, end].
func ComputePlacements(spec Spec, start, end int) Layout {
	spacing := spec.SpacingMM()
	layout := Layout{SpacingMM: spacing, Start: start, End: end}
	if end < start {
		return layout
	}

	origin := float64(start)*spacing + spec.JointCompensation(start)
	layout.Placements = make([]Placement, 0, end-start+1)
	for i := start; i <= end; i++ {
		c := spec.Center(i)
		layout.Placements = append(layout.Placements, Placement{
			Index:      i,
			CenterMM:   c,
			PositionMM: c - origin + spacing/2,
		})
	}
	return layout
}

// Count returns the number of usable LEDs.
func (l Layout) Count() int {
	return len(l.Placements)
}

// CoverageMM returns the physical length covered by the usable LEDs,
// joint compensation included.
func (l Layout) CoverageMM() float64 {
	if len(l.Placements) == 0 {
		return 0
	}
	first := l.Placements[0]
	last := l.Placements[len(l.Placements)-1]
	return last.PositionMM - first.PositionMM + l.SpacingMM
}

// Placement returns the placement of LED index i.
func (l Layout) Placement(i int) (Placement, bool) {
	if i < l.Start || i > l.End || len(l.Placements) == 0 {
		return Placement{}, false
	}
	return l.Placements[i-l.Start], true
}

// IndexAt returns the LED whose cell contains the LED-space position pos:
// the last LED whose cell starts at or before pos. Positions before the first
// cell map to the first LED. With no joints this equals
// Start + floor(pos/spacing).
func (l Layout) IndexAt(pos float64) int {
	n := len(l.Placements)
	if n == 0 {
		return l.Start
	}
	// first LED whose cell starts after pos
	k := sort.Search(n, func(i int) bool {
		return l.Placements[i].CellStart(l.SpacingMM) > pos
	})
	if k == 0 {
		return l.Start
	}
	return l.Placements[k-1].Index
}

// Validate verifies LED centres strictly increase with index.
func (l Layout) Validate() error {
	if l.SpacingMM <= 0 {
		return fmt.Errorf("LED spacing must be positive")
	}
	for i := 1; i < len(l.Placements); i++ {
		prev, cur := l.Placements[i-1], l.Placements[i]
		if cur.CenterMM <= prev.CenterMM {
			return fmt.Errorf("LED %d centre %.3fmm not beyond LED %d centre %.3fmm",
				cur.Index, cur.CenterMM, prev.Index, prev.CenterMM)
		}
	}
	return nil
}
