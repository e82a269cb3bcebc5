// Package config provides the configuration snapshot consumed by the mapping
// engine, together with loading, validation and change watching.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"piano-leds/internal/allocate"
	"piano-leds/internal/calibration"
	"piano-leds/internal/keyboard"
	"piano-leds/internal/strip"
)

// Snapshot is a complete, read-only view of the configuration the mapping
// engine depends on. Treat it as a value: use Clone before modifying maps.
type Snapshot struct {
	Keyboard        string  `json:"keyboard"`           // "88" or "88-key"
	BlackKeyWidthMM float64 `json:"black_key_width_mm"` // 0 = default
	LEDDensity      float64 `json:"led_density"`        // LEDs per metre
	TotalLEDs       int     `json:"total_leds"`         // Physical LEDs on the strip
	StartLED        int     `json:"start_led"`
	EndLED          int     `json:"end_led"`
	BaseOffsetMM    float64 `json:"base_offset_mm"`
	OverhangMM      float64 `json:"overhang_mm"`
	Mode            string  `json:"mode"` // "shared" or "exclusive"

	GlobalOffset int                      `json:"global_offset"`
	KeyOffsets   map[int]int              `json:"key_offsets,omitempty"`
	KeyTrims     map[int]calibration.Trim `json:"key_trims,omitempty"`
	KeyOverrides map[int][]int            `json:"key_overrides,omitempty"`
	Joints       []strip.Joint            `json:"joints,omitempty"`
}

// Default returns a snapshot for a full 88-key keyboard under a 255-LED,
// 200 LEDs/m strip.
func Default() Snapshot {
	return Snapshot{
		Keyboard:        "88",
		BlackKeyWidthMM: keyboard.DefaultBlackKeyWidthMM,
		LEDDensity:      200,
		TotalLEDs:       255,
		StartLED:        4,
		EndLED:          249,
		OverhangMM:      1.5,
		Mode:            allocate.Exclusive.String(),
	}
}

// WithRange returns a copy of the snapshot using LEDs [start, end].
func (s Snapshot) WithRange(start, end int) Snapshot {
	s.StartLED = start
	s.EndLED = end
	return s
}

// WithStrip returns a copy of the snapshot with a different strip.
func (s Snapshot) WithStrip(density float64, totalLEDs int) Snapshot {
	s.LEDDensity = density
	s.TotalLEDs = totalLEDs
	return s
}

// WithMode returns a copy of the snapshot using the given allocation mode.
func (s Snapshot) WithMode(m allocate.Mode) Snapshot {
	s.Mode = m.String()
	return s
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.KeyOffsets != nil {
		out.KeyOffsets = make(map[int]int, len(s.KeyOffsets))
		for k, v := range s.KeyOffsets {
			out.KeyOffsets[k] = v
		}
	}
	if s.KeyTrims != nil {
		out.KeyTrims = make(map[int]calibration.Trim, len(s.KeyTrims))
		for k, v := range s.KeyTrims {
			out.KeyTrims[k] = v
		}
	}
	if s.KeyOverrides != nil {
		out.KeyOverrides = make(map[int][]int, len(s.KeyOverrides))
		for k, v := range s.KeyOverrides {
			out.KeyOverrides[k] = append([]int(nil), v...)
		}
	}
	out.Joints = append([]strip.Joint(nil), s.Joints...)
	if len(out.Joints) == 0 {
		out.Joints = nil
	}
	return out
}

// Normalized returns a copy with defaults filled in: joints without a
// compensation get the default gap.
func (s Snapshot) Normalized() Snapshot {
	out := s.Clone()
	for i := range out.Joints {
		if out.Joints[i].CompensationMM == 0 {
			out.Joints[i].CompensationMM = strip.DefaultJointCompensationMM
		}
	}
	if out.BlackKeyWidthMM == 0 {
		out.BlackKeyWidthMM = keyboard.DefaultBlackKeyWidthMM
	}
	return out
}

// Validate checks the snapshot is structurally valid. The returned error is
// a *Error.
func (s Snapshot) Validate() error {
	if _, ok := keyboard.Lookup(s.Keyboard); !ok {
		e := invalid("keyboard", s.Keyboard, "unknown keyboard size")
		options := keyboard.Names()
		for _, size := range keyboard.Sizes() {
			options = append(options, strconv.Itoa(size))
		}
		e.Suggestion = suggest(s.Keyboard, options)
		return e
	}
	if _, err := allocate.ParseMode(s.Mode); err != nil {
		e := invalid("mode", s.Mode, "unknown allocation mode")
		e.Suggestion = suggest(s.Mode, allocate.ModeNames())
		return e
	}
	floats := []struct {
		field string
		value float64
	}{
		{"led_density", s.LEDDensity},
		{"base_offset_mm", s.BaseOffsetMM},
		{"overhang_mm", s.OverhangMM},
		{"black_key_width_mm", s.BlackKeyWidthMM},
	}
	for _, j := range s.Joints {
		floats = append(floats, struct {
			field string
			value float64
		}{"joints", j.CompensationMM})
	}
	for _, f := range floats {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return invalid(f.field, f.value, "value must be a finite number")
		}
	}
	if s.TotalLEDs <= 0 {
		return invalid("total_leds", s.TotalLEDs, "LED count must be positive")
	}
	if s.LEDDensity <= 0 {
		return invalid("led_density", s.LEDDensity, "LED density must be positive")
	}
	if s.StartLED < 0 {
		return invalid("start_led", s.StartLED, "start LED must not be negative")
	}
	if s.EndLED < s.StartLED {
		return invalid("end_led", s.EndLED, "end LED must not be below start LED %d", s.StartLED)
	}
	if w := s.BlackKeyWidthMM; w != 0 && (w < keyboard.MinBlackKeyWidthMM || w > keyboard.MaxBlackKeyWidthMM) {
		return invalid("black_key_width_mm", w, "black key width must be within %.1f-%.1fmm",
			keyboard.MinBlackKeyWidthMM, keyboard.MaxBlackKeyWidthMM)
	}
	if s.OverhangMM < 0 {
		return invalid("overhang_mm", s.OverhangMM, "overhang threshold must not be negative")
	}
	for _, j := range s.Joints {
		if j.CompensationMM < 0 {
			return invalid("joints", j.Index, "joint compensation must be positive")
		}
	}
	return nil
}

// KeyboardSpec returns the keyboard size. Call Validate first.
func (s Snapshot) KeyboardSpec() keyboard.Spec {
	spec, _ := keyboard.Lookup(s.Keyboard)
	return spec
}

// Dimensions returns the key dimensions.
func (s Snapshot) Dimensions() keyboard.Dimensions {
	return keyboard.DefaultDimensions().WithBlackWidth(s.BlackKeyWidthMM)
}

// StripSpec returns the LED strip parameters with joint defaults applied.
func (s Snapshot) StripSpec() strip.Spec {
	n := s.Normalized()
	return strip.Spec{
		DensityPerM:  n.LEDDensity,
		BaseOffsetMM: n.BaseOffsetMM,
		Joints:       n.Joints,
	}
}

// AllocationMode returns the parsed allocation mode. Call Validate first.
func (s Snapshot) AllocationMode() allocate.Mode {
	m, _ := allocate.ParseMode(s.Mode)
	return m
}

// Overrides returns the calibration corrections.
func (s Snapshot) Overrides() calibration.Overrides {
	c := s.Clone()
	return calibration.Overrides{
		GlobalOffset: c.GlobalOffset,
		KeyOffsets:   c.KeyOffsets,
		Trims:        c.KeyTrims,
		LEDs:         c.KeyOverrides,
	}
}

// Fingerprint returns a stable hash of the normalized snapshot. Two
// snapshots with equal fingerprints produce identical mappings.
func (s Snapshot) Fingerprint() string {
	n := s.Normalized()
	if spec, ok := keyboard.Lookup(n.Keyboard); ok {
		n.Keyboard = spec.Name
	}
	if m, err := allocate.ParseMode(n.Mode); err == nil {
		n.Mode = m.String()
	}
	// encoding/json sorts map keys, so the encoding is canonical.
	data, err := json.Marshal(n)
	if err != nil {
		// Non-finite floats cannot be encoded as JSON; Validate rejects
		// them, but they must still hash apart from each other.
		data = []byte(fmt.Sprintf("%#v", n))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
