package keyboard

import (
	"fmt"

	"piano-leds/pkg/geometry"

	"gitlab.com/gomidi/midi/v2"
)

const (
	// Physical key dimensions in millimetres
	WhiteKeyWidthMM        = 23.5
	DefaultBlackKeyWidthMM = 13.7
	MinBlackKeyWidthMM     = 13.5
	MaxBlackKeyWidthMM     = 13.7
	WhiteKeyGapMM          = 1.0
)

// Kind distinguishes white and black keys.
type Kind int

const (
	White Kind = iota
	Black
)

func (k Kind) String() string {
	switch k {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "unknown"
	}
}

// Dimensions holds the physical key measurements used for geometry.
type Dimensions struct {
	WhiteWidthMM float64 `json:"white_width_mm"`
	BlackWidthMM float64 `json:"black_width_mm"`
	GapMM        float64 `json:"gap_mm"`
}

// DefaultDimensions returns standard acoustic piano key dimensions.
func DefaultDimensions() Dimensions {
	return Dimensions{
		WhiteWidthMM: WhiteKeyWidthMM,
		BlackWidthMM: DefaultBlackKeyWidthMM,
		GapMM:        WhiteKeyGapMM,
	}
}

// WithBlackWidth returns a copy of the dimensions with a custom black key width.
// Zero keeps the current width.
func (d Dimensions) WithBlackWidth(mm float64) Dimensions {
	if mm != 0 {
		d.BlackWidthMM = mm
	}
	return d
}

// Pitch returns the distance between the left edges of adjacent white keys.
func (d Dimensions) Pitch() float64 {
	return d.WhiteWidthMM + d.GapMM
}

// Key is the physical extent of one key along the keyboard.
type Key struct {
	Index int           `json:"index"` // 0-based ordinal across the keyboard
	Kind  Kind          `json:"kind"`
	Note  uint8         `json:"note"` // MIDI note number
	Span  geometry.Span `json:"span"` // Left/right edge in mm
}

// Name returns the note name of the key, e.g. "A0".
func (k Key) Name() string {
	return midi.Note(k.Note).String()
}

func (k Key) String() string {
	return fmt.Sprintf("key %d (%s, %s)", k.Index, k.Name(), k.Kind)
}

// ComputeGeometries returns the physical span of every key on the keyboard.
//
// White keys sit at whiteOrdinal*(white+gap). A black key is centred on the
// boundary between its neighbouring white keys: its left edge is the previous
// white key's left edge plus half a white pitch plus (white-black)/2. A black
// key with no preceding white key uses a virtual one, so boundary keys never
// fail.
func ComputeGeometries(spec Spec, dims Dimensions) []Key {
	keys := make([]Key, spec.Keys)
	pitch := dims.Pitch()

	whiteOrdinal := 0
	for i := 0; i < spec.Keys; i++ {
		note := int(spec.LowestNote) + i
		key := Key{Index: i, Note: uint8(note)}

		if IsBlack(note) {
			prevLeft := float64(whiteOrdinal-1) * pitch
			left := prevLeft + pitch/2 + (dims.WhiteWidthMM-dims.BlackWidthMM)/2
			key.Kind = Black
			key.Span = geometry.NewSpan(left, left+dims.BlackWidthMM)
		} else {
			left := float64(whiteOrdinal) * pitch
			key.Kind = White
			key.Span = geometry.NewSpan(left, left+dims.WhiteWidthMM)
			whiteOrdinal++
		}
		keys[i] = key
	}
	return keys
}

// Extent returns the span covered by all keys.
func Extent(keys []Key) geometry.Span {
	spans := make([]geometry.Span, len(keys))
	for i, k := range keys {
		spans[i] = k.Span
	}
	return geometry.Extent(spans)
}

// Width returns the physical width of the keyboard in mm.
func Width(keys []Key) float64 {
	return Extent(keys).Width()
}
