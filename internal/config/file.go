package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"piano-leds/internal/calibration"
	"piano-leds/internal/strip"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// SizeName is a keyboard size written either as a number (88) or a
// string ("88-key") in a config file.
type SizeName string

func (n *SizeName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = SizeName(s)
		return nil
	}
	*n = SizeName(string(data))
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (n *SizeName) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case string:
		*n = SizeName(x)
	case int64:
		*n = SizeName(strconv.FormatInt(x, 10))
	default:
		return fmt.Errorf("keyboard: unsupported value %v", v)
	}
	return nil
}

// File is the on-disk configuration layout. Per-key maps are keyed by the
// key index written as a string, since TOML table keys are always strings.
type File struct {
	Keyboard        SizeName `json:"keyboard" yaml:"keyboard" toml:"keyboard"`
	BlackKeyWidthMM float64  `json:"black_key_width_mm" yaml:"black_key_width_mm" toml:"black_key_width_mm"`
	LEDDensity      *float64 `json:"led_density" yaml:"led_density" toml:"led_density"`
	TotalLEDs       *int     `json:"total_leds" yaml:"total_leds" toml:"total_leds"`
	StartLED        *int     `json:"start_led" yaml:"start_led" toml:"start_led"`
	EndLED          *int     `json:"end_led" yaml:"end_led" toml:"end_led"`
	BaseOffsetMM    *float64 `json:"base_offset_mm" yaml:"base_offset_mm" toml:"base_offset_mm"`
	OverhangMM      *float64 `json:"overhang_mm" yaml:"overhang_mm" toml:"overhang_mm"`
	Mode            string   `json:"mode" yaml:"mode" toml:"mode"`

	GlobalOffset *int                        `json:"global_offset" yaml:"global_offset" toml:"global_offset"`
	KeyOffsets   map[string]int              `json:"key_offsets,omitempty" yaml:"key_offsets,omitempty" toml:"key_offsets,omitempty"`
	KeyTrims     map[string]calibration.Trim `json:"key_trims,omitempty" yaml:"key_trims,omitempty" toml:"key_trims,omitempty"`
	KeyOverrides map[string][]int            `json:"key_overrides,omitempty" yaml:"key_overrides,omitempty" toml:"key_overrides,omitempty"`
	Joints       []strip.Joint               `json:"joints,omitempty" yaml:"joints,omitempty" toml:"joints,omitempty"`
}

// Snapshot converts the file into a snapshot. Unset fields keep the values
// from Default.
func (f File) Snapshot() (Snapshot, error) {
	s := Default()
	if f.Keyboard != "" {
		s.Keyboard = strings.TrimSpace(string(f.Keyboard))
	}
	if f.BlackKeyWidthMM != 0 {
		s.BlackKeyWidthMM = f.BlackKeyWidthMM
	}
	setIf(&s.LEDDensity, f.LEDDensity)
	setIf(&s.TotalLEDs, f.TotalLEDs)
	setIf(&s.StartLED, f.StartLED)
	setIf(&s.EndLED, f.EndLED)
	setIf(&s.BaseOffsetMM, f.BaseOffsetMM)
	setIf(&s.GlobalOffset, f.GlobalOffset)
	setIf(&s.OverhangMM, f.OverhangMM)
	if f.Mode != "" {
		s.Mode = f.Mode
	}
	s.Joints = f.Joints

	var err error
	if s.KeyOffsets, err = intKeys("key_offsets", f.KeyOffsets); err != nil {
		return Snapshot{}, err
	}
	if s.KeyTrims, err = intKeys("key_trims", f.KeyTrims); err != nil {
		return Snapshot{}, err
	}
	if s.KeyOverrides, err = intKeys("key_overrides", f.KeyOverrides); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func intKeys[V any](field string, in map[string]V) (map[int]V, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[int]V, len(in))
	for k, v := range in {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, invalid(field, k, "key index must be an integer")
		}
		out[idx] = v
	}
	return out, nil
}

// Decode parses configuration data in the given format ("yaml", "toml" or
// "json").
func Decode(data []byte, format string) (Snapshot, error) {
	var f File
	var err error
	switch strings.ToLower(format) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &f)
	case "toml":
		err = toml.Unmarshal(data, &f)
	case "json":
		err = json.Unmarshal(data, &f)
	default:
		return Snapshot{}, fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse %s config: %w", format, err)
	}
	return f.Snapshot()
}

// Read decodes a configuration file, choosing the decoder by extension.
// The result is not validated.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read config: %w", err)
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	s, err := Decode(data, format)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Load reads a configuration file and validates the result.
func Load(path string) (Snapshot, error) {
	s, err := Read(path)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// FileFrom converts a snapshot into the on-disk layout.
func FileFrom(s Snapshot) File {
	return File{
		Keyboard:        SizeName(s.Keyboard),
		BlackKeyWidthMM: s.BlackKeyWidthMM,
		LEDDensity:      ptr(s.LEDDensity),
		TotalLEDs:       ptr(s.TotalLEDs),
		StartLED:        ptr(s.StartLED),
		EndLED:          ptr(s.EndLED),
		BaseOffsetMM:    ptr(s.BaseOffsetMM),
		OverhangMM:      ptr(s.OverhangMM),
		Mode:            s.Mode,
		GlobalOffset:    ptr(s.GlobalOffset),
		KeyOffsets:      stringKeys(s.KeyOffsets),
		KeyTrims:        stringKeys(s.KeyTrims),
		KeyOverrides:    stringKeys(s.KeyOverrides),
		Joints:          append([]strip.Joint(nil), s.Joints...),
	}
}

func ptr[T any](v T) *T {
	return &v
}

func stringKeys[V any](in map[int]V) map[string]V {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[strconv.Itoa(k)] = v
	}
	return out
}

// Encode serializes a snapshot in the given format.
func Encode(s Snapshot, format string) ([]byte, error) {
	f := FileFrom(s)
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return yaml.Marshal(f)
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(f); err != nil {
			return nil, fmt.Errorf("encode toml config: %w", err)
		}
		return buf.Bytes(), nil
	case "json":
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json config: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
}

// Save writes a snapshot to path in the format matching its extension.
func Save(path string, s Snapshot) error {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	data, err := Encode(s, format)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
