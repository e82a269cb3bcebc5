package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"piano-leds/internal/allocate"
	"piano-leds/internal/calibration"
	"piano-leds/internal/strip"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
keyboard: "88-key"
led_density: 200
total_leds: 255
start_led: 4
end_led: 249
overhang_mm: 2
mode: shared
global_offset: 1
key_offsets:
  10: 2
  20: -1
key_trims:
  5:
    left: 1
key_overrides:
  0: [4, 5]
joints:
  - index: 85
    compensation_mm: 2.5
  - index: 170
`

const tomlConfig = `
keyboard = 61
led_density = 144
total_leds = 200
start_led = 0
end_led = 180
mode = "exclusive"

[key_offsets]
"3" = 1

[key_trims.7]
right = 2

[key_overrides]
"12" = [40, 41]

[[joints]]
index = 90
compensation_mm = 1.5
`

const jsonConfig = `{
  "keyboard": 49,
  "led_density": 100,
  "total_leds": 150,
  "start_led": 2,
  "end_led": 120,
  "overhang_mm": 0,
  "key_offsets": {"4": -2}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	s, err := Load(writeFile(t, "leds.yaml", yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, "88-key", s.Keyboard)
	assert.Equal(t, 200.0, s.LEDDensity)
	assert.Equal(t, 255, s.TotalLEDs)
	assert.Equal(t, 4, s.StartLED)
	assert.Equal(t, 249, s.EndLED)
	assert.Equal(t, 2.0, s.OverhangMM)
	assert.Equal(t, "shared", s.Mode)
	assert.Equal(t, 1, s.GlobalOffset)
	assert.Equal(t, map[int]int{10: 2, 20: -1}, s.KeyOffsets)
	assert.Equal(t, map[int]calibration.Trim{5: {Left: 1}}, s.KeyTrims)
	assert.Equal(t, map[int][]int{0: {4, 5}}, s.KeyOverrides)
	assert.Equal(t, []strip.Joint{{Index: 85, CompensationMM: 2.5}, {Index: 170}}, s.Joints)
}

func TestLoadTOML(t *testing.T) {
	s, err := Load(writeFile(t, "leds.toml", tomlConfig))
	require.NoError(t, err)

	assert.Equal(t, "61", s.Keyboard)
	assert.Equal(t, 61, s.KeyboardSpec().Keys)
	assert.Equal(t, "exclusive", s.Mode)
	assert.Equal(t, map[int]int{3: 1}, s.KeyOffsets)
	assert.Equal(t, map[int]calibration.Trim{7: {Right: 2}}, s.KeyTrims)
	assert.Equal(t, map[int][]int{12: {40, 41}}, s.KeyOverrides)
	assert.Equal(t, []strip.Joint{{Index: 90, CompensationMM: 1.5}}, s.Joints)
	// Unset overhang keeps the default.
	assert.Equal(t, Default().OverhangMM, s.OverhangMM)
}

func TestLoadJSON(t *testing.T) {
	s, err := Load(writeFile(t, "leds.json", jsonConfig))
	require.NoError(t, err)

	assert.Equal(t, "49", s.Keyboard)
	assert.Equal(t, 0.0, s.OverhangMM)
	assert.Equal(t, map[int]int{4: -2}, s.KeyOffsets)
	assert.Nil(t, s.KeyTrims)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "bad.yaml", "keyboard: \"88\"\nled_density: 0\ntotal_leds: 10\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	path = writeFile(t, "bad-key.yaml", "keyboard: \"88\"\nled_density: 60\ntotal_leds: 10\nend_led: 9\nkey_offsets:\n  first: 1\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "leds.ini", "x=1"))
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = Load(writeFile(t, "broken.json", "{"))
	assert.ErrorContains(t, err, "parse json config")
}

func TestSaveRoundTrip(t *testing.T) {
	snap := Default().WithMode(allocate.Shared)
	snap.GlobalOffset = -1
	snap.KeyOffsets = map[int]int{10: 2, 20: -1}
	snap.KeyTrims = map[int]calibration.Trim{7: {Left: 1, Right: 2}}
	snap.KeyOverrides = map[int][]int{0: {4, 5}}
	snap.Joints = []strip.Joint{{Index: 85, CompensationMM: 2.5}}

	for _, ext := range []string{"yaml", "toml", "json"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "leds."+ext)
			require.NoError(t, Save(path, snap))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, snap, got)
			assert.Equal(t, snap.Fingerprint(), got.Fingerprint())
		})
	}
}

func TestSaveDefaultOmitsEmptyMaps(t *testing.T) {
	data, err := Encode(Default(), "yaml")
	require.NoError(t, err)
	assert.NotContains(t, string(data), "key_offsets")
	assert.NotContains(t, string(data), "joints")

	_, err = Encode(Default(), "ini")
	assert.Error(t, err)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	s, err := Load(writeFile(t, "partial.yaml", "keyboard: 61\n"))
	require.NoError(t, err)

	want := Default()
	want.Keyboard = "61"
	assert.Equal(t, want, s)
}

func TestLoadExplicitZeroOverridesDefault(t *testing.T) {
	s, err := Load(writeFile(t, "zero.toml", "start_led = 0\nglobal_offset = 0\nbase_offset_mm = 0.0\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, s.StartLED)
	assert.Equal(t, Default().EndLED, s.EndLED)
	assert.Equal(t, Default().TotalLEDs, s.TotalLEDs)
}

func TestResolveRepairsFileFromEnv(t *testing.T) {
	path := writeFile(t, "leds.json", `{"keyboard": 88, "total_leds": 0}`)
	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalid)

	s, err := Resolve(path, MapLookup(map[string]string{EnvTotalLEDs: "300"}))
	require.NoError(t, err)
	assert.Equal(t, 300, s.TotalLEDs)
}
