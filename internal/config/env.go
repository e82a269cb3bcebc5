package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override individual snapshot fields.
const (
	EnvKeyboard     = "PIANO_LEDS_KEYBOARD"
	EnvMode         = "PIANO_LEDS_MODE"
	EnvStartLED     = "PIANO_LEDS_START_LED"
	EnvEndLED       = "PIANO_LEDS_END_LED"
	EnvTotalLEDs    = "PIANO_LEDS_TOTAL_LEDS"
	EnvDensity      = "PIANO_LEDS_DENSITY"
	EnvGlobalOffset = "PIANO_LEDS_GLOBAL_OFFSET"
)

// ReadEnvFiles reads KEY=VALUE pairs from .env files. Missing files are
// skipped; later files win.
func ReadEnvFiles(paths ...string) (map[string]string, error) {
	env := make(map[string]string)
	for _, p := range paths {
		values, err := godotenv.Read(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		for k, v := range values {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv returns a copy of s with fields overridden from env. lookup
// behaves like os.LookupEnv.
func ApplyEnv(s Snapshot, lookup func(string) (string, bool)) (Snapshot, error) {
	out := s.Clone()

	if v, ok := lookup(EnvKeyboard); ok {
		out.Keyboard = v
	}
	if v, ok := lookup(EnvMode); ok {
		out.Mode = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvStartLED, &out.StartLED},
		{EnvEndLED, &out.EndLED},
		{EnvTotalLEDs, &out.TotalLEDs},
		{EnvGlobalOffset, &out.GlobalOffset},
	}
	for _, e := range ints {
		v, ok := lookup(e.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("%s: %w", e.name, err)
		}
		*e.dst = n
	}

	if v, ok := lookup(EnvDensity); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return s, fmt.Errorf("%s: %w", EnvDensity, err)
		}
		out.LEDDensity = f
	}
	return out, nil
}

// MapLookup adapts a map to the lookup signature used by ApplyEnv.
func MapLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

// ChainLookup consults each lookup in order and returns the first hit.
func ChainLookup(lookups ...func(string) (string, bool)) func(string) (string, bool) {
	return func(k string) (string, bool) {
		for _, l := range lookups {
			if v, ok := l(k); ok {
				return v, true
			}
		}
		return "", false
	}
}

// Resolve builds the effective snapshot: the file at path (or Default when
// path is empty), then environment overrides from lookup. The result is
// validated.
func Resolve(path string, lookup func(string) (string, bool)) (Snapshot, error) {
	snap := Default()
	if path != "" {
		var err error
		if snap, err = Read(path); err != nil {
			return Snapshot{}, err
		}
	}
	if lookup != nil {
		var err error
		if snap, err = ApplyEnv(snap, lookup); err != nil {
			return Snapshot{}, err
		}
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
