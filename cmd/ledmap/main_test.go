package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piano-leds/internal/config"
)

func runCmd(t *testing.T, env map[string]string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"-env", filepath.Join(t.TempDir(), "none.env")}, args...)
	code := run(args, &stdout, &stderr, config.MapLookup(env))
	return code, stdout.String(), stderr.String()
}

func TestTableOutput(t *testing.T) {
	code, out, errOut := runCmd(t, nil)
	require.Equal(t, 0, code, errOut)

	assert.Contains(t, out, "Keyboard: 88-key (88 keys, exclusive mode)")
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "NAME")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "87 "), lines[len(lines)-1])
}

func TestJSONOutput(t *testing.T) {
	code, out, errOut := runCmd(t, map[string]string{config.EnvKeyboard: "61"}, "-json")
	require.Equal(t, 0, code, errOut)

	var got struct {
		Mapping struct {
			TotalLEDs int     `json:"total_leds"`
			Keys      [][]int `json:"keys"`
		} `json:"mapping"`
		Report struct {
			Score int `json:"score"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 255, got.Mapping.TotalLEDs)
	assert.Len(t, got.Mapping.Keys, 61)
}

func TestInvalidConfiguration(t *testing.T) {
	code, _, errOut := runCmd(t, map[string]string{config.EnvMode: "exclusiv"})
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "exclusive")
}

func TestProfileRoundTrip(t *testing.T) {
	db := filepath.Join(t.TempDir(), "profiles.db")

	code, _, errOut := runCmd(t, map[string]string{config.EnvGlobalOffset: "2"}, "-profile-db", db, "-save-profile", "stage")
	require.Equal(t, 0, code, errOut)

	code, out, errOut := runCmd(t, nil, "-profile-db", db, "-list-profiles")
	require.Equal(t, 0, code, errOut)
	assert.True(t, strings.HasPrefix(out, "stage"), out)

	code, out, errOut = runCmd(t, nil, "-profile-db", db, "-profile", "stage", "-json")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"fingerprint"`)

	code, _, _ = runCmd(t, nil, "-profile-db", db, "-profile", "missing")
	assert.Equal(t, 1, code)
}

func TestProfileFlagsNeedDatabase(t *testing.T) {
	code, _, errOut := runCmd(t, nil, "-profile", "stage")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "-profile-db")
}

func TestConfigFileAndEnvFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "leds.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("keyboard = 49\nled_density = 100\ntotal_leds = 150\nstart_led = 0\nend_led = 120\n"), 0o644))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PIANO_LEDS_MODE=shared\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfg, "-env", envFile}, &stdout, &stderr, config.MapLookup(nil))
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "Keyboard: 49-key (49 keys, shared mode)")
}

func TestVersion(t *testing.T) {
	code, out, _ := runCmd(t, nil, "-version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "ledmap ")
}

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effective.toml")
	code, _, errOut := runCmd(t, map[string]string{config.EnvMode: "shared"}, "-write-config", path)
	require.Equal(t, 0, code, errOut)

	snap, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "shared", snap.Mode)
}
