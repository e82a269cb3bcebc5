package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o644))

	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	changes := make(chan Snapshot, 4)
	w.OnChange(func(s Snapshot) { changes <- s })
	w.Start()

	updated := strings.Replace(yamlConfig, "global_offset: 1", "global_offset: 7", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case s := <-changes:
		assert.Equal(t, 7, s.GlobalOffset)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}
}

func TestWatcherReportsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o644))

	w, err := NewWatcher(path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	errs := make(chan error, 4)
	w.OnError(func(err error) { errs <- err })
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("keyboard: \"64\"\nled_density: 60\ntotal_leds: 10\n"), 0o644))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrInvalid)
	case <-time.After(5 * time.Second):
		t.Fatal("no error after invalid config change")
	}
}

func TestWatcherStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o644))

	w, err := NewWatcher(path, time.Millisecond, nil)
	require.NoError(t, err)
	w.Start()

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watch loop did not exit")
	}
	assert.Equal(t, path, w.Path())
}
