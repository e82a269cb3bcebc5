package mapping

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piano-leds/internal/allocate"
	"piano-leds/internal/config"
	"piano-leds/internal/keyboard"
	"piano-leds/internal/quality"
	"piano-leds/internal/strip"
)

func quietService() *Service {
	return NewService(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func hasWarning(r quality.Report, substr string) bool {
	for _, w := range r.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func ledUnion(r *Result) map[int]bool {
	seen := make(map[int]bool)
	r.Mapping.Each(func(_ int, leds []int) {
		for _, l := range leds {
			seen[l] = true
		}
	})
	return seen
}

func TestDefaultFullKeyboard(t *testing.T) {
	res, err := quietService().Get(config.Default())
	require.NoError(t, err)

	assert.Equal(t, 88, res.Mapping.KeyCount())
	assert.Equal(t, 255, res.Mapping.TotalLEDs())
	for k := 0; k < 88; k++ {
		assert.NotEmpty(t, res.LEDsForKey(k), "key %d", k)
	}

	seen := ledUnion(res)
	assert.Len(t, seen, 246)
	for i := 4; i <= 249; i++ {
		assert.True(t, seen[i], "LED %d unassigned", i)
	}

	assert.GreaterOrEqual(t, res.Report.Score, 70)
	assert.Contains(t, []quality.Level{quality.Good, quality.Excellent}, res.Report.Level)
	assert.InDelta(t, 2.8, res.Report.LEDsPerKey.Avg, 0.05)
}

func TestUndersaturatedConfiguration(t *testing.T) {
	snap := config.Default().WithStrip(60, 36).WithRange(0, 35)

	res, err := quietService().Get(snap)
	require.NoError(t, err)

	assert.Less(t, res.Report.LEDsPerKey.Avg, 1.0)
	assert.True(t, hasWarning(res.Report, "undersaturated"), "warnings: %v", res.Report.Warnings)
	assert.Less(t, res.Report.Score, 50)
	assert.Equal(t, quality.Poor, res.Report.Level)
}

func TestGlobalOffsetClampsAtCeiling(t *testing.T) {
	snap := config.Default().WithRange(4, 254)
	snap.GlobalOffset = 4

	res, err := quietService().Get(snap)
	require.NoError(t, err)

	assert.Empty(t, res.Mapping.OutOfBounds())
	last := res.LEDsForKey(87)
	require.NotEmpty(t, last)
	assert.Equal(t, 254, last[len(last)-1])
	res.Mapping.Each(func(k int, leds []int) {
		for i := 1; i < len(leds); i++ {
			assert.Less(t, leds[i-1], leds[i], "key %d not strictly ascending", k)
		}
	})
}

func TestSharedModeRescuesEveryLED(t *testing.T) {
	snap := config.Default().WithMode(allocate.Shared)

	res, err := quietService().Get(snap)
	require.NoError(t, err)

	seen := ledUnion(res)
	for i := 4; i <= 249; i++ {
		assert.True(t, seen[i], "LED %d unassigned", i)
	}
	assert.Equal(t, "shared", res.Report.Mode)
	assert.Greater(t, res.Report.SharedLEDs, 0)
}

func TestJointShiftsMapping(t *testing.T) {
	plain := config.Default()
	jointed := config.Default()
	jointed.Joints = []strip.Joint{{Index: 85, CompensationMM: 2.5}}

	svc := quietService()
	a, err := svc.Get(plain)
	require.NoError(t, err)
	b, err := svc.Get(jointed)
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, int64(2), svc.Computations())
	assert.Empty(t, b.Mapping.OutOfBounds())
}

func TestOverridesApplied(t *testing.T) {
	snap := config.Default()
	snap.KeyOverrides = map[int][]int{0: {9, 7, 7}}
	snap.KeyOffsets = map[int]int{200: 1}

	res, err := quietService().Get(snap)
	require.NoError(t, err)

	assert.Equal(t, []int{7, 9}, res.LEDsForKey(0))
	assert.True(t, hasWarning(res.Report, "key 200"), "warnings: %v", res.Report.Warnings)
}

func TestLEDsForNote(t *testing.T) {
	res, err := quietService().Get(config.Default())
	require.NoError(t, err)

	leds, ok := res.LEDsForNote(21)
	require.True(t, ok)
	assert.Equal(t, res.LEDsForKey(0), leds)

	_, ok = res.LEDsForNote(20)
	assert.False(t, ok)
	_, ok = res.LEDsForNote(109)
	assert.False(t, ok)
}

func TestGetIsIdempotent(t *testing.T) {
	svc := quietService()
	snap := config.Default()

	first, err := svc.Get(snap)
	require.NoError(t, err)
	second, err := svc.Get(snap.Clone())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), svc.Computations())

	fresh, err := Compute(snap, nil)
	require.NoError(t, err)
	assert.True(t, first.Mapping.Equal(fresh.Mapping))
}

func TestInvalidateRecomputes(t *testing.T) {
	svc := quietService()
	snap := config.Default()

	first, err := svc.Get(snap)
	require.NoError(t, err)

	svc.Invalidate()
	_, ok := svc.Cached()
	assert.False(t, ok)

	second, err := svc.Get(snap)
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.True(t, first.Mapping.Equal(second.Mapping))
	assert.Equal(t, int64(2), svc.Computations())
}

func TestInvalidConfigKeepsCache(t *testing.T) {
	svc := quietService()
	good, err := svc.Get(config.Default())
	require.NoError(t, err)

	bad := config.Default()
	bad.Keyboard = "87"
	_, err = svc.Get(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalid))

	cached, ok := svc.Cached()
	require.True(t, ok)
	assert.Equal(t, good, cached)
	assert.Equal(t, int64(1), svc.Computations())
}

func TestConcurrentGet(t *testing.T) {
	svc := quietService()
	snap := config.Default()

	const workers = 16
	results := make([]*Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Get(snap)
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.NotNil(t, res, "worker %d", i)
		assert.True(t, results[0].Mapping.Equal(res.Mapping), "worker %d", i)
	}
	assert.GreaterOrEqual(t, svc.Computations(), int64(1))
}

func TestNonFiniteConfigRejected(t *testing.T) {
	svc := quietService()
	good, err := svc.Get(config.Default())
	require.NoError(t, err)

	density := config.Default()
	density.LEDDensity = math.NaN()
	_, err = svc.Get(density)
	assert.ErrorIs(t, err, config.ErrInvalid)

	overhang := config.Default()
	overhang.OverhangMM = math.Inf(1)
	_, err = svc.Get(overhang)
	assert.ErrorIs(t, err, config.ErrInvalid)

	cached, ok := svc.Cached()
	require.True(t, ok)
	assert.Equal(t, good.Fingerprint, cached.Fingerprint)
	assert.Equal(t, int64(1), svc.Computations())
}

func TestResultsAreIndependentCopies(t *testing.T) {
	svc := quietService()
	snap := config.Default().WithStrip(60, 36).WithRange(0, 35)

	first, err := svc.Get(snap)
	require.NoError(t, err)
	require.NotEmpty(t, first.Report.Warnings)
	require.NotEmpty(t, first.Report.EmptyKeys)
	want := append([]string(nil), first.Report.Warnings...)

	first.Report.Warnings[0] = "edited"
	first.Report.Warn("extra")
	first.Report.EmptyKeys[0] = -1
	first.Report.Recommendations = nil

	second, err := svc.Get(snap)
	require.NoError(t, err)
	assert.Equal(t, want, second.Report.Warnings)
	assert.NotEqual(t, -1, second.Report.EmptyKeys[0])
	assert.NotEmpty(t, second.Report.Recommendations)

	cached, ok := svc.Cached()
	require.True(t, ok)
	assert.Equal(t, want, cached.Report.Warnings)
	assert.Equal(t, int64(1), svc.Computations())
}

func TestComputeRejectsInvalidKeyboardSpec(t *testing.T) {
	// 120 keys from A0 run past MIDI note 127.
	keyboard.Register(keyboard.Spec{Name: "120-key", Keys: 120, LowestNote: 21})
	snap := config.Default()
	snap.Keyboard = "120"
	require.NoError(t, snap.Validate())

	_, err := Compute(snap, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyboard")
}

func TestComputeAcceptsDefaultedJointCompensation(t *testing.T) {
	snap := config.Default()
	snap.Joints = []strip.Joint{{Index: 100}}

	res, err := Compute(snap, nil)
	require.NoError(t, err)

	explicit := config.Default()
	explicit.Joints = []strip.Joint{{Index: 100, CompensationMM: strip.DefaultJointCompensationMM}}
	want, err := Compute(explicit, nil)
	require.NoError(t, err)
	assert.True(t, want.Mapping.Equal(res.Mapping))
}
