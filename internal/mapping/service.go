// Package mapping orchestrates the allocation pipeline and caches the
// canonical key to LED mapping for a configuration snapshot.
package mapping

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"piano-leds/internal/allocate"
	"piano-leds/internal/calibration"
	"piano-leds/internal/config"
	"piano-leds/internal/keyboard"
	"piano-leds/internal/quality"
	"piano-leds/internal/strip"
)

// Result is the canonical mapping together with its quality report. The
// service hands every caller its own copy, so a Result may be modified
// freely without affecting the cache.
type Result struct {
	Fingerprint string               `json:"fingerprint"`
	Keyboard    keyboard.Spec        `json:"keyboard"`
	Mapping     calibration.Mapping  `json:"mapping"`
	Report      quality.Report       `json:"report"`
	Rescue      allocate.RescueStats `json:"rescue"`
}

// Clone returns a copy that shares no mutable state with r.
func (r *Result) Clone() *Result {
	out := *r
	out.Report = r.Report.Clone()
	return &out
}

// LEDsForKey returns the LEDs lit for key index k.
func (r *Result) LEDsForKey(k int) []int {
	return r.Mapping.LEDs(k)
}

// LEDsForNote returns the LEDs lit for a MIDI note, or false if the note is
// not on the keyboard.
func (r *Result) LEDsForNote(note uint8) ([]int, bool) {
	k, ok := r.Keyboard.KeyIndex(note)
	if !ok {
		return nil, false
	}
	return r.Mapping.LEDs(k), true
}

// cacheEntry is swapped in as a whole; it is never modified after creation.
type cacheEntry struct {
	fingerprint string
	result      *Result
}

// Service computes canonical mappings and caches the most recent one.
// It is safe for concurrent use.
type Service struct {
	cache  atomic.Pointer[cacheEntry]
	logger *slog.Logger

	computations atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a mapping service with an empty cache.
func NewService(opts ...Option) *Service {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the mapping for snap, computing it if the cached mapping was
// built from a different snapshot. A configuration error leaves the cache
// untouched.
func (s *Service) Get(snap config.Snapshot) (*Result, error) {
	fp := snap.Fingerprint()
	if e := s.cache.Load(); e != nil && e.fingerprint == fp {
		return e.result.Clone(), nil
	}

	result, err := Compute(snap, s.logger)
	if err != nil {
		return nil, err
	}
	s.computations.Add(1)
	s.cache.Store(&cacheEntry{fingerprint: fp, result: result})

	s.logger.Info("mapping: recomputed",
		"fingerprint", fp[:12],
		"keys", result.Mapping.KeyCount(),
		"score", result.Report.Score,
		"level", result.Report.Level,
	)
	return result.Clone(), nil
}

// Cached returns the cached result, if any.
func (s *Service) Cached() (*Result, bool) {
	e := s.cache.Load()
	if e == nil {
		return nil, false
	}
	return e.result.Clone(), true
}

// Invalidate drops the cached mapping so the next Get recomputes.
func (s *Service) Invalidate() {
	s.cache.Store(nil)
	s.logger.Debug("mapping: cache invalidated")
}

// Computations returns how many mappings have been computed.
func (s *Service) Computations() int64 {
	return s.computations.Load()
}

// Compute runs the full pipeline for a snapshot without caching.
func Compute(snap config.Snapshot, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	kb := snap.KeyboardSpec()
	if err := kb.Validate(); err != nil {
		return nil, fmt.Errorf("keyboard: %w", err)
	}
	keys := keyboard.ComputeGeometries(kb, snap.Dimensions())

	stripSpec := snap.StripSpec()
	if err := stripSpec.Validate(); err != nil {
		return nil, fmt.Errorf("LED strip: %w", err)
	}
	layout := strip.ComputePlacements(stripSpec, snap.StartLED, snap.EndLED)
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("LED layout: %w", err)
	}

	mode := snap.AllocationMode()
	raw := allocate.Allocate(keys, layout, snap.OverhangMM, mode)
	report := quality.Analyze(raw, keys, layout)

	rescued := allocate.RescueOrphans(raw, keys, layout)
	if rescued.Rescue.Rescued > 0 {
		logger.Debug("mapping: orphans rescued",
			"rescued", rescued.Rescue.Rescued,
			"from_previous", rescued.Rescue.FromPrevious,
			"from_next", rescued.Rescue.FromNext,
		)
	}

	overrides := snap.Overrides()
	for _, k := range overrides.OutOfRange(kb.Keys) {
		report.Warn("calibration entry for key %d ignored: keyboard has %d keys", k, kb.Keys)
	}
	if snap.EndLED >= snap.TotalLEDs {
		report.Warn("LED range ends at %d but the strip has %d LEDs; indices are clamped to %d",
			snap.EndLED, snap.TotalLEDs, snap.TotalLEDs-1)
	}

	m := calibration.Apply(rescued, overrides, snap.TotalLEDs)
	m = enforceBounds(m, logger)

	return &Result{
		Fingerprint: snap.Fingerprint(),
		Keyboard:    kb,
		Mapping:     m,
		Report:      report,
		Rescue:      rescued.Rescue,
	}, nil
}

// enforceBounds re-clamps a mapping that escaped [0, total-1]. That can only
// happen through a defect in the adjuster, so it is logged, never returned.
func enforceBounds(m calibration.Mapping, logger *slog.Logger) calibration.Mapping {
	bad := m.OutOfBounds()
	if len(bad) == 0 {
		return m
	}
	logger.Error("mapping: LED index escaped bounds; re-clamping",
		"violations", len(bad),
		"first_key", bad[0][0],
		"first_led", bad[0][1],
		"total_leds", m.TotalLEDs(),
	)
	return m.Clamped()
}
