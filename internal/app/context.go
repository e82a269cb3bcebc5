// Package app owns the running mapping state: the active configuration
// snapshot, the canonical mapping computed from it, and change events.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"piano-leds/internal/calibration"
	"piano-leds/internal/config"
	"piano-leds/internal/mapping"
)

// EventType identifies different application events.
type EventType int

const (
	// EventMappingChanged fires with the new *mapping.Result after a
	// configuration change produced a different mapping.
	EventMappingChanged EventType = iota
	// EventConfigRejected fires with the error when a new configuration
	// failed validation. The previous mapping stays active.
	EventConfigRejected
)

func (e EventType) String() string {
	switch e {
	case EventMappingChanged:
		return "mapping-changed"
	case EventConfigRejected:
		return "config-rejected"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Context is the explicitly owned replacement for process-wide mapping
// state. Create one per strip; Update swaps the configuration atomically
// with respect to readers.
type Context struct {
	mu       sync.RWMutex
	snapshot config.Snapshot
	result   *mapping.Result

	service   *mapping.Service
	logger    *slog.Logger
	transform func(config.Snapshot) (config.Snapshot, error)

	watchMu sync.Mutex
	watcher *config.Watcher

	listenerMu sync.RWMutex
	listeners  map[EventType][]EventListener
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		c.logger = l
	}
}

// WithService shares a mapping service between contexts.
func WithService(s *mapping.Service) Option {
	return func(c *Context) {
		c.service = s
	}
}

// WithReloadTransform sets a function applied to every snapshot loaded by
// the file watcher before it is used, such as environment overrides.
func WithReloadTransform(fn func(config.Snapshot) (config.Snapshot, error)) Option {
	return func(c *Context) {
		c.transform = fn
	}
}

// New creates a context and computes the mapping for snap.
func New(snap config.Snapshot, opts ...Option) (*Context, error) {
	c := &Context{
		logger:    slog.Default(),
		listeners: make(map[EventType][]EventListener),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.service == nil {
		c.service = mapping.NewService(mapping.WithLogger(c.logger))
	}

	res, err := c.service.Get(snap)
	if err != nil {
		return nil, err
	}
	c.snapshot = snap.Clone()
	c.result = res
	return c, nil
}

// On registers an event listener for the specified event type.
func (c *Context) On(event EventType, listener EventListener) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listeners[event] = append(c.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (c *Context) Emit(event EventType, data interface{}) {
	c.listenerMu.RLock()
	listeners := c.listeners[event]
	c.listenerMu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Snapshot returns a copy of the active configuration.
func (c *Context) Snapshot() config.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.Clone()
}

// Result returns a copy of the active mapping and its quality report.
func (c *Context) Result() *mapping.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result.Clone()
}

func (c *Context) current() *mapping.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}

// Mapping returns the active canonical mapping.
func (c *Context) Mapping() calibration.Mapping {
	return c.current().Mapping
}

// LEDsForKey returns the LEDs lit for key index k.
func (c *Context) LEDsForKey(k int) []int {
	return c.current().LEDsForKey(k)
}

// LEDsForNote returns the LEDs lit for a MIDI note.
func (c *Context) LEDsForNote(note uint8) ([]int, bool) {
	return c.current().LEDsForNote(note)
}

// Update replaces the configuration. An invalid snapshot is rejected and
// the previous mapping stays active; the error is also emitted as
// EventConfigRejected.
func (c *Context) Update(snap config.Snapshot) error {
	res, err := c.service.Get(snap)
	if err != nil {
		c.logger.Warn("app: configuration rejected", "err", err)
		c.Emit(EventConfigRejected, err)
		return err
	}

	c.mu.Lock()
	changed := c.result == nil || c.result.Fingerprint != res.Fingerprint
	c.snapshot = snap.Clone()
	c.result = res
	c.mu.Unlock()

	if changed {
		c.logger.Info("app: mapping changed",
			"fingerprint", res.Fingerprint[:12],
			"score", res.Report.Score,
		)
		c.Emit(EventMappingChanged, res.Clone())
	}
	return nil
}

// Recompute drops the cached mapping and rebuilds it from the active
// configuration.
func (c *Context) Recompute() error {
	c.service.Invalidate()
	snap := c.Snapshot()
	res, err := c.service.Get(snap)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.result = res
	c.mu.Unlock()
	return nil
}

// WatchFile reloads the configuration whenever the file at path changes.
// Only one file can be watched at a time.
func (c *Context) WatchFile(path string, debounce time.Duration) error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.watcher != nil {
		return errors.New("app: already watching " + c.watcher.Path())
	}

	w, err := config.NewWatcher(path, debounce, c.logger)
	if err != nil {
		return err
	}
	w.OnChange(func(snap config.Snapshot) {
		if c.transform != nil {
			out, err := c.transform(snap)
			if err != nil {
				c.logger.Warn("app: configuration rejected", "err", err)
				c.Emit(EventConfigRejected, err)
				return
			}
			snap = out
		}
		_ = c.Update(snap)
	})
	w.OnError(func(err error) {
		c.Emit(EventConfigRejected, err)
	})
	w.Start()
	c.watcher = w
	return nil
}

// Close stops any file watcher.
func (c *Context) Close() error {
	c.watchMu.Lock()
	w := c.watcher
	c.watcher = nil
	c.watchMu.Unlock()

	if w == nil {
		return nil
	}
	err := w.Stop()
	<-w.Done()
	return err
}
