// Command ledtest lights keys on a physical LED strip so the mapping can be
// checked against the keyboard by eye.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"piano-leds/internal/config"
	"piano-leds/internal/hardware"
	"piano-leds/internal/mapping"
	"piano-leds/internal/version"
	"piano-leds/pkg/colorutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	port      string
	baud      int
	config    string
	envFiles  string
	key       int
	note      int
	sweep     bool
	interval  time.Duration
	color     string
	dryRun    bool
	listPorts bool
	debug     bool
}

// hexWriter prints every frame as hex instead of sending it.
type hexWriter struct{ w io.Writer }

func (h hexWriter) Write(p []byte) (int, error) {
	if _, err := fmt.Fprintln(h.w, hex.EncodeToString(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("ledtest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.port, "port", "", "Serial device of the LED controller")
	fs.IntVar(&o.baud, "baud", 115200, "Serial baud rate")
	fs.StringVar(&o.config, "config", "", "Configuration file (YAML, TOML or JSON)")
	fs.StringVar(&o.envFiles, "env", ".env", "Comma-separated .env files with PIANO_LEDS_* overrides")
	fs.IntVar(&o.key, "key", -1, "Light this key index")
	fs.IntVar(&o.note, "note", -1, "Light this MIDI note")
	fs.BoolVar(&o.sweep, "sweep", false, "Walk every key from low to high")
	fs.DurationVar(&o.interval, "interval", 250*time.Millisecond, "Time per key during -sweep")
	fs.StringVar(&o.color, "color", "#00ffff", "LED color as #rrggbb or a name")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Print frames as hex instead of opening -port")
	fs.BoolVar(&o.listPorts, "list-ports", false, "List serial ports and exit")
	fs.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String("ledtest"))
		return 0
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if o.listPorts {
		ports, err := hardware.Ports()
		if err != nil {
			logger.Error("ledtest: list ports", "err", err)
			return 1
		}
		for _, p := range ports {
			fmt.Fprintln(stdout, p)
		}
		return 0
	}

	modes := 0
	for _, set := range []bool{o.key >= 0, o.note >= 0, o.sweep} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(stderr, "ledtest: give exactly one of -key, -note or -sweep")
		return 2
	}

	col, err := colorutil.Parse(o.color)
	if err != nil {
		fmt.Fprintf(stderr, "ledtest: %v\n", err)
		return 2
	}

	env, err := config.ReadEnvFiles(splitList(o.envFiles)...)
	if err != nil {
		logger.Error("ledtest: env files", "err", err)
		return 1
	}
	snap, err := config.Resolve(o.config, config.ChainLookup(os.LookupEnv, config.MapLookup(env)))
	if err != nil {
		logger.Error("ledtest: configuration", "err", err)
		return 1
	}
	res, err := mapping.Compute(snap, logger)
	if err != nil {
		logger.Error("ledtest: mapping", "err", err)
		return 1
	}

	var w io.Writer
	if o.dryRun {
		w = hexWriter{stdout}
	} else {
		if o.port == "" {
			fmt.Fprintln(stderr, "ledtest: -port is required unless -dry-run is set")
			return 2
		}
		p, err := hardware.OpenSerial(o.port, o.baud, logger)
		if err != nil {
			return 1
		}
		defer p.Close()
		w = p
	}
	ctrl := hardware.NewController(w, logger)

	switch {
	case o.sweep:
		err = sweep(ctx, ctrl, res, col, o.interval, logger)
	case o.note >= 0:
		leds, ok := res.LEDsForNote(uint8(min(o.note, 255)))
		if !ok || o.note > 127 {
			fmt.Fprintf(stderr, "ledtest: note %d is not on the %s keyboard\n", o.note, res.Keyboard.Name)
			return 2
		}
		err = ctrl.Light(col, leds)
	default:
		if o.key >= res.Mapping.KeyCount() {
			fmt.Fprintf(stderr, "ledtest: key %d is not on the %s keyboard\n", o.key, res.Keyboard.Name)
			return 2
		}
		leds := res.LEDsForKey(o.key)
		logger.Info("ledtest: lighting key", "key", o.key, "leds", leds, "color", colorutil.Hex(col))
		err = ctrl.Light(col, leds)
	}
	if err != nil {
		logger.Error("ledtest: send", "err", err)
		return 1
	}
	return 0
}

// sweep lights each key in turn, paced by a limiter, and clears the strip
// when done or interrupted.
func sweep(ctx context.Context, ctrl *hardware.Controller, res *mapping.Result, col color.RGBA, interval time.Duration, logger *slog.Logger) error {
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	defer ctrl.Clear()

	for k := 0; k < res.Mapping.KeyCount(); k++ {
		if err := limiter.Wait(ctx); err != nil {
			logger.Info("ledtest: sweep interrupted", "key", k)
			return nil
		}
		leds := res.LEDsForKey(k)
		logger.Debug("ledtest: sweep", "key", k, "leds", leds)
		if err := ctrl.Light(col, leds); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
