// Package main provides the entry point for the piano-leds daemon. It keeps
// the key to LED mapping current while the configuration file is edited.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"piano-leds/internal/app"
	"piano-leds/internal/config"
	"piano-leds/internal/mapping"
	"piano-leds/internal/version"
)

const appTitle = "piano-leds"

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug, asJSON bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: debug}
	if asJSON {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	slog.SetDefault(logger)
}

func main() {
	configPath := flag.String("config", "", "Configuration file (YAML, TOML or JSON); built-in defaults when empty")
	envFiles := flag.String("env", ".env", "Comma-separated .env files with PIANO_LEDS_* overrides")
	debounce := flag.Duration("debounce", 200*time.Millisecond, "Delay before reloading an edited configuration")
	debug := flag.Bool("debug", false, "Enable debug logging")
	jsonLogs := flag.Bool("json-logs", false, "Log as JSON")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String(appTitle))
		return
	}
	initLogger(*debug, *jsonLogs)
	logger.Info("starting", "app", appTitle, "version", version.Version, "commit", version.GitCommit)

	var files []string
	for _, f := range strings.Split(*envFiles, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	env, err := config.ReadEnvFiles(files...)
	if err != nil {
		logger.Error("env files", "err", err)
		os.Exit(1)
	}
	lookup := config.ChainLookup(os.LookupEnv, config.MapLookup(env))

	snap, err := config.Resolve(*configPath, lookup)
	if err != nil {
		logger.Error("configuration", "path", *configPath, "err", err)
		os.Exit(1)
	}

	ctx, err := app.New(snap,
		app.WithLogger(logger),
		app.WithReloadTransform(func(s config.Snapshot) (config.Snapshot, error) {
			return config.ApplyEnv(s, lookup)
		}),
	)
	if err != nil {
		logger.Error("mapping", "err", err)
		os.Exit(1)
	}
	logReport(ctx.Result())

	ctx.On(app.EventMappingChanged, func(data interface{}) {
		logReport(data.(*mapping.Result))
	})
	ctx.On(app.EventConfigRejected, func(data interface{}) {
		logger.Warn("keeping previous mapping", "err", data)
	})

	if *configPath == "" {
		logger.Info("using built-in defaults")
	} else {
		if err := ctx.WatchFile(*configPath, *debounce); err != nil {
			logger.Error("watch", "path", *configPath, "err", err)
			os.Exit(1)
		}
		logger.Info("watching configuration", "path", *configPath)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("shutting down")
	if err := ctx.Close(); err != nil {
		logger.Warn("close watcher", "err", err)
	}
}

func logReport(res *mapping.Result) {
	r := res.Report
	logger.Info("mapping ready",
		"keyboard", res.Keyboard.Name,
		"mode", r.Mode,
		"score", r.Score,
		"level", r.Level,
		"leds_per_key_avg", fmt.Sprintf("%.2f", r.LEDsPerKey.Avg),
		"shared_leds", r.SharedLEDs,
		"rescued", res.Rescue.Rescued,
	)
	for _, w := range r.Warnings {
		logger.Warn("quality", "warning", w)
	}
}
