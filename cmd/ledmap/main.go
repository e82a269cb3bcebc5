// Command ledmap computes the key to LED mapping for a configuration and
// prints the quality report and mapping table.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"gitlab.com/gomidi/midi/v2"

	"piano-leds/internal/config"
	"piano-leds/internal/mapping"
	"piano-leds/internal/profile"
	"piano-leds/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}

// initLogger builds the command's logger.
func initLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}))
}

func run(args []string, stdout, stderr io.Writer, getenv func(string) (string, bool)) int {
	fs := flag.NewFlagSet("ledmap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Configuration file (YAML, TOML or JSON)")
	envFiles := fs.String("env", ".env", "Comma-separated .env files with PIANO_LEDS_* overrides")
	dbPath := fs.String("profile-db", "", "Profile database (SQLite)")
	loadName := fs.String("profile", "", "Load the named profile instead of -config")
	saveName := fs.String("save-profile", "", "Save the effective configuration under this name")
	writeConfig := fs.String("write-config", "", "Write the effective configuration to this file")
	listProfiles := fs.Bool("list-profiles", false, "List stored profiles and exit")
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")
	debug := fs.Bool("debug", false, "Enable debug logging")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.String("ledmap"))
		return 0
	}

	logger := initLogger(stderr, *debug)
	ctx := context.Background()

	var store *profile.Store
	if *dbPath != "" {
		var err error
		if store, err = profile.Open(*dbPath); err != nil {
			logger.Error("ledmap: profile database", "err", err)
			return 1
		}
		defer store.Close()
	} else if *loadName != "" || *saveName != "" || *listProfiles {
		fmt.Fprintln(stderr, "ledmap: -profile, -save-profile and -list-profiles need -profile-db")
		return 2
	}

	if *listProfiles {
		infos, err := store.List(ctx)
		if err != nil {
			logger.Error("ledmap: list profiles", "err", err)
			return 1
		}
		for _, info := range infos {
			fmt.Fprintf(stdout, "%-20s %s  %s\n", info.Name, info.Fingerprint[:12], info.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return 0
	}

	env, err := config.ReadEnvFiles(splitList(*envFiles)...)
	if err != nil {
		logger.Error("ledmap: env files", "err", err)
		return 1
	}
	// Process environment wins over .env files.
	lookup := config.ChainLookup(getenv, config.MapLookup(env))

	var snap config.Snapshot
	if *loadName != "" {
		if snap, err = store.Load(ctx, *loadName); err == nil {
			snap, err = config.ApplyEnv(snap, lookup)
		}
	} else {
		snap, err = config.Resolve(*configPath, lookup)
	}
	if err != nil {
		logger.Error("ledmap: configuration", "err", err)
		return 1
	}

	res, err := mapping.Compute(snap, logger)
	if err != nil {
		logger.Error("ledmap: mapping", "err", err)
		return 1
	}

	if *saveName != "" {
		if err := store.Save(ctx, *saveName, snap); err != nil {
			logger.Error("ledmap: save profile", "err", err)
			return 1
		}
		logger.Info("ledmap: profile saved", "name", *saveName, "fingerprint", res.Fingerprint[:12])
	}

	if *writeConfig != "" {
		if err := config.Save(*writeConfig, snap); err != nil {
			logger.Error("ledmap: write config", "err", err)
			return 1
		}
		logger.Info("ledmap: configuration written", "path", *writeConfig)
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			logger.Error("ledmap: encode", "err", err)
			return 1
		}
		return 0
	}
	printReport(stdout, res)
	printTable(stdout, res)
	return 0
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

func printReport(w io.Writer, res *mapping.Result) {
	r := res.Report
	fmt.Fprintf(w, "Keyboard: %s (%d keys, %s mode)\n", res.Keyboard.Name, r.KeyCount, r.Mode)
	fmt.Fprintf(w, "Quality:  %d/100 (%s)\n", r.Score, r.Level)
	fmt.Fprintf(w, "LEDs:     %d usable, %d assigned, %d shared\n", r.UsableLEDs, r.UniqueLEDs, r.SharedLEDs)
	fmt.Fprintf(w, "Per key:  min %d, max %d, avg %.2f\n", r.LEDsPerKey.Min, r.LEDsPerKey.Max, r.LEDsPerKey.Avg)
	fmt.Fprintf(w, "Coverage: %.1f%% of keyboard width, efficiency %.2f\n", r.CoverageRatio*100, r.Efficiency)
	if res.Rescue.Rescued > 0 {
		fmt.Fprintf(w, "Rescued:  %d orphan LEDs (%d to lower key, %d to upper key)\n",
			res.Rescue.Rescued, res.Rescue.FromPrevious, res.Rescue.FromNext)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  hint:    %s\n", rec)
	}
	fmt.Fprintln(w)
}

func printTable(w io.Writer, res *mapping.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNOTE\tNAME\tLEDS")
	res.Mapping.Each(func(k int, leds []int) {
		note := int(res.Keyboard.LowestNote) + k
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", k, note, midi.Note(uint8(note)).String(), formatLEDs(leds))
	})
	tw.Flush()
}

func formatLEDs(leds []int) string {
	if len(leds) == 0 {
		return "-"
	}
	parts := make([]string, len(leds))
	for i, l := range leds {
		parts[i] = fmt.Sprint(l)
	}
	return strings.Join(parts, ",")
}
