package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"scriptrec/internal/config"
	"scriptrec/internal/event"
	"scriptrec/internal/eventlog"
)

func (a *app) cmdValidate(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(a.stderr, "Usage: scriptrec validate <events-file>")
		return 1
	}
	path := args[0]

	evlog, err := eventlog.ReadFile(path)
	if err != nil {
		var lineErr *eventlog.LineError
		if errors.As(err, &lineErr) {
			fmt.Fprintf(a.stderr, "Invalid at line %d: %q\n", lineErr.Line, lineErr.Text)
		}
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	first, last := evlog.Span()
	fmt.Fprintf(a.stdout, "=== Event log: %s ===\n", filepath.Base(path))
	fmt.Fprintf(a.stdout, "Events:   %d\n", len(evlog.Events))
	fmt.Fprintf(a.stdout, "Duration: %.3fs\n", float64(last-first)/1000)

	counts := evlog.Counts()
	kinds := make([]event.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		fmt.Fprintf(a.stdout, "  %-15s %d\n", k, counts[k])
	}

	for _, s := range evlog.Skipped {
		fmt.Fprintf(a.stdout, "Skipped line %d: %s\n", s.Line, s.Reason)
	}
	return 0
}

func (a *app) cmdConfig(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(a.stderr, "Usage: scriptrec config init|show")
		return 1
	}

	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("config init", flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		force := fs.Bool("force", false, "Overwrite an existing config file")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := os.Stat(a.configPath); err == nil && !*force {
			fmt.Fprintf(a.stderr, "Config already exists: %s (use -force to overwrite)\n", a.configPath)
			return 1
		}
		if err := config.SaveConfig(config.DefaultConfig(), a.configPath); err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(a.stdout, "Wrote %s\n", a.configPath)
		return 0

	case "show":
		cfg, err := config.Load(a.configPath)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
		ext := filepath.Ext(a.configPath)
		data, err := config.Encode(cfg, ext)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
		if ext != ".json" {
			fmt.Fprintf(a.stdout, "# %s\n", a.configPath)
		}
		a.stdout.Write(data)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(a.stderr, "Warning: %v\n", err)
		}
		return 0

	default:
		fmt.Fprintf(a.stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}
