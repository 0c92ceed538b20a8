package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"scriptrec/internal/capture"
	"scriptrec/internal/config"
	"scriptrec/internal/convert"
	"scriptrec/internal/emitter"
	"scriptrec/internal/eventlog"
	"scriptrec/internal/region"
	"scriptrec/internal/store"
)

// job is one conversion of an event log into a .sikuli folder.
type job struct {
	EventsPath string
	Name       string
	NoStore    bool
}

// outcome summarizes a finished job.
type outcome struct {
	SessionID  string
	Folder     string
	ScriptPath string
	Result     *convert.Result
	Skipped    []eventlog.Skip
}

// sikuliPaths maps a script name to its folder and script file:
// "demo" gives demo.sikuli/demo.py, and "demo.sikuli" is used as is.
// Relative names are placed under dir.
func sikuliPaths(dir, name string) (folder, script string) {
	name = strings.TrimRight(name, `/\`)
	stem := strings.TrimSuffix(filepath.Base(name), ".sikuli")
	folder = strings.TrimSuffix(name, ".sikuli") + ".sikuli"
	if dir != "" && !filepath.IsAbs(folder) {
		folder = filepath.Join(dir, folder)
	}
	return folder, filepath.Join(folder, stem+".py")
}

func (a *app) cmdConvert(args []string) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	precision := fs.Float64("p", a.cfg.Conversion.Precision, "Motion simplification tolerance in pixels")
	step := fs.Int("s", a.cfg.Conversion.StepSize, "Samples per simplification window")
	layout := fs.String("layout", a.cfg.Conversion.Layout, "Keyboard layout")
	backend := fs.String("capture", a.cfg.Capture.Backend, "Capture backend: "+strings.Join(capture.Backends(), ", "))
	async := fs.Bool("async", a.cfg.Capture.Async, "Capture on a background worker")
	keepFraming := fs.Bool("keep-framing", a.cfg.Conversion.KeepFraming, "Keep the recorder's start/stop keys")
	noStore := fs.Bool("no-store", !a.cfg.Storage.Enabled, "Do not record the conversion")
	metricsFile := fs.String("metrics-file", "", "Write Prometheus metrics to this file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(a.stderr, "Usage: scriptrec convert [options] <events-file> <name>")
		return 1
	}

	a.cfg.Conversion.Precision = *precision
	a.cfg.Conversion.StepSize = *step
	a.cfg.Conversion.Layout = *layout
	a.cfg.Conversion.KeepFraming = *keepFraming
	a.cfg.Capture.Backend = *backend
	a.cfg.Capture.Async = *async
	if err := a.cfg.Validate(); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := a.convert(ctx, a.cfg, job{EventsPath: fs.Arg(0), Name: fs.Arg(1), NoStore: *noStore})
	if out != nil {
		a.report(out)
	}
	if *metricsFile != "" {
		if werr := a.metrics.Registry.WriteFile(*metricsFile); werr != nil {
			a.logger.Error("metrics not written", slog.Any("error", werr))
		}
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) report(out *outcome) {
	res := out.Result
	fmt.Fprintf(a.stdout, "Wrote %s (%d lines from %d events)\n", out.ScriptPath, len(res.Lines), res.Events)
	if res.Captures > 0 {
		fmt.Fprintf(a.stdout, "Regions captured: %d\n", res.Captures)
	}
	if n := len(res.Failures()); n > 0 {
		fmt.Fprintf(a.stdout, "Capture failures: %d\n", n)
	}
	if n := len(res.Diagnostics) + len(out.Skipped); n > 0 {
		fmt.Fprintf(a.stdout, "Skipped events:   %d\n", n)
	}
	if out.SessionID != "" {
		fmt.Fprintf(a.stdout, "Session: %s\n", out.SessionID)
	}
}

// convert runs j with cfg and records it in the session metrics. On a
// conversion error the partial script is still written and the outcome is
// returned alongside the error.
func (a *app) convert(ctx context.Context, cfg *config.Config, j job) (*outcome, error) {
	start := time.Now()
	out, err := a.runJob(ctx, cfg, j)
	if a.metrics != nil {
		var (
			res     *convert.Result
			skipped int
		)
		if out != nil {
			res, skipped = out.Result, len(out.Skipped)
		}
		a.metrics.Observe(res, skipped, time.Since(start), err)
	}
	return out, err
}

func (a *app) runJob(ctx context.Context, cfg *config.Config, j job) (*outcome, error) {
	logger := a.logger.Logger.With(slog.String("events", j.EventsPath))

	evlog, err := eventlog.ReadFile(j.EventsPath)
	if err != nil {
		return nil, err
	}
	for _, s := range evlog.Skipped {
		logger.Warn("line skipped", slog.Int("line", s.Line), slog.String("reason", s.Reason))
	}

	folder, script := sikuliPaths(cfg.Output.Dir, j.Name)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", folder, err)
	}

	capturer, err := capture.New(cfg.Capture.Backend, folder)
	if err != nil {
		return nil, err
	}
	opts := convert.Options{
		Precision:        cfg.Conversion.Precision,
		StepSize:         cfg.Conversion.StepSize,
		Layout:           cfg.Conversion.Layout,
		Logger:           logger,
		HighlightSeconds: cfg.Conversion.HighlightSeconds,
		HighlightColor:   cfg.Conversion.HighlightColor,
		Similarity:       cfg.Conversion.Similarity,
		SnapModulus:      cfg.Conversion.SnapModulus,
		SnapThreshold:    cfg.Conversion.SnapThreshold,
		KeepFraming:      cfg.Conversion.KeepFraming,
	}
	if capturer != nil {
		if cfg.Capture.Async {
			worker := capture.NewAsync(capturer, cfg.Capture.QueueDepth, logger)
			defer worker.Close()
			opts.Snapper = worker
		} else {
			opts.Snapper = region.Direct{Capturer: capturer}
		}
	}

	conv, err := convert.New(opts)
	if err != nil {
		return nil, err
	}

	var hist *history
	if cfg.Storage.Enabled && !j.NoStore {
		hist, err = openHistory(cfg, logger)
		if err != nil {
			// History is optional; conversion goes ahead without it.
			logger.Error("history unavailable", slog.Any("error", err))
		} else {
			defer hist.Close()
		}
	}

	sess := &store.Session{
		SourcePath: j.EventsPath,
		ScriptPath: script,
		Precision:  cfg.Conversion.Precision,
		StepSize:   cfg.Conversion.StepSize,
		Layout:     cfg.Conversion.Layout,
	}
	if hist != nil {
		if err := hist.Begin(sess); err != nil {
			logger.Error("record session", slog.Any("error", err))
			hist = nil
		}
	}

	start := time.Now()
	res, runErr := conv.Run(ctx, evlog.Source())
	out := &outcome{Folder: folder, ScriptPath: script, Result: res, Skipped: evlog.Skipped}

	if err := writeScript(script, res.Lines); err != nil && runErr == nil {
		runErr = err
	}

	if hist != nil {
		out.SessionID = sess.ID
		if err := hist.Record(sess, out, runErr); err != nil {
			logger.Error("record session", slog.String("session_id", sess.ID), slog.Any("error", err))
		}
	}

	logger.Info("conversion finished",
		slog.String("script", script),
		slog.Int("events", res.Events),
		slog.Int("lines", len(res.Lines)),
		slog.Int("captures", res.Captures),
		slog.Int("diagnostics", len(res.Diagnostics)),
		slog.Duration("elapsed", time.Since(start)))

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return out, fmt.Errorf("interrupted, partial script written: %w", runErr)
		}
		return out, runErr
	}
	return out, nil
}

// writeScript replaces path with lines, one per line.
func writeScript(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".script-*.py")
	if err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := emitter.WriteLines(tmp, lines); err != nil {
		tmp.Close()
		return fmt.Errorf("write script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}
