// scriptrec - turn recorded pointer and keyboard events into SikuliX scripts
//
//	scriptrec convert <events> <name>   Write <name>.sikuli/<name>.py
//	scriptrec watch <events> <name>     Re-convert whenever the events change
//	scriptrec validate <events>         Check a raw event log
//	scriptrec history                   List recent conversions
//	scriptrec config init|show          Manage the configuration file
//	scriptrec version                   Print the version
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"scriptrec/internal/config"
	"scriptrec/internal/logging"
	"scriptrec/internal/metrics"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries what every command needs.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *logging.Logger
	metrics    *metrics.Conversion
	stdout     io.Writer
	stderr     io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scriptrec", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Config file (default: platform config dir)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "Log format: text, json")
	showVersion := fs.Bool("version", false, "Print the version and exit")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "scriptrec %s\n", version)
		return 0
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 1
	}

	a := &app{configPath: *configPath, stdout: stdout, stderr: stderr}
	if a.configPath == "" {
		if found := config.FindConfigFile(); found != "" {
			a.configPath = found
		} else {
			a.configPath = config.ConfigPath()
		}
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]

	// These work without a valid config.
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "scriptrec %s\n", version)
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	case "config":
		return a.cmdConfig(rest)
	}

	cfg, err := config.NewLoader(a.configPath).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	a.cfg = cfg

	logger, err := newLogger(&cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error setting up logging: %v\n", err)
		return 1
	}
	defer logger.Close()
	logging.SetDefault(logger)
	a.logger = logger
	a.metrics = metrics.NewConversion()

	switch cmd {
	case "convert":
		return a.cmdConvert(rest)
	case "watch":
		return a.cmdWatch(rest)
	case "validate":
		return a.cmdValidate(rest)
	case "history":
		return a.cmdHistory(rest)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		usage(stderr)
		return 1
	}
}

func newLogger(lc *config.LoggingConfig, console io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     lc.Output,
		Writer:     console,
		FilePath:   lc.FilePath,
		MaxSize:    int64(lc.MaxSizeMB),
		MaxAge:     lc.MaxAgeDays,
		MaxBackups: lc.MaxBackups,
		Compress:   lc.Compress,
		MaskInput:  lc.MaskInput,
		Component:  "scriptrec",
	})
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `scriptrec - Convert recorded input events into SikuliX scripts

USAGE:
    scriptrec [-config path] [-log-level l] [-log-format f] <command> [options]

COMMANDS:
    convert <events> <name>   Convert an event log into <name>.sikuli/<name>.py
    watch <events> <name>     Re-convert whenever the event log changes
    validate <events>         Parse and schema-check an event log
    history [-n N] [-id ID] [-delete ID] [-status]
                              List, show or delete recorded conversions
    config init|show          Write or print the configuration
    version                   Show the version

CONVERT OPTIONS:
    -p <precision>            Motion simplification tolerance in pixels (default 6)
    -s <step>                 Samples per simplification window (default 15)
    -layout <name>            Keyboard layout (default US)
    -capture <backend>        screen, synthetic or none
    -async                    Capture regions on a background worker
    -keep-framing             Keep the Enter/Escape that started and stopped recording
    -no-store                 Do not record the conversion in the history database
    -metrics-file <path>      Write Prometheus metrics for the run to path

WATCH OPTIONS:
    -debounce <duration>      Quiet period before re-converting (default 250ms)
    -metrics-addr <addr>      Serve /metrics (Prometheus) and /healthz on addr

GESTURES (while recording):
    Shift_L, drag, release    Capture the region and wait for it
    then click inside it      Click relative to the captured image
    Control_L, drag, release  Highlight the region
    tap Shift_L or Control_L  Mark a point

EVENT LOG FORMAT:
    <ms>\tMotion\t<x>\t<y>
    <ms>\tButton\tPress|Release\t<n>\t<x>\t<y>
    <ms>\tKey\tPress|Release\t<keysym>\t<x>\t<y>
    or a JSON array of those lines or of {"time","kind","x","y","key","button"}`)
}
