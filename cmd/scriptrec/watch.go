package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"scriptrec/internal/config"
	"scriptrec/internal/health"
	"scriptrec/internal/store"
	"scriptrec/internal/watcher"
)

func (a *app) cmdWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	debounce := fs.Duration("debounce", time.Duration(a.cfg.Watch.DebounceMs)*time.Millisecond, "Quiet period before re-converting")
	noStore := fs.Bool("no-store", !a.cfg.Storage.Enabled, "Do not record conversions")
	statusAddr := fs.String("metrics-addr", "", "Serve /metrics and /healthz on this address")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(a.stderr, "Usage: scriptrec watch [-debounce 250ms] <events-file> <name>")
		return 1
	}
	j := job{EventsPath: fs.Arg(0), Name: fs.Arg(1), NoStore: *noStore}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config edits apply from the next conversion on.
	var cfgMu sync.Mutex
	current := a.cfg
	loader := config.NewLoader(a.configPath)
	if _, err := loader.Load(); err == nil {
		loader.OnChange(func(_, next *config.Config) {
			cfgMu.Lock()
			current = next
			cfgMu.Unlock()
			a.logger.Info("config reloaded", slog.String("path", loader.Path()))
		})
		if err := loader.Watch(); err != nil {
			a.logger.Warn("config hot reload disabled", slog.Any("error", err))
		}
		defer loader.Close()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case err := <-loader.Errors():
					a.logger.Warn("config reload rejected", slog.Any("error", err))
				}
			}
		}()
	}

	var (
		lastMu  sync.Mutex
		lastErr error
	)
	checker := a.watchChecks(j, func() *config.Config {
		cfgMu.Lock()
		defer cfgMu.Unlock()
		return current
	}, func() error {
		lastMu.Lock()
		defer lastMu.Unlock()
		return lastErr
	})
	if *statusAddr != "" {
		srv, err := a.serveStatus(*statusAddr, checker)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
		defer srv.Close()
	}

	w, err := watcher.New([]string{j.EventsPath}, *debounce)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	checker.SetReady(true)
	fmt.Fprintf(a.stdout, "Watching %s (Ctrl+C to stop)\n", j.EventsPath)
	err = w.Run(ctx, func(ev watcher.Event) error {
		cfgMu.Lock()
		cfg := current
		cfgMu.Unlock()

		a.logger.Info("events changed", slog.String("digest", ev.Digest()[:12]), slog.Int64("size", ev.Size))
		out, err := a.convert(ctx, cfg, j)
		if out != nil {
			a.report(out)
		}
		lastMu.Lock()
		lastErr = err
		lastMu.Unlock()
		if err != nil && ctx.Err() == nil {
			// A half-written log is expected while recording; keep watching.
			a.logger.Error("conversion failed", slog.Any("error", err))
		}
		return nil
	}, func(err error) {
		a.logger.Warn("watch error", slog.Any("error", err))
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// watchChecks registers what a watch needs to keep converting. Paths are
// resolved from cfg on every run so a reloaded config is checked.
func (a *app) watchChecks(j job, cfg func() *config.Config, last func() error) *health.Checker {
	c := health.NewChecker(0)
	c.Register("events", true, health.FileReadable(j.EventsPath))
	c.Register("output", true, func(ctx context.Context) health.Result {
		folder, _ := sikuliPaths(cfg().Output.Dir, j.Name)
		return health.DirWritable(filepath.Dir(folder))(ctx)
	})
	c.Register("last_conversion", false, health.LastError(last))

	if !j.NoStore {
		c.Register("history", false, func(ctx context.Context) health.Result {
			st := cfg().Storage
			if !st.Enabled {
				return health.Result{Status: health.StatusHealthy, Message: "storage disabled"}
			}
			return health.Ping(func(ctx context.Context) error {
				db, err := store.Open(st.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				return db.Ping(ctx)
			})(ctx)
		})
	}
	return c
}

// serveStatus exposes the session metrics at /metrics and the health
// report at /healthz until the returned server is closed.
func (a *app) serveStatus(addr string, checker *health.Checker) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("status listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Registry.HTTPHandler())
	mux.Handle("/healthz", checker.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("status server stopped", slog.Any("error", err))
		}
	}()
	a.logger.Info("serving status", slog.String("addr", ln.Addr().String()))
	return srv, nil
}
