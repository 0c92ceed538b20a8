// Package health reports whether a long-running scriptrec watch is able to
// keep converting: the event log is readable, the output folder is
// writable and the history database answers.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Status is the health of one component or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// Result is the outcome of one check.
type Result struct {
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	Error       string        `json:"error,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ns"`
}

// Check inspects one component.
type Check func(ctx context.Context) Result

type component struct {
	critical bool
	check    Check
}

// Checker runs registered checks and aggregates them.
type Checker struct {
	timeout time.Duration
	started time.Time

	mu         sync.RWMutex
	components map[string]component
	results    map[string]Result
	ready      bool
}

// NewChecker returns a Checker whose checks time out after timeout, or
// five seconds when timeout is zero.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		timeout:    timeout,
		started:    time.Now(),
		components: make(map[string]component),
		results:    make(map[string]Result),
	}
}

// Register adds a check. A failing critical check makes the process
// unhealthy; any other failure only degrades it.
func (c *Checker) Register(name string, critical bool, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = component{critical: critical, check: check}
	c.results[name] = Result{Status: StatusUnknown}
}

// SetReady marks the process as ready to serve.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// Ready reports the readiness flag.
func (c *Checker) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Run executes every check concurrently and stores the results.
func (c *Checker) Run(ctx context.Context) map[string]Result {
	c.mu.RLock()
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			c.runOne(ctx, name)
		}(name)
	}
	wg.Wait()
	return c.Results()
}

func (c *Checker) runOne(ctx context.Context, name string) {
	c.mu.RLock()
	comp := c.components[name]
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Result{Status: StatusUnhealthy, Message: "check panicked", Error: fmt.Sprint(r)}
			}
		}()
		done <- comp.check(ctx)
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Result{Status: StatusUnhealthy, Message: "check timed out", Error: ctx.Err().Error()}
	}
	res.LastChecked = start
	res.Duration = time.Since(start)

	c.mu.Lock()
	c.results[name] = res
	c.mu.Unlock()
}

// Results returns a copy of the last results.
func (c *Checker) Results() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Result, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

// Overall aggregates the last results.
func (c *Checker) Overall() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.results))
	for name := range c.results {
		names = append(names, name)
	}
	sort.Strings(names)

	status := StatusHealthy
	for _, name := range names {
		critical := c.components[name].critical
		switch c.results[name].Status {
		case StatusUnhealthy:
			if critical {
				return StatusUnhealthy
			}
			status = StatusDegraded
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		case StatusUnknown:
			if critical && status == StatusHealthy {
				status = StatusUnknown
			}
		}
	}
	return status
}

// Report is the body served by Handler.
type Report struct {
	Status     Status            `json:"status"`
	Ready      bool              `json:"ready"`
	Uptime     string            `json:"uptime"`
	Components map[string]Result `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Handler runs the checks and serves a Report. Unhealthy, unknown or
// not-ready states answer 503.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		components := c.Run(r.Context())
		rep := Report{
			Status:     c.Overall(),
			Ready:      c.Ready(),
			Uptime:     time.Since(c.started).Round(time.Second).String(),
			Components: components,
			Timestamp:  time.Now(),
		}

		w.Header().Set("Content-Type", "application/json")
		if !rep.Ready || rep.Status == StatusUnhealthy || rep.Status == StatusUnknown {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(rep)
	})
}

// FileReadable checks that path exists and is a regular readable file.
func FileReadable(path string) Check {
	return func(ctx context.Context) Result {
		f, err := os.Open(path)
		if err != nil {
			return Result{Status: StatusUnhealthy, Message: "cannot open " + path, Error: err.Error()}
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return Result{Status: StatusUnhealthy, Message: "cannot stat " + path, Error: err.Error()}
		}
		if !info.Mode().IsRegular() {
			return Result{Status: StatusUnhealthy, Message: path + " is not a regular file"}
		}
		return Result{Status: StatusHealthy}
	}
}

// DirWritable checks that a file can be created in dir.
func DirWritable(dir string) Check {
	return func(ctx context.Context) Result {
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return Result{Status: StatusUnhealthy, Message: "cannot write to " + filepath.Clean(dir), Error: err.Error()}
		}
		f.Close()
		os.Remove(f.Name())
		return Result{Status: StatusHealthy}
	}
}

// Ping adapts a database ping.
func Ping(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) Result {
		if err := ping(ctx); err != nil {
			return Result{Status: StatusUnhealthy, Message: "database unreachable", Error: err.Error()}
		}
		return Result{Status: StatusHealthy}
	}
}

// LastError reports the most recent error returned by get as degraded.
func LastError(get func() error) Check {
	return func(ctx context.Context) Result {
		if err := get(); err != nil {
			return Result{Status: StatusDegraded, Message: "last conversion failed", Error: err.Error()}
		}
		return Result{Status: StatusHealthy}
	}
}
