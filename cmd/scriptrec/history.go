package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"scriptrec/internal/config"
	"scriptrec/internal/store"
)

// history records conversions in the store.
type history struct {
	db     *store.Store
	logger *slog.Logger
}

func openHistory(cfg *config.Config, logger *slog.Logger) (*history, error) {
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	h := &history{db: db, logger: logger}
	if days := cfg.Storage.RetentionDays; days > 0 {
		n, err := db.Prune(time.Now().AddDate(0, 0, -days))
		if err != nil {
			logger.Warn("prune history", slog.Any("error", err))
		} else if n > 0 {
			logger.Info("pruned history", slog.Int64("sessions", n))
		}
	}
	return h, nil
}

func (h *history) Close() error { return h.db.Close() }

func (h *history) Begin(sess *store.Session) error {
	return h.db.BeginSession(sess)
}

// Record stores everything out produced and closes the session.
func (h *history) Record(sess *store.Session, out *outcome, runErr error) error {
	res := out.Result

	samples := make([]store.Sample, len(res.Samples))
	for i, s := range res.Samples {
		samples[i] = store.Sample{Ordinal: i, TimeMs: s.Time, X: s.X, Y: s.Y}
	}

	diags := make([]store.Diagnostic, 0, len(res.Diagnostics)+len(out.Skipped))
	for _, s := range out.Skipped {
		diags = append(diags, store.Diagnostic{
			Kind:   "log_line",
			Reason: fmt.Sprintf("line %d: %s", s.Line, s.Reason),
		})
	}
	for _, d := range res.Diagnostics {
		diags = append(diags, store.Diagnostic{TimeMs: d.Time, Kind: d.Event.Kind.String(), Reason: d.Reason})
	}

	var errs []error
	if err := h.db.InsertSamples(sess.ID, samples); err != nil {
		errs = append(errs, err)
	}
	if err := h.db.InsertCommands(sess.ID, res.Lines); err != nil {
		errs = append(errs, err)
	}
	if err := h.db.InsertDiagnostics(sess.ID, diags); err != nil {
		errs = append(errs, err)
	}
	for _, shot := range res.Shots {
		c := &store.Capture{
			Seq:         shot.Seq,
			FileName:    shot.Name,
			Hover:       shot.Hover,
			X:           shot.Rect.Min.X,
			Y:           shot.Rect.Min.Y,
			Width:       shot.Rect.Dx(),
			Height:      shot.Rect.Dy(),
			Fingerprint: shot.Fingerprint,
		}
		if shot.Err != nil {
			c.Error = shot.Err.Error()
		}
		if _, err := h.db.InsertCapture(sess.ID, c); err != nil {
			errs = append(errs, err)
		}
	}

	sess.EventCount = res.Events
	sess.LineCount = len(res.Lines)
	sess.CaptureCount = res.Captures
	if err := h.db.FinishSession(sess, runErr); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) cmdHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	limit := fs.Int("n", 10, "Number of sessions to list")
	id := fs.String("id", "", "Show one session in detail")
	remove := fs.String("delete", "", "Delete a session")
	status := fs.Bool("status", false, "Show the database schema version")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	db, err := store.Open(a.cfg.Storage.Path)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error opening history: %v\n", err)
		return 1
	}
	defer db.Close()

	switch {
	case *remove != "":
		if err := db.DeleteSession(*remove); err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(a.stdout, "Deleted %s\n", *remove)
		return 0
	case *id != "":
		return a.showSession(db, *id)
	case *status:
		return a.showSchema(db)
	}

	sessions, err := db.ListSessions(*limit)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	if len(sessions) == 0 {
		fmt.Fprintln(a.stdout, "No conversions recorded.")
		return 0
	}
	for _, s := range sessions {
		fmt.Fprintf(a.stdout, "%s  %s  %-8s  %5d events  %4d lines  %2d captures  %s\n",
			s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.Status,
			s.EventCount, s.LineCount, s.CaptureCount, s.ScriptPath)
	}
	return 0
}

func (a *app) showSession(db *store.Store, id string) int {
	s, err := db.GetSession(id)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	if s == nil {
		fmt.Fprintf(a.stderr, "No session %s\n", id)
		return 1
	}

	fmt.Fprintf(a.stdout, "=== Session %s ===\n", s.ID)
	fmt.Fprintf(a.stdout, "Started:   %s\n", s.StartedAt.Format(time.RFC3339))
	if s.FinishedAt != nil {
		fmt.Fprintf(a.stdout, "Finished:  %s\n", s.FinishedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(a.stdout, "Status:    %s\n", s.Status)
	if s.Error != "" {
		fmt.Fprintf(a.stdout, "Error:     %s\n", s.Error)
	}
	fmt.Fprintf(a.stdout, "Source:    %s\n", s.SourcePath)
	fmt.Fprintf(a.stdout, "Script:    %s\n", s.ScriptPath)
	fmt.Fprintf(a.stdout, "Settings:  precision=%g step=%d layout=%s\n", s.Precision, s.StepSize, s.Layout)

	samples, err := db.GetSamples(id)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	commands, err := db.GetCommands(id)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.stdout, "Samples:   %d\n", len(samples))
	fmt.Fprintf(a.stdout, "Commands:  %d\n", len(commands))

	captures, err := db.GetCaptures(id)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	for _, c := range captures {
		status := c.Fingerprint
		if c.Error != "" {
			status = "FAILED: " + c.Error
		}
		fmt.Fprintf(a.stdout, "  [%d] %s %dx%d+%d+%d %s\n", c.Seq, c.FileName, c.Width, c.Height, c.X, c.Y, status)
	}

	diags, err := db.GetDiagnostics(id)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	for _, d := range diags {
		fmt.Fprintf(a.stdout, "  ! %d %s: %s\n", d.TimeMs, d.Kind, d.Reason)
	}
	return 0
}

func (a *app) showSchema(db *store.Store) int {
	st, err := db.SchemaStatus()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.stdout, "Database:  %s\n", a.cfg.Storage.Path)
	fmt.Fprintf(a.stdout, "Schema:    v%d (latest v%d)\n", st.Version, st.Latest)
	for _, m := range st.Applied {
		fmt.Fprintf(a.stdout, "  v%d  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339), m.Description)
	}
	return 0
}
