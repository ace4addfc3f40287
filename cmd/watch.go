package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/clarionscope/internal/log"
	"github.com/zjrosen/clarionscope/internal/outline"
	"github.com/zjrosen/clarionscope/internal/presentation"
	"github.com/zjrosen/clarionscope/internal/pubsub"
	"github.com/zjrosen/clarionscope/internal/watcher"
	"github.com/zjrosen/clarionscope/internal/workspace"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-analyse files as they change",
		Long: `Scan a directory, then watch it and print outline changes and diagnostics
for every file that is saved, created or removed. Stop with Ctrl+C.

Only added and removed outline entries are printed; edits that merely move
code up or down are silent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if a.closeLog != nil {
				go echoLog(ctx, cmd.ErrOrStderr())
			}
			return a.watch(ctx, cmd.OutOrStdout(), root)
		},
	}
}

// echoLog mirrors debug log entries to w while ctx is live.
func echoLog(ctx context.Context, w io.Writer) {
	l := log.NewListener(ctx)
	if l == nil {
		return
	}
	for {
		ev, ok := l.Next()
		if !ok {
			return
		}
		_, _ = io.WriteString(w, ev.Payload)
	}
}

func (a *app) watch(ctx context.Context, out io.Writer, root string) error {
	svc := a.newService()
	defer svc.Close()

	report, err := svc.Scan(ctx, root)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}
	session := newWatchSession(svc, a.formatter(out), out, a.json())
	session.seed(report.Analyses)
	if !a.json() {
		fmt.Fprintf(out, "watching %s (%d files, %d diagnostics)\n", root, len(report.Analyses), report.Diagnostics())
	}

	w, err := watcher.New(watcher.Config{
		Root:        root,
		Extensions:  a.cfg.Extensions,
		Exclude:     a.cfg.Exclude,
		DebounceDur: a.cfg.Watch.Debounce,
	})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	changes, err := w.Start()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	events := pubsub.NewListener(ctx, svc.Broker(), pubsub.AnalyzedEvent, pubsub.RemovedEvent, pubsub.FailedEvent)
	applied := make(chan struct{})
	go func() {
		defer close(applied)
		for change := range changes {
			session.apply(ctx, change)
		}
	}()
	defer func() {
		_ = w.Stop()
		<-applied
	}()

	for {
		ev, ok := events.Next()
		if !ok {
			return nil
		}
		if err := session.render(ev); err != nil {
			return err
		}
	}
}

// watchSession turns workspace events into outline diffs.
type watchSession struct {
	svc  *workspace.Service
	f    *presentation.Formatter
	out  io.Writer
	json bool

	// prev is only touched by render.
	prev map[string][]outline.Symbol
}

func newWatchSession(svc *workspace.Service, f *presentation.Formatter, out io.Writer, json bool) *watchSession {
	return &watchSession{svc: svc, f: f, out: out, json: json, prev: make(map[string][]outline.Symbol)}
}

func (s *watchSession) seed(analyses []*workspace.Analysis) {
	for _, an := range analyses {
		s.prev[an.Path] = an.Symbols
	}
}

// apply re-analyses modified files and drops removed ones. Results reach
// render through the workspace broker.
func (s *watchSession) apply(ctx context.Context, change watcher.Change) {
	for _, path := range change.Removed {
		s.svc.Remove(path)
	}
	for _, path := range change.Modified {
		if _, err := s.svc.AnalyzeFile(ctx, path); err != nil {
			log.Debug(log.CatWatcher, "re-analysis failed", "path", path, "error", err)
		}
	}
}

func (s *watchSession) render(ev pubsub.Event[workspace.Event]) error {
	path := ev.Payload.Path
	dto := presentation.WatchEventDTO{Type: string(ev.Type), Path: path}

	switch ev.Type {
	case pubsub.AnalyzedEvent:
		an := ev.Payload.Analysis
		diff := outline.Diff(s.prev[path], an.Symbols)
		s.prev[path] = an.Symbols
		if outline.Changed(diff) {
			dto.Changes = changesOnly(diff)
		}
		dto.Diagnostics = presentation.FromDiagnostics(path, an.Result.Diagnostics)
	case pubsub.RemovedEvent:
		dto.Changes = changesOnly(outline.Diff(s.prev[path], nil))
		delete(s.prev, path)
	case pubsub.FailedEvent:
		dto.Error = ev.Payload.Err.Error()
	}

	if s.json {
		return s.f.JSON(dto)
	}
	if dto.Error != "" {
		_, err := fmt.Fprintf(s.out, "%s: %s\n", path, dto.Error)
		return err
	}
	if len(dto.Changes) > 0 {
		if err := s.f.Diff(path, dto.Changes, true); err != nil {
			return err
		}
	}
	return s.f.Diagnostics(dto.Diagnostics)
}

func changesOnly(diff []outline.DiffLine) []outline.DiffLine {
	var out []outline.DiffLine
	for _, d := range diff {
		if d.Op != outline.DiffEqual {
			out = append(out, d)
		}
	}
	return out
}
