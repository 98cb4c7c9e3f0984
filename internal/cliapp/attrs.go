package cliapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"calltree/internal/data/history"
	"calltree/internal/engine/attrs"
	"calltree/internal/shared/observability"
	"calltree/internal/watcher"

	"github.com/spf13/cobra"
)

type attrsOptions struct {
	json    bool
	save    bool
	watch   bool
	project string
}

func newAttrsCommand(a *app) *cobra.Command {
	var opts attrsOptions
	cmd := &cobra.Command{
		Use:   "attrs <file.py>...",
		Short: "List the attributes each class assigns on self or exposes as properties",
		Args:  checkedArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAttrs(cmd.Context(), args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the table as JSON")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Store a snapshot in history and print the diff against the previous one")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Collect again whenever a file changes")
	cmd.Flags().StringVar(&opts.project, "project", "default", "History project key")
	return cmd
}

func (a *app) runAttrs(ctx context.Context, files []string, opts attrsOptions) error {
	var store *history.Store
	if opts.save || a.cfg.History.Enabled {
		s, err := history.Open(a.cfg.History.Path)
		if err != nil {
			if history.IsCorruptError(err) {
				slog.Warn("history database is unreadable", "path", a.cfg.History.Path)
				return fmt.Errorf("%w; remove the file or point [history] path at a new one", err)
			}
			return err
		}
		defer s.Close()
		store = s
	}

	if err := a.collectAndReport(ctx, files, opts, store); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	w, err := watcher.NewWatcher(a.cfg.Watch.Debounce, a.cfg.Exclude.Dirs, a.cfg.Exclude.Files, func(changed []string) {
		slog.Info("sources changed", "files", len(changed))
		if err := a.collectAndReport(ctx, files, opts, store); err != nil {
			slog.Error("collect failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Watch(files); err != nil {
		return err
	}

	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := observability.NewMetricsServer(addr)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop(context.WithoutCancel(ctx))
	}

	slog.Info("watching for changes", "files", len(files))
	<-ctx.Done()
	return nil
}

func (a *app) collectAndReport(ctx context.Context, files []string, opts attrsOptions, store *history.Store) error {
	table := attrs.NewTable()
	for _, file := range files {
		if _, err := attrs.CollectFile(ctx, a.parser, file, table); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if opts.json {
		data, err := json.MarshalIndent(table, "", "  ")
		if err != nil {
			return err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	} else {
		writeTable(&buf, table)
	}

	if store != nil {
		prev, err := store.Latest(opts.project)
		if err != nil {
			return err
		}
		snap, err := store.SaveSnapshot(opts.project, table, absPaths(files))
		if err != nil {
			return err
		}
		slog.Debug("snapshot saved", "id", snap.ID, "classes", snap.ClassCount, "db", store.Path())
		if prev != nil {
			writeDiff(&buf, table.Diff(prev.Table))
		}
	}

	_, err := a.stdout.Write(buf.Bytes())
	return err
}

func writeTable(w io.Writer, table *attrs.Table) {
	for _, class := range table.Classes() {
		fmt.Fprintf(w, "%s: %s\n", class, strings.Join(table.Attributes(class), ", "))
	}
}

func writeDiff(w io.Writer, diff []attrs.ClassDiff) {
	if len(diff) == 0 {
		fmt.Fprintln(w, "no changes since last snapshot")
		return
	}
	fmt.Fprintln(w, "changes since last snapshot:")
	for _, d := range diff {
		switch {
		case d.New:
			fmt.Fprintf(w, "  %s (new)\n", d.Class)
		case d.Gone:
			fmt.Fprintf(w, "  %s (removed)\n", d.Class)
			continue
		default:
			fmt.Fprintf(w, "  %s\n", d.Class)
		}
		for _, name := range d.Added {
			fmt.Fprintf(w, "    + %s\n", name)
		}
		for _, name := range d.Removed {
			fmt.Fprintf(w, "    - %s\n", name)
		}
	}
}

func absPaths(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		out = append(out, f)
	}
	return out
}
