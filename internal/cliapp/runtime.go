package cliapp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"calltree/internal/core/config"
	"calltree/internal/engine/parser"
	"calltree/internal/shared/observability"
	"calltree/internal/shared/util"
)

func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.teardown(context.WithoutCancel(ctx))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

func (a *app) setup(ctx context.Context) error {
	configureLogging(a.stderr, a.opts.verbose)

	cfg, err := loadConfig(a.opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	if a.opts.metricsFile != "" {
		cfg.Metrics.File = a.opts.metricsFile
	}
	if a.opts.metricsAddr != "" {
		cfg.Metrics.Addr = a.opts.metricsAddr
	}
	a.cfg = cfg
	a.parser = parser.NewParser()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		return nil
	}
	a.shutdown = shutdown
	return nil
}

// teardown runs after every command that got past setup, failed or not.
func (a *app) teardown(ctx context.Context) {
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
		a.shutdown = nil
	}
	if a.cfg != nil && a.cfg.Metrics.File != "" {
		if err := observability.WriteTextfile(a.cfg.Metrics.File); err != nil {
			slog.Warn("metrics not written", "error", err)
			return
		}
		slog.Debug("metrics written", "path", a.cfg.Metrics.File)
	}
}

// loadConfig reads path. A missing file at the default location falls back
// to the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path != defaultConfigPath || !os.IsNotExist(err) {
		return nil, err
	}

	cfg = config.DefaultConfig()
	config.ApplyEnvOverrides(cfg)
	return cfg, nil
}

func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

// writeOutput sends rendered output to stdout, stderr or a file.
func (a *app) writeOutput(dest string, data *bytes.Buffer) error {
	switch strings.ToLower(strings.TrimSpace(dest)) {
	case "", "stdout":
		_, err := a.stdout.Write(data.Bytes())
		return err
	case "stderr":
		_, err := a.stderr.Write(data.Bytes())
		return err
	}
	if err := util.WriteFileWithDirs(dest, data.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output %q: %w", dest, err)
	}
	slog.Info("output written", "path", dest)
	return nil
}

func isTerminalDest(dest string) bool {
	switch strings.ToLower(strings.TrimSpace(dest)) {
	case "", "stdout", "stderr":
		return true
	}
	return false
}
