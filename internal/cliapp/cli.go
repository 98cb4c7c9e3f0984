package cliapp

import (
	"context"
	stderrors "errors"
	"io"

	"calltree/internal/core/config"
	"calltree/internal/engine/parser"

	"github.com/spf13/cobra"
)

const versionString = "1.0.0"
const defaultConfigPath = "./" + config.DefaultFile

type cliOptions struct {
	configPath  string
	verbose     bool
	metricsFile string
	metricsAddr string
}

// app is the state shared by subcommands once the root flags are parsed.
type app struct {
	opts     cliOptions
	cfg      *config.Config
	parser   *parser.Parser
	stdout   io.Writer
	stderr   io.Writer
	shutdown func(context.Context) error
}

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// usageError marks err as a malformed invocation (exit status 2).
func usageError(err error) error {
	return &exitError{code: 2, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if stderrors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func checkedArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "calltree",
		Short:         "Static call trees, attribute tables and lambda capture for Python classes",
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.SetVersionTemplate("calltree v{{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.PersistentFlags().StringVar(&a.opts.configPath, "config", defaultConfigPath, "Path to config file")
	root.PersistentFlags().BoolVar(&a.opts.verbose, "verbose", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&a.opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when the command ends")
	root.PersistentFlags().StringVar(&a.opts.metricsAddr, "metrics-addr", "", "Serve /metrics on this address while attrs --watch runs")

	root.AddCommand(newTreeCommand(a))
	root.AddCommand(newAttrsCommand(a))
	root.AddCommand(newLambdaCommand(a))
	return root
}
