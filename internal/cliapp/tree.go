package cliapp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"calltree/internal/core/errors"
	"calltree/internal/engine/calltree"
	"calltree/internal/engine/pymodel"
	"calltree/internal/output"

	"github.com/spf13/cobra"
)

type treeOptions struct {
	output      string
	format      string
	searchPaths []string
	color       bool
}

func newTreeCommand(a *app) *cobra.Command {
	var opts treeOptions
	cmd := &cobra.Command{
		Use:   "tree <module.Class.method>",
		Short: "Print every method reachable from a starting method",
		Long: `Print the methods a starting method can reach through calls on self,
explicit Base.method(self) calls and super(), each attributed to the class
whose implementation runs.`,
		Args: checkedArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTree(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Where to write: stdout, stderr or a file path")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format: tree, dot, tsv, mermaid or plantuml")
	cmd.Flags().StringSliceVarP(&opts.searchPaths, "path", "p", nil, "Module search roots (default from config)")
	cmd.Flags().BoolVar(&opts.color, "color", false, "Colour the tree output")
	return cmd
}

func (a *app) runTree(ctx context.Context, methodPath string, opts treeOptions) error {
	if _, err := pymodel.ParseMethodPath(methodPath); err != nil {
		return usageError(err)
	}

	dest := opts.output
	if dest == "" {
		dest = a.cfg.Output.Destination
	}
	format := opts.format
	if format == "" {
		format = a.cfg.Output.Format
	}
	roots := opts.searchPaths
	if len(roots) == 0 {
		roots = a.cfg.SearchPaths
	}

	builder, err := calltree.NewBuilder(a.parser, calltree.Options{Exclude: a.cfg.Exclude.Methods})
	if err != nil {
		return err
	}

	graph := calltree.NewCallGraph()
	loader := pymodel.NewLoader(roots, a.parser)
	class, method, err := loader.ResolveMethodPath(methodPath)
	switch {
	case errors.IsCode(err, errors.CodeNotFound):
		fmt.Fprintln(a.stderr, err.Error())
	case err != nil:
		return err
	default:
		var stats calltree.Stats
		graph, stats, err = builder.Build(ctx, class, method)
		if errors.IsCode(err, errors.CodeNotFound) {
			fmt.Fprintln(a.stderr, err.Error())
		} else if err != nil {
			return err
		}
		slog.Debug("call tree built",
			"start", methodPath,
			"expanded", stats.Expanded,
			"edges", stats.Edges,
			"dropped", stats.Dropped,
			"excluded", stats.Excluded)
	}

	var style *calltree.TreeStyle
	if (opts.color || a.cfg.Output.Color) && isTerminalDest(dest) {
		style = calltree.DefaultTreeStyle()
	}

	var buf bytes.Buffer
	if err := output.Render(&buf, format, graph, style); err != nil {
		return err
	}
	return a.writeOutput(dest, &buf)
}
