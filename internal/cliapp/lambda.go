package cliapp

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"calltree/internal/engine/lambda"

	"github.com/spf13/cobra"
)

func newLambdaCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lambda",
		Short: "Capture and restore lambda expressions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "capture <file.py>:<line>[:<col>]",
		Short: "Print the serialized form of the lambda at a source location",
		Args:  checkedArgs(cobra.ExactArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runCapture(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "call <lambda text> [args...]",
		Short: "Restore a serialized lambda and call it with literal arguments",
		Args:  checkedArgs(cobra.MinimumNArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runCall(args[0], args[1:])
		},
	})
	return cmd
}

// parseLocation splits "path:line[:col]".
func parseLocation(loc string) (string, int, int, error) {
	parts := strings.Split(loc, ":")
	if len(parts) < 2 {
		return "", 0, 0, fmt.Errorf("location %q must have the form <file>:<line>[:<col>]", loc)
	}

	nums := make([]int, 0, 2)
	for len(nums) < 2 && len(parts) > 1 {
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			break
		}
		nums = append([]int{n}, nums...)
		parts = parts[:len(parts)-1]
	}
	if len(nums) == 0 || nums[0] < 1 {
		return "", 0, 0, fmt.Errorf("location %q needs a positive line number", loc)
	}
	col := 0
	if len(nums) == 2 {
		col = nums[1]
	}
	return strings.Join(parts, ":"), nums[0], col, nil
}

func (a *app) runCapture(loc string) error {
	path, line, col, err := parseLocation(loc)
	if err != nil {
		return usageError(err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	capture, err := lambda.LoadAt(a.parser, path, src, line, col)
	if err != nil {
		return err
	}
	text, err := capture.Serialize()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, text)
	return nil
}

func (a *app) runCall(text string, rawArgs []string) error {
	capture, err := lambda.Deserialize(text)
	if err != nil {
		return err
	}

	args := make([]lambda.Value, 0, len(rawArgs))
	for _, raw := range rawArgs {
		v, err := lambda.ParseLiteral(raw)
		if err != nil {
			return usageError(err)
		}
		args = append(args, v)
	}

	result, err := capture.Call(args...)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, lambda.Repr(result))
	return nil
}
