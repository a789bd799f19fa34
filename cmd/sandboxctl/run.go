package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cryguy/sandbox"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		load   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "run <file|->",
		Short: "Execute a program and print its outcome",
		Long: `Execute a program and print its outcome.

The bootstrap program selected by --load runs first. The command exits
with status 1 when the program reported an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			variant, ok := parseVariant(load)
			if !ok {
				return &exitError{Code: 2, Message: fmt.Sprintf("invalid --load %q, want compiler or vm", load)}
			}
			switch format {
			case "json", "yaml", "text":
			default:
				return &exitError{Code: 2, Message: fmt.Sprintf("invalid --output %q, want json, yaml or text", format)}
			}
			program, err := readProgram(cmd, args[0])
			if err != nil {
				return err
			}

			sess, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, sess.close()) }()

			if load != "" {
				sess.Load(variant)
			}
			out := sandbox.Execute(sess.Sandbox, program)
			if err := printOutcome(cmd.OutOrStdout(), format, out); err != nil {
				return err
			}
			if out.Error != "" {
				return &exitError{Code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&load, "load", "l", "", "bootstrap program to run first: compiler or vm")
	cmd.Flags().StringVarP(&format, "output", "o", "json", "outcome format: json, yaml or text")
	return cmd
}

func parseVariant(s string) (sandbox.Variant, bool) {
	switch s {
	case "", "vm":
		return sandbox.VariantVM, true
	case "compiler":
		return sandbox.VariantCompiler, true
	}
	return 0, false
}

// printOutcome writes out in format. The text format prints the value, or
// the error report, and the captured console lines.
func printOutcome(w io.Writer, format string, out sandbox.Outcome) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "yaml":
		b, err := yaml.Marshal(out)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case "text":
		for _, l := range out.Logs {
			fmt.Fprintf(w, "[%s] %s\n", l.Level, l.Message)
		}
		if out.Error != "" {
			_, err := fmt.Fprintln(w, out.Error)
			return err
		}
		_, err := fmt.Fprintln(w, out.Value)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}
