package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file|->",
		Short: "Compile a program without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			program, err := readProgram(cmd, args[0])
			if err != nil {
				return err
			}
			sess, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, sess.close()) }()

			if report := sess.Check(program); report != "" {
				fmt.Fprintln(cmd.OutOrStdout(), report)
				return &exitError{Code: 1}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
