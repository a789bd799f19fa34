// Command sandboxctl runs contract programs in a sandbox from the command
// line.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitError carries the process exit code of a command that failed after
// printing its own report.
type exitError struct {
	Code    int
	Message string
}

func (e *exitError) Error() string {
	return e.Message
}

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the command line args, writing command output to out.
func run(out io.Writer, args []string) error {
	root := newRootCmd()
	root.SetOut(out)
	root.SetArgs(args)
	return root.Execute()
}
