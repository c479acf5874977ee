// Command normware dispatches actions through the normalizing middleware,
// validates CUE schemas, runs conformance scenarios and inspects journals.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/normware/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
