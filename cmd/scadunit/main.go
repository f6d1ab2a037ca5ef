// Command scadunit runs unit tests for OpenSCAD libraries.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/scadunit/internal/cli"
)

func main() {
	err := cli.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
