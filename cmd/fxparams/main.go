// Command fxparams inspects layered effect parameters, drives their bindings
// frame by frame and replays change-detection scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fxparams/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
