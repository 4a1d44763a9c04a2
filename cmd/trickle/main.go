// Command trickle runs and inspects recurring token order schedules.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/trickle/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
