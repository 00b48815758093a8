// Command timelock locks native balances and tokens until a deadline.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/timelock/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Rejected instructions and failed checks were already rendered.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != cli.ExitFailure {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
