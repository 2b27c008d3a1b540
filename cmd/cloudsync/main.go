// Command cloudsync keeps networks, subnets and ports in step between a
// LOCAL and a REMOTE cloud.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cloudsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
